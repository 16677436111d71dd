package cover

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

func testImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 1, color.Gray{Y: 200})
	return img
}

func encode(t *testing.T, kind Kind) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch kind {
	case KindJPEG:
		err = jpeg.Encode(&buf, testImage(), nil)
	case KindBMP:
		err = bmp.Encode(&buf, testImage())
	default:
		buf.WriteString("\x89PNG\r\n\x1a\n")
	}
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"cover.JPG", KindJPEG},
		{"x.jpeg", KindJPEG},
		{"image/jpeg", KindJPEG},
		{"a.bmp", KindBMP},
		{"image/png", KindPNG},
		{"c.gif", KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.in); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	for _, kind := range []Kind{KindJPEG, KindBMP} {
		img, err := Decode(kind, encode(t, kind))
		if err != nil {
			t.Fatalf("Decode(%v) failed: %v", kind, err)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
			t.Errorf("Decode(%v) bounds = %v", kind, b)
		}
	}

	if _, err := Decode(KindPNG, encode(t, KindPNG)); !errors.Is(err, model.ErrUnsupportedFeature) {
		t.Errorf("png decode error = %v, want unsupported feature", err)
	}
	if _, err := Decode(KindJPEG, []byte("not a jpeg")); !errors.Is(err, model.ErrCorruptFormat) {
		t.Errorf("garbage decode error = %v, want corrupt format", err)
	}
}

func TestSibling(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		wantKind Kind
		wantErr  error
	}{
		{"none", nil, KindUnknown, nil},
		{"jpg", []string{"book.jpg"}, KindJPEG, nil},
		{"bmp", []string{"book.bmp"}, KindBMP, nil},
		{"jpg wins over bmp", []string{"book.bmp", "book.jpg"}, KindJPEG, nil},
		{"png only", []string{"book.png"}, KindPNG, model.ErrUnsupportedFeature},
		{"bmp wins over png", []string{"book.png", "book.bmp"}, KindBMP, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			doc := filepath.Join(dir, "book.txt")
			if err := os.WriteFile(doc, []byte("text"), 0o644); err != nil {
				t.Fatal(err)
			}
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("img"), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			_, kind, err := Sibling(storage.Default, doc)
			if kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", kind, tt.wantKind)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
