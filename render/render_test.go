package render

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/tsawler/inkpage/model"
)

func textPage() *model.Page {
	p := model.NewPage(80, 40)
	p.AddLine(model.Line{Text: "Hello", BBox: model.NewBBox(0, 2, 35, 13)})
	p.AddLine(model.Line{Text: "World", BBox: model.NewBBox(0, 18, 35, 13), Style: model.TextStyle{Bold: true}})
	return p
}

func TestTextSink_Page(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf, 20)
	if err := s.Present(Frame{Page: textPage(), Footer: "1/3", Selected: -1}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Hello\n", "World\n", "1/3\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextSink_ListAndTruncation(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf, 10)
	err := s.Present(Frame{
		Clear:    true,
		Title:    "Library",
		Items:    []string{"short", "a very long book title", "日本語のタイトル"},
		Selected: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != strings.Repeat("=", 10) {
		t.Errorf("clear marker = %q", lines[0])
	}
	if lines[3] != "  short" {
		t.Errorf("unselected item = %q", lines[3])
	}
	if lines[4] != "> a very l" {
		t.Errorf("selected item = %q", lines[4])
	}
	// Wide runes take two cells: 2 + 4*2 = 10.
	if lines[5] != "  日本語の" {
		t.Errorf("wide item = %q", lines[5])
	}
}

func TestTextSink_Bitmap(t *testing.T) {
	bm := &model.Bitmap{Width: 16, Height: 4, Depth: 1, Data: make([]byte, 8)}
	var buf bytes.Buffer
	if err := NewTextSink(&buf, 16).Present(Frame{Page: &model.Page{Width: 16, Height: 4, Bitmap: bm}}); err != nil {
		t.Fatal(err)
	}
	// All bits clear is all black.
	if !strings.Contains(buf.String(), strings.Repeat("#", 16)) {
		t.Errorf("bitmap output:\n%s", buf.String())
	}
}

func dark(img *image.Gray, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y < 128 {
				n++
			}
		}
	}
	return n
}

func TestImageSink_Text(t *testing.T) {
	s, err := NewImageSink(80, 40, "basic")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Present(Frame{Page: textPage()}); err != nil {
		t.Fatal(err)
	}
	img := s.Image()
	if dark(img, image.Rect(0, 0, 40, 16)) == 0 {
		t.Error("first line not drawn")
	}
	if dark(img, image.Rect(40, 0, 80, 40)) != 0 {
		t.Error("pixels drawn right of the text")
	}
	if s.Frames() != 1 {
		t.Errorf("Frames = %d", s.Frames())
	}
}

func TestImageSink_BitmapAndBMP(t *testing.T) {
	s, err := NewImageSink(8, 2, "basic")
	if err != nil {
		t.Fatal(err)
	}
	// Row 0 white, row 1 black.
	bm := &model.Bitmap{Width: 8, Height: 2, Depth: 1, Data: []byte{0xFF, 0x00}}
	if err := s.Present(Frame{Page: &model.Page{Width: 8, Height: 2, Bitmap: bm}}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.WriteBMP(&buf); err != nil {
		t.Fatal(err)
	}
	decoded, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := decoded.At(3, 0).RGBA(); r>>8 != 255 {
		t.Errorf("row 0 = %d, want white", r>>8)
	}
	if r, _, _, _ := decoded.At(3, 1).RGBA(); r>>8 != 0 {
		t.Errorf("row 1 = %d, want black", r>>8)
	}
}

func TestImageSink_List(t *testing.T) {
	s, err := NewImageSink(200, 120, "inconsolata")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Present(Frame{Title: "Catalog", Items: []string{"One", "Two"}, Selected: 0}); err != nil {
		t.Fatal(err)
	}
	// The selected row is drawn inverted.
	if dark(s.Image(), image.Rect(150, 0, 200, 120)) == 0 {
		t.Error("selection bar missing")
	}
}

func TestNewImageSink_UnknownFace(t *testing.T) {
	if _, err := NewImageSink(10, 10, "comic-sans"); err == nil {
		t.Error("expected error")
	}
}

func TestSinkFunc(t *testing.T) {
	boom := errors.New("boom")
	var got Frame
	s := SinkFunc(func(f Frame) error { got = f; return boom })
	if err := s.Present(Frame{Status: "x"}); !errors.Is(err, boom) || got.Status != "x" {
		t.Errorf("SinkFunc = %v, %+v", err, got)
	}
}
