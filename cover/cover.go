// Package cover finds and decodes cover images.
//
// Only the raster formats the display pipeline can scale are supported:
// JPEG and BMP. PNG covers are recognised but reported as
// model.ErrUnsupportedFeature so callers can fall back to "no cover".
package cover

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// Kind is a cover image encoding.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindBMP
	KindPNG
)

// Extension returns the canonical file extension, including the dot.
func (k Kind) Extension() string {
	switch k {
	case KindJPEG:
		return ".jpg"
	case KindBMP:
		return ".bmp"
	case KindPNG:
		return ".png"
	default:
		return ""
	}
}

// Supported reports whether images of this kind can be decoded.
func (k Kind) Supported() bool {
	return k == KindJPEG || k == KindBMP
}

// KindOf classifies a file name or media type.
func KindOf(nameOrType string) Kind {
	s := strings.ToLower(nameOrType)
	switch {
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"), s == "image/jpeg":
		return KindJPEG
	case strings.HasSuffix(s, ".bmp"), s == "image/bmp", s == "image/x-ms-bmp":
		return KindBMP
	case strings.HasSuffix(s, ".png"), s == "image/png":
		return KindPNG
	}
	return KindUnknown
}

// Decode decodes data of the given kind.
func Decode(kind Kind, data []byte) (image.Image, error) {
	switch kind {
	case KindJPEG:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, model.Wrap(model.ErrCorruptFormat, "decode cover", err)
		}
		return img, nil
	case KindBMP:
		img, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, model.Wrap(model.ErrCorruptFormat, "decode cover", err)
		}
		return img, nil
	default:
		return nil, model.Wrap(model.ErrUnsupportedFeature, "decode cover", fmt.Errorf("%s images", kindName(kind)))
	}
}

func kindName(k Kind) string {
	if ext := k.Extension(); ext != "" {
		return ext[1:]
	}
	return "unknown"
}

// Sibling looks for an image named like the document next to it, e.g.
// "book.jpg" for "book.txt". Supported kinds are tried first; when only an
// unsupported one exists its path is returned with an error matching
// model.ErrUnsupportedFeature. No candidate at all yields ("", KindUnknown, nil).
func Sibling(fsys storage.FileSystem, docPath string) (string, Kind, error) {
	base := strings.TrimSuffix(docPath, filepath.Ext(docPath))
	for _, kind := range []Kind{KindJPEG, KindBMP} {
		for _, ext := range extensions(kind) {
			if p := base + ext; storage.Exists(fsys, p) {
				return p, kind, nil
			}
		}
	}
	if p := base + ".png"; storage.Exists(fsys, p) {
		return p, KindPNG, model.Wrap(model.ErrUnsupportedFeature, "cover", fmt.Errorf("%s: png covers", p))
	}
	return "", KindUnknown, nil
}

func extensions(k Kind) []string {
	if k == KindJPEG {
		return []string{".jpg", ".jpeg"}
	}
	return []string{k.Extension()}
}
