// Package format identifies the document formats the reader can open.
package format

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"strings"
)

// Format represents a supported document format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// EPUB indicates a ZIP/XHTML e-book.
	EPUB
	// XTC indicates a container of pre-rendered 1-bit pages.
	XTC
	// XTCH indicates a container of pre-rendered 2-bit pages.
	XTCH
	// TXT indicates a plain-text file.
	TXT
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case EPUB:
		return "EPUB"
	case XTC:
		return "XTC"
	case XTCH:
		return "XTCH"
	case TXT:
		return "TXT"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case EPUB:
		return ".epub"
	case XTC:
		return ".xtc"
	case XTCH:
		return ".xtch"
	case TXT:
		return ".txt"
	default:
		return ""
	}
}

// PreRendered reports whether pages come ready-made from the file.
func (f Format) PreRendered() bool {
	return f == XTC || f == XTCH
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".epub":
		return EPUB
	case ".xtc":
		return XTC
	case ".xtch":
		return XTCH
	case ".txt", ".text":
		return TXT
	default:
		return Unknown
	}
}

// Supported reports whether filename has an extension the reader opens.
func Supported(filename string) bool {
	return Detect(filename) != Unknown
}

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	epubMime  = []byte("mimetypeapplication/epub+zip")
	magicXTC  = uint32(0x00435458)
	magicXTCH = uint32(0x48435458)
)

// DetectFromMagic checks file magic bytes to determine format.
// Returns Unknown if the format cannot be determined from magic bytes alone;
// a ZIP archive whose first entry is not an EPUB mimetype needs
// DetectFromReader.
func DetectFromMagic(data []byte) Format {
	if len(data) < 4 {
		return Unknown
	}

	switch binary.LittleEndian.Uint32(data) {
	case magicXTC:
		return XTC
	case magicXTCH:
		return XTCH
	}

	if bytes.HasPrefix(data, zipMagic) {
		// The mimetype entry is stored first and uncompressed, its name
		// starts at offset 30.
		if len(data) >= 30+len(epubMime) && bytes.Equal(data[30:30+len(epubMime)], epubMime) {
			return EPUB
		}
		return Unknown
	}

	if looksLikeText(data) {
		return TXT
	}
	return Unknown
}

// looksLikeText accepts data free of control bytes other than
// whitespace. UTF-8 and Windows-1252 text both pass.
func looksLikeText(data []byte) bool {
	for _, c := range data {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' && c != '\f' {
			return false
		}
	}
	return true
}

// DetectFromReader inspects the content to determine format.
// This is more reliable than extension-based detection and recognizes
// EPUB archives that do not store their mimetype entry first.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	magic := make([]byte, 512)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	magic = magic[:n]

	if f := DetectFromMagic(magic); f != Unknown {
		return f, nil
	}
	if bytes.HasPrefix(magic, zipMagic) {
		return detectZIPFormat(r, size)
	}
	return Unknown, nil
}

// detectZIPFormat looks for the EPUB mimetype or container entries.
func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown, err
	}

	for _, f := range zr.File {
		switch f.Name {
		case "mimetype":
			rc, err := f.Open()
			if err != nil {
				continue
			}
			data := make([]byte, 64)
			n, _ := io.ReadFull(rc, data)
			rc.Close()
			if strings.TrimSpace(string(data[:n])) == "application/epub+zip" {
				return EPUB, nil
			}
		case "META-INF/container.xml":
			return EPUB, nil
		}
	}
	return Unknown, nil
}
