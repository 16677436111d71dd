// Package xtc reads and writes XTC and XTCH containers: pre-rendered page
// bitmaps laid out off-device, with a page table and an optional chapter
// table.
//
// All multi-byte fields are little-endian.
package xtc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tsawler/inkpage/model"
)

// Container and page magics.
const (
	MagicXTC  uint32 = 0x00435458 // "XTC\0", 1-bit pages
	MagicXTCH uint32 = 0x48435458 // "XTCH", 2-bit pages
	MagicXTG  uint32 = 0x00475458 // 1-bit page header
	MagicXTH  uint32 = 0x00485458 // 2-bit page header
)

// Fixed record sizes.
const (
	HeaderSize      = 56
	PageEntrySize   = 16
	PageHeaderSize  = 22
	ChapterSize     = 96
	titleOffset     = 0x38
	titleBlockSize  = 128
	chapterNameSize = 80
)

// FlagHasChapters is set in Header.Flags when a chapter table follows the
// page data.
const FlagHasChapters uint32 = 0x01000000

var (
	// ErrInvalidMagic is returned for files that are not XTC containers.
	ErrInvalidMagic = errors.New("xtc: invalid magic number")

	// ErrTruncatedPageTable is returned when the page table is shorter than
	// the declared page count.
	ErrTruncatedPageTable = errors.New("xtc: truncated page table")

	// ErrBadPage is returned when a page header or bitmap is malformed.
	ErrBadPage = errors.New("xtc: malformed page")
)

// Header is the 56-byte container header.
type Header struct {
	Magic           uint32
	VersionMajor    uint8
	VersionMinor    uint8
	PageCount       uint16
	Flags           uint32
	HeaderSize      uint32
	Reserved1       uint32
	TOCOffset       uint32
	PageTableOffset uint64
	DataOffset      uint64
	Reserved2       uint64
	TitleOffset     uint32
	Padding         uint32
}

// Depth returns the bits per pixel of the container's pages.
func (h *Header) Depth() int {
	if h.Magic == MagicXTCH {
		return 2
	}
	return 1
}

// HasChapters reports whether a chapter table is present.
func (h *Header) HasChapters() bool {
	return h.Flags&FlagHasChapters != 0 || h.TOCOffset != 0
}

// Validate checks the magic number.
func (h *Header) Validate() error {
	if h.Magic != MagicXTC && h.Magic != MagicXTCH {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	return nil
}

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], h.Magic)
	b[4] = h.VersionMajor
	b[5] = h.VersionMinor
	le.PutUint16(b[6:8], h.PageCount)
	le.PutUint32(b[8:12], h.Flags)
	le.PutUint32(b[12:16], h.HeaderSize)
	le.PutUint32(b[16:20], h.Reserved1)
	le.PutUint32(b[20:24], h.TOCOffset)
	le.PutUint64(b[24:32], h.PageTableOffset)
	le.PutUint64(b[32:40], h.DataOffset)
	le.PutUint64(b[40:48], h.Reserved2)
	le.PutUint32(b[48:52], h.TitleOffset)
	le.PutUint32(b[52:56], h.Padding)
	return b, nil
}

// UnmarshalBinary decodes the header.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("xtc: header is %d bytes, need %d", len(b), HeaderSize)
	}
	le := binary.LittleEndian
	h.Magic = le.Uint32(b[0:4])
	h.VersionMajor = b[4]
	h.VersionMinor = b[5]
	h.PageCount = le.Uint16(b[6:8])
	h.Flags = le.Uint32(b[8:12])
	h.HeaderSize = le.Uint32(b[12:16])
	h.Reserved1 = le.Uint32(b[16:20])
	h.TOCOffset = le.Uint32(b[20:24])
	h.PageTableOffset = le.Uint64(b[24:32])
	h.DataOffset = le.Uint64(b[32:40])
	h.Reserved2 = le.Uint64(b[40:48])
	h.TitleOffset = le.Uint32(b[48:52])
	h.Padding = le.Uint32(b[52:56])
	return nil
}

// PageEntry is one 16-byte page table record.
type PageEntry struct {
	Offset uint64 // of the page header
	Size   uint32 // page header plus bitmap
	Width  uint16
	Height uint16
}

func (e PageEntry) put(b []byte) {
	le := binary.LittleEndian
	le.PutUint64(b[0:8], e.Offset)
	le.PutUint32(b[8:12], e.Size)
	le.PutUint16(b[12:14], e.Width)
	le.PutUint16(b[14:16], e.Height)
}

func readPageEntry(b []byte) PageEntry {
	le := binary.LittleEndian
	return PageEntry{
		Offset: le.Uint64(b[0:8]),
		Size:   le.Uint32(b[8:12]),
		Width:  le.Uint16(b[12:14]),
		Height: le.Uint16(b[14:16]),
	}
}

// PageHeader precedes every page bitmap.
type PageHeader struct {
	Magic       uint32
	Width       uint16
	Height      uint16
	ColorMode   uint8
	Compression uint8
	DataSize    uint32
	Checksum    uint64 // unused, written as zero
}

func (p PageHeader) put(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:4], p.Magic)
	le.PutUint16(b[4:6], p.Width)
	le.PutUint16(b[6:8], p.Height)
	b[8] = p.ColorMode
	b[9] = p.Compression
	le.PutUint32(b[10:14], p.DataSize)
	le.PutUint64(b[14:22], p.Checksum)
}

func readPageHeader(b []byte) PageHeader {
	le := binary.LittleEndian
	return PageHeader{
		Magic:       le.Uint32(b[0:4]),
		Width:       le.Uint16(b[4:6]),
		Height:      le.Uint16(b[6:8]),
		ColorMode:   b[8],
		Compression: b[9],
		DataSize:    le.Uint32(b[10:14]),
		Checksum:    le.Uint64(b[14:22]),
	}
}

// Chapter is one chapter table record. Start and End are zero-based
// inclusive page indices.
type Chapter struct {
	Title string
	Start int
	End   int
}

func (c Chapter) put(b []byte) {
	copy(b[:chapterNameSize], truncateUTF8(c.Title, chapterNameSize))
	binary.LittleEndian.PutUint16(b[0x50:0x52], uint16(c.Start))
	binary.LittleEndian.PutUint16(b[0x52:0x54], uint16(c.End))
}

func readChapter(b []byte) Chapter {
	return Chapter{
		Title: cString(b[:chapterNameSize]),
		Start: int(binary.LittleEndian.Uint16(b[0x50:0x52])),
		End:   int(binary.LittleEndian.Uint16(b[0x52:0x54])),
	}
}

// BitmapSize returns the bitmap byte count of a page.
func BitmapSize(width, height, depth int) int {
	if depth == 2 {
		return 2 * ((width*height + 7) / 8)
	}
	return ((width + 7) / 8) * height
}

func pageMagic(depth int) uint32 {
	if depth == 2 {
		return MagicXTH
	}
	return MagicXTG
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func corrupt(op string, err error) error {
	return model.Wrap(model.ErrCorruptFormat, op, err)
}
