package xtc

import (
	"bufio"
	"fmt"
	"io"
	"slices"

	"github.com/tsawler/inkpage/model"
)

// Writer assembles a container in memory and writes it in one pass.
type Writer struct {
	title    string
	depth    int
	pages    []*model.Bitmap
	chapters []Chapter
}

// NewWriter creates a writer for 1-bit (XTC) or 2-bit (XTCH) pages.
func NewWriter(title string, depth int) *Writer {
	if depth != 2 {
		depth = 1
	}
	return &Writer{title: title, depth: depth}
}

// AddPage appends a page. Its depth must match the writer's.
func (w *Writer) AddPage(b *model.Bitmap) error {
	if b.Depth != w.depth {
		return fmt.Errorf("xtc: page depth %d in a %d-bit container", b.Depth, w.depth)
	}
	if b.Width > 0xFFFF || b.Height > 0xFFFF {
		return fmt.Errorf("xtc: page %dx%d too large", b.Width, b.Height)
	}
	if want := BitmapSize(b.Width, b.Height, b.Depth); len(b.Data) != want {
		return fmt.Errorf("xtc: bitmap is %d bytes, want %d", len(b.Data), want)
	}
	if len(w.pages) == 0xFFFF {
		return fmt.Errorf("xtc: too many pages")
	}
	w.pages = append(w.pages, b)
	return nil
}

// AddChapter records a chapter starting at page start (zero-based). A
// negative end extends the chapter to the page before the next one.
func (w *Writer) AddChapter(title string, start, end int) {
	w.chapters = append(w.chapters, Chapter{Title: title, Start: start, End: end})
}

// normalizedChapters clamps starts, orders by start and fills open ends.
func (w *Writer) normalizedChapters() []Chapter {
	n := len(w.pages)
	out := make([]Chapter, len(w.chapters))
	for i, c := range w.chapters {
		c.Start = max(0, min(c.Start, n-1))
		out[i] = c
	}
	slices.SortStableFunc(out, func(a, b Chapter) int { return a.Start - b.Start })
	for i := range out {
		if out[i].End >= 0 {
			continue
		}
		next := n
		if i+1 < len(out) {
			next = out[i+1].Start
		}
		out[i].End = max(out[i].Start, next-1)
	}
	return out
}

func align(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}

// WriteTo writes the container.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if len(w.pages) == 0 {
		return 0, fmt.Errorf("xtc: no pages")
	}

	magic := MagicXTC
	if w.depth == 2 {
		magic = MagicXTCH
	}
	tableOff := align(titleOffset+titleBlockSize, 8)
	dataOff := tableOff + uint64(len(w.pages))*PageEntrySize

	entries := make([]PageEntry, len(w.pages))
	off := dataOff
	for i, p := range w.pages {
		size := uint32(PageHeaderSize + len(p.Data))
		entries[i] = PageEntry{Offset: off, Size: size, Width: uint16(p.Width), Height: uint16(p.Height)}
		off += uint64(size)
	}
	dataEnd := off

	chapters := w.normalizedChapters()
	hdr := Header{
		Magic:           magic,
		VersionMajor:    1,
		PageCount:       uint16(len(w.pages)),
		HeaderSize:      uint32(tableOff),
		PageTableOffset: tableOff,
		DataOffset:      dataOff,
		TitleOffset:     titleOffset,
	}
	tocOff := align(dataEnd, 8)
	if len(chapters) > 0 {
		hdr.Flags = FlagHasChapters
		hdr.TOCOffset = uint32(tocOff)
	}

	cw := &countingWriter{w: bufio.NewWriter(out)}
	head, _ := hdr.MarshalBinary()
	cw.write(head)

	title := make([]byte, titleBlockSize)
	copy(title, truncateUTF8(w.title, titleBlockSize-1))
	cw.write(title)
	cw.write(make([]byte, tableOff-uint64(cw.n)))

	var rec [PageEntrySize]byte
	for _, e := range entries {
		e.put(rec[:])
		cw.write(rec[:])
	}

	var ph [PageHeaderSize]byte
	for _, p := range w.pages {
		PageHeader{
			Magic:    pageMagic(w.depth),
			Width:    uint16(p.Width),
			Height:   uint16(p.Height),
			DataSize: uint32(len(p.Data)),
		}.put(ph[:])
		cw.write(ph[:])
		cw.write(p.Data)
	}

	if len(chapters) > 0 {
		cw.write(make([]byte, tocOff-dataEnd))
		for _, c := range chapters {
			var b [ChapterSize]byte
			c.put(b[:])
			cw.write(b[:])
		}
	}

	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, cw.w.Flush()
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) write(p []byte) {
	if c.err != nil {
		return
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
}
