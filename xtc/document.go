package xtc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// Format names used for metadata and cache folders.
const (
	FormatXTC  = "xtc"
	FormatXTCH = "xtch"
)

// Config configures Open. Cache is optional and only stores the cover.
type Config struct {
	FileSystem storage.FileSystem
	Cache      *cachedir.Dir
	Strategy   cachedir.Strategy
	Logger     *logging.Logger
}

// Document is an open container. It implements model.Document and is not
// safe for concurrent use.
type Document struct {
	cfg      Config
	path     string
	f        storage.File
	size     int64
	header   Header
	title    string
	entries  []PageEntry
	chapters []Chapter
	log      *logging.Logger
}

// Open reads the header, title, page table and chapter table of the
// container at path. Page bitmaps are read on demand.
func Open(path string, cfg Config) (*Document, error) {
	if cfg.FileSystem == nil {
		cfg.FileSystem = storage.Default
		if cfg.Cache != nil {
			cfg.FileSystem = cfg.Cache.FileSystem()
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}

	f, err := storage.Open(cfg.FileSystem, path)
	if err != nil {
		return nil, model.Wrap(model.ErrOpen, "xtc open", err)
	}
	d := &Document{cfg: cfg, path: path, f: f, log: cfg.Logger.WithDocument(path).WithComponent("xtc")}
	if err := d.readIndex(); err != nil {
		f.Close()
		return nil, err
	}
	d.log.Debug("opened container",
		"pages", len(d.entries),
		"depth", d.header.Depth(),
		"chapters", len(d.chapters))
	return d, nil
}

func (d *Document) readIndex() error {
	info, err := d.f.Stat()
	if err != nil {
		return model.Wrap(model.ErrIO, "xtc open", err)
	}
	d.size = info.Size()

	buf := make([]byte, HeaderSize)
	if _, err := d.f.ReadAt(buf, 0); err != nil {
		return corrupt("xtc header", err)
	}
	if err := d.header.UnmarshalBinary(buf); err != nil {
		return corrupt("xtc header", err)
	}
	if err := d.header.Validate(); err != nil {
		return corrupt("xtc header", err)
	}

	if d.header.TitleOffset != 0 {
		tb := make([]byte, titleBlockSize)
		n, _ := d.f.ReadAt(tb, int64(d.header.TitleOffset))
		d.title = strings.TrimSpace(cString(tb[:n]))
	}

	count := int(d.header.PageCount)
	table := make([]byte, count*PageEntrySize)
	n, err := d.f.ReadAt(table, int64(d.header.PageTableOffset))
	if n < len(table) {
		return corrupt("xtc page table", fmt.Errorf("%w: %d of %d entries (%v)",
			ErrTruncatedPageTable, n/PageEntrySize, count, err))
	}
	d.entries = make([]PageEntry, count)
	for i := range d.entries {
		d.entries[i] = readPageEntry(table[i*PageEntrySize:])
	}

	if d.header.HasChapters() && d.header.TOCOffset != 0 {
		d.readChapters()
	}
	return nil
}

// readChapters reads chapter records up to the end of the file. A damaged
// chapter table only loses the TOC.
func (d *Document) readChapters() {
	off := int64(d.header.TOCOffset)
	if off >= d.size {
		d.log.Warn("chapter table beyond end of file", "offset", off, "size", d.size)
		return
	}
	n := (d.size - off) / ChapterSize
	buf := make([]byte, n*ChapterSize)
	if _, err := d.f.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		d.log.Warn("chapter table unreadable", "error", err)
		return
	}
	for i := int64(0); i < n; i++ {
		c := readChapter(buf[i*ChapterSize:])
		if c.Start >= len(d.entries) {
			continue
		}
		d.chapters = append(d.chapters, c)
	}
}

// Header returns the container header.
func (d *Document) Header() Header { return d.header }

// Chapters returns the chapter table.
func (d *Document) Chapters() []Chapter { return d.chapters }

// Metadata implements model.Document.
func (d *Document) Metadata() model.Metadata {
	title := d.title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(d.path), filepath.Ext(d.path))
	}
	format := FormatXTC
	if d.header.Depth() == 2 {
		format = FormatXTCH
	}
	return model.Metadata{Title: title, Format: format}
}

// SectionCount implements model.Document.
func (d *Document) SectionCount() int { return 1 }

// PageCount implements model.Document.
func (d *Document) PageCount(section int) (int, error) {
	if section != 0 {
		return 0, model.OutOfBounds("xtc page count", section, 1)
	}
	return len(d.entries), nil
}

// LoadPage implements model.Document with a direct seek and read.
func (d *Document) LoadPage(pos model.Position) (*model.Page, error) {
	if pos.Section != 0 {
		return nil, model.OutOfBounds("xtc load page", pos.Section, 1)
	}
	if pos.Page < 0 || pos.Page >= len(d.entries) {
		return nil, model.OutOfBounds("xtc load page", pos.Page, len(d.entries))
	}
	bm, err := d.bitmap(d.entries[pos.Page])
	if err != nil {
		return nil, err
	}
	return &model.Page{
		Number: pos.Page + 1,
		Width:  bm.Width,
		Height: bm.Height,
		Bitmap: bm,
	}, nil
}

func (d *Document) bitmap(e PageEntry) (*model.Bitmap, error) {
	var hb [PageHeaderSize]byte
	if _, err := d.f.ReadAt(hb[:], int64(e.Offset)); err != nil {
		return nil, corrupt("xtc page header", fmt.Errorf("%w: %v", ErrBadPage, err))
	}
	ph := readPageHeader(hb[:])
	depth := d.header.Depth()
	if ph.Magic != pageMagic(depth) {
		return nil, corrupt("xtc page header", fmt.Errorf("%w: magic 0x%08x in a %d-bit container", ErrBadPage, ph.Magic, depth))
	}
	w, h := int(ph.Width), int(ph.Height)
	want := BitmapSize(w, h, depth)
	if int(ph.DataSize) < want {
		return nil, corrupt("xtc page", fmt.Errorf("%w: %d bitmap bytes for %dx%d", ErrBadPage, ph.DataSize, w, h))
	}

	if end := int64(e.Offset) + PageHeaderSize + int64(want); end > d.size {
		return nil, corrupt("xtc page", fmt.Errorf("%w: %dx%d bitmap ends at %d, file is %d bytes",
			ErrBadPage, w, h, end, d.size))
	}

	data := make([]byte, want)
	if _, err := d.f.ReadAt(data, int64(e.Offset)+PageHeaderSize); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, corrupt("xtc page", fmt.Errorf("%w: truncated bitmap", ErrBadPage))
		}
		return nil, model.Wrap(model.ErrIO, "xtc page", err)
	}
	return &model.Bitmap{Width: w, Height: h, Depth: depth, Data: data}, nil
}

// TOC implements model.Document from the chapter table.
func (d *Document) TOC() []model.TOCEntry {
	if len(d.chapters) == 0 {
		return nil
	}
	toc := make([]model.TOCEntry, len(d.chapters))
	for i, c := range d.chapters {
		toc[i] = model.TOCEntry{Title: c.Title, Level: 1, Position: model.Position{Page: c.Start}}
	}
	return toc
}

// Cover implements model.Document. The first page is the cover; with a
// cache directory it is stored as cover.bmp.
func (d *Document) Cover() (image.Image, bool) {
	if len(d.entries) == 0 {
		return nil, false
	}

	var folder *cachedir.Folder
	if d.cfg.Cache != nil {
		format := d.Metadata().Format
		if id, err := d.cfg.Cache.Identify(format, d.path, d.cfg.Strategy); err == nil {
			folder = d.cfg.Cache.Folder(id)
			if data, err := folder.Read(cachedir.CoverBMPKey); err == nil {
				if img, err := bmp.Decode(bytes.NewReader(data)); err == nil {
					return img, true
				}
			}
		}
	}

	bm, err := d.bitmap(d.entries[0])
	if err != nil {
		d.log.Debug("cover page unreadable", "error", err)
		return nil, false
	}
	img := bm.Gray()
	if folder != nil {
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, img); err == nil {
			if err := folder.Write(cachedir.CoverBMPKey, buf.Bytes()); err != nil {
				d.log.Debug("could not cache cover", "error", err)
			}
		}
	}
	return img, true
}

// Close implements model.Document.
func (d *Document) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
