package txtdoc

import (
	"bufio"
	"bytes"
	"errors"
	"image"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/cover"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// FormatName is the cache folder prefix of text documents.
const FormatName = "txt"

// Config configures Open.
type Config struct {
	Cache    *cachedir.Dir
	Params   layout.Params
	Strategy cachedir.Strategy
	Logger   *logging.Logger
}

// metaBlob is the persisted page index.
type metaBlob struct {
	Params   string  `msgpack:"params"`
	Size     int64   `msgpack:"size"`
	Encoding string  `msgpack:"enc"`
	Offsets  []int64 `msgpack:"offsets"`
}

// Document is an open text file. It implements model.Document and is not
// safe for concurrent use.
type Document struct {
	cfg     Config
	fs      storage.FileSystem
	path    string
	id      cachedir.Identity
	folder  *cachedir.Folder
	params  string
	metrics layout.Metrics
	log     *logging.Logger

	meta    metaBlob
	dec     decoder
	f       storage.File
	indexed bool
}

// Open opens the text file at path, indexing it unless a page index built
// with the same layout params is cached.
func Open(path string, cfg Config) (*Document, error) {
	if cfg.Cache == nil {
		return nil, model.Wrap(model.ErrOpen, "txt open", errors.New("no cache directory"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, model.Wrap(model.ErrOpen, "txt open", err)
	}
	metrics, err := layout.MetricsFor(cfg.Params)
	if err != nil {
		return nil, model.Wrap(model.ErrOpen, "txt open", err)
	}
	id, err := cfg.Cache.Identify(FormatName, path, cfg.Strategy)
	if err != nil {
		return nil, err
	}

	d := &Document{
		cfg:     cfg,
		fs:      cfg.Cache.FileSystem(),
		path:    path,
		id:      id,
		folder:  cfg.Cache.Folder(id),
		params:  cfg.Params.Fingerprint(),
		metrics: metrics,
		log:     cfg.Logger.WithDocument(path).WithComponent("txt"),
	}

	var meta metaBlob
	err = d.folder.ReadBlob(cachedir.MetaKey, &meta)
	switch {
	case err == nil && meta.Params == d.params && len(meta.Offsets) > 0:
		d.meta = meta
		d.dec = decoder{encoding: meta.Encoding}
		d.log.Debug("page index cache hit", "pages", len(meta.Offsets))
		return d, nil
	case err == nil:
		d.log.Info("layout params changed, re-indexing", "old", meta.Params, "new", d.params)
	case errors.Is(err, cachedir.ErrMiss):
	case errors.Is(err, model.ErrCorruptFormat):
		d.log.Warn("corrupt page index, re-indexing", "error", err)
	default:
		return nil, err
	}

	if err := d.index(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Document) file() (storage.File, error) {
	if d.f != nil {
		return d.f, nil
	}
	f, err := storage.Open(d.fs, d.path)
	if err != nil {
		return nil, model.Wrap(model.ErrOpen, "txt open", err)
	}
	d.f = f
	return f, nil
}

// index wraps the whole file once and records where every page starts.
func (d *Document) index() error {
	start := time.Now()
	f, err := d.file()
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return model.Wrap(model.ErrIO, "txt index", err)
	}
	size := info.Size()

	sample := make([]byte, min(size, sniffLen))
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), sample); err != nil {
		return model.Wrap(model.ErrIO, "txt index", err)
	}
	d.dec = decoder{encoding: detectEncoding(sample, int64(len(sample)) == size)}

	var off int64
	if bytes.HasPrefix(sample, utf8BOM) {
		off = int64(len(utf8BOM))
	}
	ix := &indexer{dec: d.dec, first: off}
	pg := layout.NewPaginator(d.cfg.Params, d.metrics)
	pg.OnPage = ix.onPage

	br := bufio.NewReaderSize(io.NewSectionReader(f, off, size-off), 64<<10)
	block := 0
	for {
		raw, rerr := br.ReadBytes('\n')
		if len(raw) > 0 {
			text := trimEOL(d.dec.decode(raw))
			ix.lines = append(ix.lines, pendingLine{block: block, off: off, text: text})
			pg.Add(block, layout.Block{Kind: model.BlockParagraph, Text: text})
			block++
			off += int64(len(raw))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return model.Wrap(model.ErrIO, "txt index", rerr)
		}
	}
	pg.Finish()

	meta := metaBlob{
		Params:   d.params,
		Size:     size,
		Encoding: d.dec.encoding,
		Offsets:  ix.offsets,
	}
	if err := d.folder.WriteBlob(cachedir.MetaKey, meta); err != nil {
		return err
	}
	d.meta = meta
	d.indexed = true
	d.log.Info("indexed text",
		"bytes", size,
		"encoding", meta.Encoding,
		"pages", len(meta.Offsets),
		"duration", time.Since(start))
	return nil
}

type pendingLine struct {
	block int
	off   int64
	text  string
}

// indexer turns completed pages into source offsets. It keeps only the
// lines that a not yet completed page can start in.
type indexer struct {
	dec     decoder
	first   int64 // offset of the first text byte
	lines   []pendingLine
	offsets []int64
}

func (ix *indexer) onPage(p *model.Page) {
	if len(ix.offsets) == 0 || len(p.Lines) == 0 {
		ix.offsets = append(ix.offsets, ix.first)
		return
	}
	head := p.Lines[0]
	for i, l := range ix.lines {
		if l.block == head.Block {
			ix.offsets = append(ix.offsets, l.off+int64(ix.dec.sourceOffset(l.text, head.Offset)))
			ix.lines = ix.lines[i:]
			return
		}
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// Metadata implements model.Document.
func (d *Document) Metadata() model.Metadata {
	return model.Metadata{
		Title:  strings.TrimSuffix(filepath.Base(d.path), filepath.Ext(d.path)),
		Format: FormatName,
	}
}

// SectionCount implements model.Document.
func (d *Document) SectionCount() int { return 1 }

// PageCount implements model.Document.
func (d *Document) PageCount(section int) (int, error) {
	if section != 0 {
		return 0, model.OutOfBounds("txt page count", section, 1)
	}
	return len(d.meta.Offsets), nil
}

// PageOffsets returns the source byte offset of every page.
func (d *Document) PageOffsets() []int64 {
	return d.meta.Offsets
}

// Encoding returns the detected source encoding.
func (d *Document) Encoding() string {
	return d.dec.encoding
}

// LoadPage implements model.Document. It reads only the bytes of the
// requested page.
func (d *Document) LoadPage(pos model.Position) (*model.Page, error) {
	if pos.Section != 0 {
		return nil, model.OutOfBounds("txt load page", pos.Section, 1)
	}
	n := len(d.meta.Offsets)
	if pos.Page < 0 || pos.Page >= n {
		return nil, model.OutOfBounds("txt load page", pos.Page, n)
	}
	start, end := d.meta.Offsets[pos.Page], d.meta.Size
	if pos.Page+1 < n {
		end = d.meta.Offsets[pos.Page+1]
	}

	f, err := d.file()
	if err != nil {
		return nil, err
	}
	raw := make([]byte, end-start)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, end-start), raw); err != nil {
		return nil, model.Wrap(model.ErrIO, "txt load page", err)
	}

	lines := splitLines(d.dec.decode(raw))
	blocks := make([]layout.Block, len(lines))
	for i, l := range lines {
		blocks[i] = layout.Block{Kind: model.BlockParagraph, Text: l}
	}
	pages := layout.Paginate(blocks, d.cfg.Params, d.metrics)
	if len(pages) > 1 {
		d.log.Warn("page re-wrap overflowed", "page", pos.Page, "pages", len(pages))
	}
	page := pages[0]
	page.Number = pos.Page + 1
	return page, nil
}

// TOC implements model.Document. Text files have no table of contents.
func (d *Document) TOC() []model.TOCEntry { return nil }

// Cover implements model.Document. It looks for an image named like the
// text file; PNG siblings are unsupported and yield no cover.
func (d *Document) Cover() (image.Image, bool) {
	for _, kind := range []cover.Kind{cover.KindJPEG, cover.KindBMP} {
		key := cachedir.CoverJPGKey
		if kind == cover.KindBMP {
			key = cachedir.CoverBMPKey
		}
		if data, err := d.folder.Read(key); err == nil {
			if img, err := cover.Decode(kind, data); err == nil {
				return img, true
			}
		}
	}

	p, kind, err := cover.Sibling(d.fs, d.path)
	if err != nil {
		if errors.Is(err, model.ErrUnsupportedFeature) {
			d.log.Debug("no usable cover", "candidate", p, "reason", err)
		}
		return nil, false
	}
	if p == "" {
		return nil, false
	}
	data, err := storage.ReadFile(d.fs, p)
	if err != nil {
		d.log.Debug("cover unreadable", "cover", p, "error", err)
		return nil, false
	}
	img, err := cover.Decode(kind, data)
	if err != nil {
		d.log.Debug("cover not decodable", "cover", p, "error", err)
		return nil, false
	}
	key := cachedir.CoverJPGKey
	if kind == cover.KindBMP {
		key = cachedir.CoverBMPKey
	}
	if err := d.folder.Write(key, data); err != nil {
		d.log.Debug("could not cache cover", "error", err)
	}
	return img, true
}

// Indexed reports whether Open had to build the page index.
func (d *Document) Indexed() bool { return d.indexed }

// CacheFolder returns the path of the document's cache folder.
func (d *Document) CacheFolder() string { return d.folder.Path() }

// ClearCache removes the document's cache folder.
func (d *Document) ClearCache() error {
	return d.cfg.Cache.Invalidate(d.id)
}

// Close implements model.Document.
func (d *Document) Close() error {
	if d.f != nil {
		err := d.f.Close()
		d.f = nil
		return err
	}
	return nil
}
