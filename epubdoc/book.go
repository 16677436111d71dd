// Package epubdoc loads EPUB e-books as paginated documents.
//
// Opening a book indexes it once: the container, package document and
// navigation are parsed and the result is persisted as the metadata blob of
// the book's cache folder. Chapters are laid out lazily, one section blob
// per spine item, the first time a page of that chapter is requested.
package epubdoc

import (
	"archive/zip"
	"compress/flate"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/cover"
	"github.com/tsawler/inkpage/htmldoc"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// FormatName is the cache folder prefix of EPUB books.
const FormatName = "epub"

// Config configures Open.
type Config struct {
	Cache    *cachedir.Dir
	Params   layout.Params
	Strategy cachedir.Strategy
	Logger   *logging.Logger
	// Exclusion is applied to every chapter.
	Exclusion htmldoc.NavigationExclusionMode
}

// metaBlob is the persisted index of a book. It holds slices only so that
// indexing the same archive twice encodes to identical bytes.
type metaBlob struct {
	Params    string           `msgpack:"params"`
	Title     string           `msgpack:"title"`
	Authors   []string         `msgpack:"authors"`
	Language  string           `msgpack:"lang"`
	Spine     []spineBlob      `msgpack:"spine"`
	TOC       []model.TOCEntry `msgpack:"toc"`
	CoverPath string           `msgpack:"cover"`
	CoverType string           `msgpack:"cover_type"`
}

type spineBlob struct {
	Path   string `msgpack:"path"`
	Linear bool   `msgpack:"linear"`
}

// sectionBlob is the persisted layout of one chapter.
type sectionBlob struct {
	Params string        `msgpack:"params"`
	Pages  []*model.Page `msgpack:"pages"`
}

// Book is an open EPUB. It implements model.Document and is not safe for
// concurrent use.
type Book struct {
	cfg     Config
	fs      storage.FileSystem
	path    string
	id      cachedir.Identity
	folder  *cachedir.Folder
	params  string
	metrics layout.Metrics
	log     *logging.Logger

	meta metaBlob
	arc  *archive // opened on the first section build

	counts []int // pages per section, -1 until known
	cur    int   // section held in pages, -1 for none
	pages  []*model.Page

	indexed bool
	built   int
}

// Open opens the book at path, indexing it unless a valid metadata blob is
// cached. Failures are classified as model.ErrOpen or model.ErrCorruptFormat.
func Open(path string, cfg Config) (*Book, error) {
	if cfg.Cache == nil {
		return nil, model.Wrap(model.ErrOpen, "epub open", errors.New("no cache directory"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, model.Wrap(model.ErrOpen, "epub open", err)
	}
	metrics, err := layout.MetricsFor(cfg.Params)
	if err != nil {
		return nil, model.Wrap(model.ErrOpen, "epub open", err)
	}

	id, err := cfg.Cache.Identify(FormatName, path, cfg.Strategy)
	if err != nil {
		return nil, err
	}

	b := &Book{
		cfg:     cfg,
		fs:      cfg.Cache.FileSystem(),
		path:    path,
		id:      id,
		folder:  cfg.Cache.Folder(id),
		params:  cfg.Params.Fingerprint(),
		metrics: metrics,
		log:     cfg.Logger.WithDocument(path).WithComponent("epub"),
		cur:     -1,
	}

	if err := b.loadMeta(); err != nil {
		b.Close()
		return nil, err
	}
	b.counts = make([]int, len(b.meta.Spine))
	for i := range b.counts {
		b.counts[i] = -1
	}
	return b, nil
}

// loadMeta reads the metadata blob, indexing the archive on a miss, on a
// corrupt blob, or when the blob was built with different layout params.
func (b *Book) loadMeta() error {
	var meta metaBlob
	err := b.folder.ReadBlob(cachedir.MetaKey, &meta)
	switch {
	case err == nil && meta.Params == b.params:
		b.meta = meta
		b.log.Debug("metadata cache hit", "folder", b.folder.Path())
		return nil
	case err == nil:
		b.log.Info("layout params changed, re-indexing", "old", meta.Params, "new", b.params)
		if err := b.cfg.Cache.Invalidate(b.id); err != nil {
			return err
		}
	case errors.Is(err, cachedir.ErrMiss):
	case errors.Is(err, model.ErrCorruptFormat):
		b.log.Warn("corrupt metadata blob, re-indexing", "error", err)
	default:
		return err
	}
	return b.index()
}

// index parses the archive and persists the metadata blob.
func (b *Book) index() error {
	start := time.Now()

	arc, err := b.archive()
	if err != nil {
		return err
	}
	if err := arc.checkMimetype(); err != nil {
		b.log.Debug("ignoring mimetype problem", "error", err)
	}
	if err := checkForDRM(arc); err != nil {
		return model.Wrap(model.ErrOpen, "epub index", err)
	}
	opfPath, err := parseContainer(arc)
	if err != nil {
		return model.Wrap(model.ErrCorruptFormat, "epub index", err)
	}
	pkg, err := parseOPF(arc, opfPath)
	if err != nil {
		return model.Wrap(model.ErrCorruptFormat, "epub index", err)
	}

	meta := metaBlob{
		Params:   b.params,
		Title:    pkg.Title,
		Authors:  pkg.Authors,
		Language: pkg.Language,
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(filepath.Base(b.path), filepath.Ext(b.path))
	}

	section := make(map[string]int, len(pkg.spine))
	for i, si := range pkg.spine {
		meta.Spine = append(meta.Spine, spineBlob{Path: si.Item.Path, Linear: si.Linear})
		if _, ok := section[si.Item.Path]; !ok {
			section[si.Item.Path] = i
		}
	}
	for _, e := range parseNavigation(arc, pkg) {
		idx, ok := section[e.Path]
		if !ok {
			continue
		}
		meta.TOC = append(meta.TOC, model.TOCEntry{
			Title:    e.Title,
			Level:    e.Level,
			Position: model.Position{Section: idx},
		})
	}
	if item, ok := pkg.coverItem(); ok {
		meta.CoverPath = item.Path
		meta.CoverType = item.MediaType
	}

	if err := b.folder.WriteBlob(cachedir.MetaKey, meta); err != nil {
		return err
	}
	b.meta = meta
	b.indexed = true
	b.log.Info("indexed book",
		"sections", len(meta.Spine),
		"toc", len(meta.TOC),
		"duration", time.Since(start))
	return nil
}

// archive opens the source archive on first use.
func (b *Book) archive() (*archive, error) {
	if b.arc != nil {
		return b.arc, nil
	}
	arc, err := openArchive(b.fs, b.path)
	if err != nil {
		if errors.Is(err, ErrInvalidArchive) {
			return nil, model.Wrap(model.ErrCorruptFormat, "epub open", err)
		}
		return nil, model.Wrap(model.ErrOpen, "epub open", err)
	}
	b.arc = arc
	return arc, nil
}

// Metadata implements model.Document.
func (b *Book) Metadata() model.Metadata {
	return model.Metadata{
		Title:    b.meta.Title,
		Authors:  b.meta.Authors,
		Language: b.meta.Language,
		Format:   FormatName,
	}
}

// SectionCount implements model.Document.
func (b *Book) SectionCount() int {
	return len(b.meta.Spine)
}

// Linear reports whether a section is part of the main reading order.
func (b *Book) Linear(section int) bool {
	return section >= 0 && section < len(b.meta.Spine) && b.meta.Spine[section].Linear
}

// PageCount implements model.Document.
func (b *Book) PageCount(section int) (int, error) {
	if section < 0 || section >= len(b.meta.Spine) {
		return 0, model.OutOfBounds("epub page count", section, len(b.meta.Spine))
	}
	if n := b.counts[section]; n >= 0 {
		return n, nil
	}
	if err := b.ensureSection(section); err != nil {
		return 0, err
	}
	return b.counts[section], nil
}

// LoadPage implements model.Document.
func (b *Book) LoadPage(pos model.Position) (*model.Page, error) {
	if pos.Section < 0 || pos.Section >= len(b.meta.Spine) {
		return nil, model.OutOfBounds("epub load page", pos.Section, len(b.meta.Spine))
	}
	if err := b.ensureSection(pos.Section); err != nil {
		return nil, err
	}
	if pos.Page < 0 || pos.Page >= len(b.pages) {
		return nil, model.OutOfBounds("epub load page", pos.Page, len(b.pages))
	}
	return b.pages[pos.Page], nil
}

// ensureSection makes section n the one held in memory, reading its blob or
// building it. A failure leaves the previously held section untouched.
func (b *Book) ensureSection(n int) error {
	if b.cur == n {
		return nil
	}

	var blob sectionBlob
	err := b.folder.ReadBlob(cachedir.SectionKey(n), &blob)
	switch {
	case err == nil && blob.Params == b.params && len(blob.Pages) > 0:
		b.hold(n, blob.Pages)
		return nil
	case err == nil:
		b.log.Debug("stale section blob", "section", n)
	case errors.Is(err, cachedir.ErrMiss):
	default:
		b.log.Warn("unreadable section blob, rebuilding", "section", n, "error", err)
	}

	pages, err := b.buildSection(n)
	if err != nil {
		return err
	}
	b.hold(n, pages)
	return nil
}

func (b *Book) hold(n int, pages []*model.Page) {
	b.cur = n
	b.pages = pages
	b.counts[n] = len(pages)
}

// buildSection lays out one chapter and persists the result.
func (b *Book) buildSection(n int) ([]*model.Page, error) {
	start := time.Now()
	arc, err := b.archive()
	if err != nil {
		return nil, err
	}
	href := b.meta.Spine[n].Path
	data, err := arc.read(href)
	if err != nil {
		if damagedEntry(err) {
			return nil, model.Wrap(model.ErrCorruptFormat, "epub build section", err)
		}
		return nil, model.Wrap(model.ErrIO, "epub build section", err)
	}
	ch, err := htmldoc.ParseBytes(data, htmldoc.Options{Exclusion: b.cfg.Exclusion})
	if err != nil {
		return nil, model.Wrap(model.ErrCorruptFormat, "epub build section", err)
	}
	pages := layout.Paginate(ch.Blocks, b.cfg.Params, b.metrics)

	if err := b.folder.WriteBlob(cachedir.SectionKey(n), sectionBlob{Params: b.params, Pages: pages}); err != nil {
		// The pages are still good; the next open rebuilds them.
		b.log.Warn("could not persist section", "section", n, "error", err)
	}
	b.built++
	b.log.Debug("built section",
		"section", n,
		"href", href,
		"pages", len(pages),
		"duration", time.Since(start))
	return pages, nil
}

// TOC implements model.Document.
func (b *Book) TOC() []model.TOCEntry {
	return b.meta.TOC
}

// Cover implements model.Document. The decoded source image is cached in
// the book's folder; unsupported encodings yield no cover.
func (b *Book) Cover() (image.Image, bool) {
	for _, kind := range []cover.Kind{cover.KindJPEG, cover.KindBMP} {
		data, err := b.folder.Read(coverKey(kind))
		if err != nil {
			continue
		}
		if img, err := cover.Decode(kind, data); err == nil {
			return img, true
		}
	}
	if b.meta.CoverPath == "" {
		return nil, false
	}

	kind := cover.KindOf(b.meta.CoverType)
	if kind == cover.KindUnknown {
		kind = cover.KindOf(b.meta.CoverPath)
	}
	if !kind.Supported() {
		b.log.Debug("unsupported cover format", "cover", b.meta.CoverPath, "type", b.meta.CoverType)
		return nil, false
	}
	arc, err := b.archive()
	if err != nil {
		return nil, false
	}
	data, err := arc.read(b.meta.CoverPath)
	if err != nil {
		b.log.Debug("cover missing from archive", "cover", b.meta.CoverPath)
		return nil, false
	}
	img, err := cover.Decode(kind, data)
	if err != nil {
		b.log.Debug("cover not decodable", "error", err)
		return nil, false
	}
	if err := b.folder.Write(coverKey(kind), data); err != nil {
		b.log.Debug("could not cache cover", "error", err)
	}
	return img, true
}

func coverKey(kind cover.Kind) string {
	if kind == cover.KindBMP {
		return cachedir.CoverBMPKey
	}
	return cachedir.CoverJPGKey
}

// Indexed reports whether Open had to build the metadata blob.
func (b *Book) Indexed() bool {
	return b.indexed
}

// SectionsBuilt returns how many sections were laid out since Open.
func (b *Book) SectionsBuilt() int {
	return b.built
}

// CacheFolder returns the path of the book's cache folder.
func (b *Book) CacheFolder() string {
	return b.folder.Path()
}

// ClearCache removes the book's cache folder. The book stays usable and
// rebuilds sections on demand.
func (b *Book) ClearCache() error {
	b.cur, b.pages = -1, nil
	return b.cfg.Cache.Invalidate(b.id)
}

// Close implements model.Document.
func (b *Book) Close() error {
	b.pages = nil
	b.cur = -1
	if b.arc != nil {
		err := b.arc.Close()
		b.arc = nil
		return err
	}
	return nil
}

// damagedEntry reports whether a chapter read failed on the archive's
// content rather than on storage.
func damagedEntry(err error) bool {
	var flateErr flate.CorruptInputError
	return errors.Is(err, ErrMissingContent) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.As(err, &flateErr)
}
