package inkpage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/epubdoc"
	"github.com/tsawler/inkpage/format"
	"github.com/tsawler/inkpage/htmldoc"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
	"github.com/tsawler/inkpage/txtdoc"
	"github.com/tsawler/inkpage/xtc"
)

// ErrUnsupportedFormat is returned for files that are neither EPUB, XTC,
// XTCH nor plain text.
var ErrUnsupportedFormat = errors.New("inkpage: unsupported file format")

// Loader provides a fluent interface for opening documents.
// Each configuration method returns a new Loader instance, making it
// safe for concurrent use and allowing method chaining.
type Loader struct {
	path    string
	options LoadOptions
}

// clone creates a copy of the Loader so chain methods never mutate the
// receiver.
func (l *Loader) clone() *Loader {
	return &Loader{path: l.path, options: l.options.clone()}
}

// CacheRoot sets the directory under which per-document cache folders are
// created.
func (l *Loader) CacheRoot(dir string) *Loader {
	n := l.clone()
	n.options.cacheRoot = dir
	return n
}

// Cache uses an existing cache directory. It overrides CacheRoot and
// FileSystem for cache access.
func (l *Loader) Cache(c *cachedir.Dir) *Loader {
	n := l.clone()
	n.options.cache = c
	return n
}

// Params sets the layout parameters used for pagination.
func (l *Loader) Params(p layout.Params) *Loader {
	n := l.clone()
	n.options.params = p
	return n
}

// FileSystem sets the storage the document and its cache live on.
func (l *Loader) FileSystem(fsys storage.FileSystem) *Loader {
	n := l.clone()
	n.options.fs = fsys
	return n
}

// Logger sets the logger handed to the format loader.
func (l *Loader) Logger(log *logging.Logger) *Loader {
	n := l.clone()
	n.options.logger = log
	return n
}

// Fingerprint selects how document identity is computed.
func (l *Loader) Fingerprint(s cachedir.Strategy) *Loader {
	n := l.clone()
	n.options.strategy = s
	return n
}

// ExcludeNavigation sets how EPUB chapters treat navigation markup.
func (l *Loader) ExcludeNavigation(mode htmldoc.NavigationExclusionMode) *Loader {
	n := l.clone()
	n.options.exclusion = mode
	return n
}

// Format skips detection and opens the file as f.
func (l *Loader) Format(f format.Format) *Loader {
	n := l.clone()
	n.options.format = f
	return n
}

// DefaultCacheRoot returns the cache root used when none is configured.
func DefaultCacheRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "inkpage")
}

func (l *Loader) logger() *logging.Logger {
	if l.options.logger != nil {
		return l.options.logger
	}
	return logging.Noop()
}

func (l *Loader) cacheDir() *cachedir.Dir {
	if l.options.cache != nil {
		return l.options.cache
	}
	root := l.options.cacheRoot
	if root == "" {
		root = DefaultCacheRoot()
	}
	return cachedir.New(root,
		cachedir.WithFileSystem(l.options.fs),
		cachedir.WithLogger(l.logger()))
}

// detect resolves the document format, by extension first and then by
// content.
func (l *Loader) detect() (format.Format, error) {
	if l.options.format != format.Unknown {
		return l.options.format, nil
	}
	if f := format.Detect(l.path); f != format.Unknown {
		return f, nil
	}

	f, err := storage.Open(l.options.fs, l.path)
	if err != nil {
		return format.Unknown, model.Wrap(model.ErrOpen, "detect", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return format.Unknown, model.Wrap(model.ErrIO, "detect", err)
	}
	got, err := format.DetectFromReader(f, info.Size())
	if err != nil {
		return format.Unknown, model.Wrap(model.ErrCorruptFormat, "detect", err)
	}
	if got == format.Unknown {
		return format.Unknown, model.Wrap(model.ErrOpen, "detect", fmt.Errorf("%w: %s", ErrUnsupportedFormat, l.path))
	}
	return got, nil
}

// Load opens the document. The returned Document must be closed.
func (l *Loader) Load() (model.Document, error) {
	if l.path == "" {
		return nil, model.Wrap(model.ErrOpen, "load", fmt.Errorf("no path specified"))
	}
	f, err := l.detect()
	if err != nil {
		return nil, err
	}

	var doc model.Document
	switch f {
	case format.EPUB:
		b, err := epubdoc.Open(l.path, epubdoc.Config{
			Cache:     l.cacheDir(),
			Params:    l.options.params,
			Strategy:  l.options.strategy,
			Logger:    l.logger(),
			Exclusion: l.options.exclusion,
		})
		if err != nil {
			return nil, err
		}
		doc = b
	case format.TXT:
		t, err := txtdoc.Open(l.path, txtdoc.Config{
			Cache:    l.cacheDir(),
			Params:   l.options.params,
			Strategy: l.options.strategy,
			Logger:   l.logger(),
		})
		if err != nil {
			return nil, err
		}
		doc = t
	case format.XTC, format.XTCH:
		x, err := xtc.Open(l.path, xtc.Config{
			FileSystem: l.options.fs,
			Cache:      l.cacheDir(),
			Strategy:   l.options.strategy,
			Logger:     l.logger(),
		})
		if err != nil {
			return nil, err
		}
		doc = x
	default:
		return nil, model.Wrap(model.ErrOpen, "load", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f))
	}
	return doc, nil
}

// PageCount opens the document, sums the pages of every section and
// closes it again.
func (l *Loader) PageCount() (int, error) {
	doc, err := l.Load()
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return TotalPages(doc)
}

// ClearCache removes every cache folder built for the document, whatever
// its fingerprint.
func (l *Loader) ClearCache() error {
	f, err := l.detect()
	if err != nil {
		return err
	}
	return l.cacheDir().InvalidatePath(CachePrefix(f), l.path)
}

// InvalidateAll removes the cache folders of every format for path. It is
// used when a download replaces the file.
func InvalidateAll(dir *cachedir.Dir, path string) error {
	var errs []error
	for _, f := range []format.Format{format.EPUB, format.TXT, format.XTC, format.XTCH} {
		if err := dir.InvalidatePath(CachePrefix(f), path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CachePrefix returns the cache folder prefix a format's loader uses.
func CachePrefix(f format.Format) string {
	switch f {
	case format.EPUB:
		return epubdoc.FormatName
	case format.TXT:
		return txtdoc.FormatName
	case format.XTCH:
		return xtc.FormatXTCH
	default:
		return xtc.FormatXTC
	}
}

// TotalPages sums the page counts of every section, building sections that
// are not cached yet.
func TotalPages(doc model.Document) (int, error) {
	total := 0
	for s := 0; s < doc.SectionCount(); s++ {
		n, err := doc.PageCount(s)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
