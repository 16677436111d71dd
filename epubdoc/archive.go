package epubdoc

import (
	"archive/zip"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/tsawler/inkpage/storage"
)

// Archive errors.
var (
	ErrInvalidArchive  = errors.New("epub: invalid or corrupted archive")
	ErrInvalidMimetype = errors.New("epub: invalid mimetype (not an EPUB)")
	ErrMissingContent  = errors.New("epub: referenced content file not found")
)

// archive is an open EPUB zip with a name index over its entries.
type archive struct {
	f     storage.File
	zr    *zip.Reader
	files map[string]*zip.File
}

func openArchive(fsys storage.FileSystem, name string) (*archive, error) {
	f, err := storage.Open(fsys, name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, ErrInvalidArchive
	}
	a := &archive{f: f, zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, zf := range zr.File {
		a.files[zf.Name] = zf
	}
	return a, nil
}

func (a *archive) Close() error {
	return a.f.Close()
}

func (a *archive) has(name string) bool {
	_, ok := a.files[name]
	return ok
}

// read decompresses one entry.
func (a *archive) read(name string) ([]byte, error) {
	zf, ok := a.files[name]
	if !ok {
		return nil, ErrMissingContent
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// checkMimetype validates the mimetype entry. Many real-world files get it
// wrong, so callers only log the result.
func (a *archive) checkMimetype() error {
	data, err := a.read("mimetype")
	if err != nil {
		return ErrInvalidMimetype
	}
	if strings.TrimSpace(string(data)) != "application/epub+zip" {
		return ErrInvalidMimetype
	}
	return nil
}

// resolveHref resolves an href relative to base and drops any fragment.
func resolveHref(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	if base == "" {
		return path.Clean(href)
	}
	return path.Join(base, href)
}
