package browser

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tsawler/inkpage/format"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// LocalSource lists the library on disk. Folders are navigation entries,
// documents in a supported format are leaves whose Location is the file
// path. Hidden names are skipped.
type LocalSource struct {
	FS  storage.FileSystem
	Dir string
}

// NewLocalSource lists the library under dir. A nil fsys uses the local
// file system.
func NewLocalSource(dir string, fsys storage.FileSystem) *LocalSource {
	if fsys == nil {
		fsys = storage.Default
	}
	return &LocalSource{FS: fsys, Dir: dir}
}

// Root is the library root, as a location.
func (s *LocalSource) Root() string { return "" }

// List returns folders first, then documents, each sorted by name.
func (s *LocalSource) List(ctx context.Context, location string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	des, err := s.FS.ReadDir(filepath.Join(s.Dir, location))
	if err != nil {
		return nil, model.Wrap(model.ErrIO, "list", err)
	}

	var entries []Entry
	for _, de := range des {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch {
		case de.IsDir():
			entries = append(entries, Entry{
				Title:      name,
				Location:   filepath.Join(location, name),
				Navigation: true,
			})
		case format.Supported(name):
			entries = append(entries, Entry{
				Title:    name,
				Location: filepath.Join(s.Dir, location, name),
			})
		}
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		if a.Navigation != b.Navigation {
			if a.Navigation {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	return entries, nil
}
