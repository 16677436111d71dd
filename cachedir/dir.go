package cachedir

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// Well-known blob keys.
const (
	MetaKey     = "meta.bin"
	CoverBMPKey = "cover.bmp"
	CoverJPGKey = "cover.jpg"
)

// SectionKey returns the blob key for section n.
func SectionKey(n int) string {
	return fmt.Sprintf("section_%d.bin", n)
}

// ErrMiss is returned by Read when a blob is absent. A miss is never a
// failure; callers rebuild the blob.
var ErrMiss = errors.New("cachedir: cache miss")

// Dir is the root of all cache folders.
type Dir struct {
	root   string
	fs     storage.FileSystem
	logger *logging.Logger
}

// Option configures a Dir.
type Option func(*Dir)

// WithFileSystem sets the storage implementation.
func WithFileSystem(fsys storage.FileSystem) Option {
	return func(d *Dir) { d.fs = fsys }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dir) { d.logger = l }
}

// New creates a Dir rooted at root.
func New(root string, opts ...Option) *Dir {
	d := &Dir{
		root:   root,
		fs:     storage.Default,
		logger: logging.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the cache root directory.
func (d *Dir) Root() string { return d.root }

// FileSystem returns the storage the Dir operates on.
func (d *Dir) FileSystem() storage.FileSystem { return d.fs }

// Identify computes the identity of the document at path.
func (d *Dir) Identify(format, path string, strategy Strategy) (Identity, error) {
	fp, err := Fingerprint(d.fs, path, strategy)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Format: format, Path: path, Fingerprint: fp}, nil
}

// Resolve returns the cache folder path for id.
func (d *Dir) Resolve(id Identity) string {
	return filepath.Join(d.root, id.FolderName())
}

// Folder returns a handle on the cache folder for id. The folder is created
// lazily by the first Write.
func (d *Dir) Folder(id Identity) *Folder {
	return &Folder{dir: d, id: id, path: d.Resolve(id)}
}

// Invalidate removes the whole cache folder of id.
func (d *Dir) Invalidate(id Identity) error {
	path := d.Resolve(id)
	if err := d.fs.RemoveAll(path); err != nil {
		return model.Wrap(model.ErrIO, "invalidate", err)
	}
	d.logger.Debug("cache invalidated", "folder", path)
	return nil
}

// InvalidatePath removes every cache folder built for path under the given
// format, whatever its fingerprint. It is used when a download replaces the
// file at path.
func (d *Dir) InvalidatePath(format, path string) error {
	entries, err := d.fs.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return model.Wrap(model.ErrIO, "invalidate path", err)
	}
	prefix := format + "_" + PathHash(path) + "_"
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := d.fs.RemoveAll(filepath.Join(d.root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		d.logger.Debug("cache invalidated", "folder", e.Name(), "path", path)
	}
	if len(errs) > 0 {
		return model.Wrap(model.ErrIO, "invalidate path", errors.Join(errs...))
	}
	return nil
}

// Folder is the cache folder of one document identity.
type Folder struct {
	dir  *Dir
	id   Identity
	path string
}

// Identity returns the identity the folder belongs to.
func (f *Folder) Identity() Identity { return f.id }

// Path returns the folder path.
func (f *Folder) Path() string { return f.path }

// KeyPath returns the storage path of a key.
func (f *Folder) KeyPath(key string) string {
	return filepath.Join(f.path, key)
}

// Exists reports whether a blob is stored under key.
func (f *Folder) Exists(key string) bool {
	return storage.Exists(f.dir.fs, f.KeyPath(key))
}

// Read returns the blob stored under key, or ErrMiss.
func (f *Folder) Read(key string) ([]byte, error) {
	data, err := storage.ReadFile(f.dir.fs, f.KeyPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, model.Wrap(model.ErrIO, "read "+key, err)
	}
	return data, nil
}

// Write replaces the blob stored under key.
func (f *Folder) Write(key string, data []byte) error {
	if err := storage.WriteFileAtomic(f.dir.fs, f.KeyPath(key), data); err != nil {
		return model.Wrap(model.ErrIO, "write "+key, err)
	}
	return nil
}

// Remove deletes one blob. Removing an absent blob is not an error.
func (f *Folder) Remove(key string) error {
	err := f.dir.fs.Remove(f.KeyPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return model.Wrap(model.ErrIO, "remove "+key, err)
	}
	return nil
}

// ReadBlob decodes the blob under key into v. A missing blob yields ErrMiss;
// an undecodable one yields an error matching model.ErrCorruptFormat.
func (f *Folder) ReadBlob(key string, v any) error {
	data, err := f.Read(key)
	if err != nil {
		return err
	}
	return DecodeBlob(data, v)
}

// WriteBlob encodes v and stores it under key.
func (f *Folder) WriteBlob(key string, v any) error {
	data, err := EncodeBlob(v)
	if err != nil {
		return err
	}
	return f.Write(key, data)
}
