package cachedir

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// Strategy selects how a document fingerprint is computed.
type Strategy int

const (
	// SizeModTime hashes the file size and modification time. It is cheap
	// and catches every replacement done through the file system.
	SizeModTime Strategy = iota
	// ContentHash hashes the whole file with BLAKE3.
	ContentHash
)

func (s Strategy) String() string {
	switch s {
	case ContentHash:
		return "content"
	default:
		return "size-mtime"
	}
}

// ParseStrategy converts a settings value into a Strategy.
func ParseStrategy(s string) Strategy {
	if strings.EqualFold(s, "content") {
		return ContentHash
	}
	return SizeModTime
}

// Identity names one cache folder.
type Identity struct {
	Format      string // folder prefix, e.g. "epub"
	Path        string
	Fingerprint string
}

// FolderName returns the deterministic folder name for the identity.
func (id Identity) FolderName() string {
	return fmt.Sprintf("%s_%s_%s", id.Format, PathHash(id.Path), id.Fingerprint)
}

// PathHash returns a short stable hash of a source path.
func PathHash(path string) string {
	sum := blake3.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// Fingerprint computes the fingerprint of the file at path.
func Fingerprint(fsys storage.FileSystem, path string, strategy Strategy) (string, error) {
	if strategy == ContentHash {
		f, err := storage.Open(fsys, path)
		if err != nil {
			return "", model.Wrap(model.ErrOpen, "fingerprint", err)
		}
		defer f.Close()
		h := blake3.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", model.Wrap(model.ErrIO, "fingerprint", err)
		}
		return hex.EncodeToString(h.Sum(nil)[:8]), nil
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return "", model.Wrap(model.ErrOpen, "fingerprint", err)
	}
	sum := blake3.Sum256([]byte(fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())))
	return hex.EncodeToString(sum[:8]), nil
}
