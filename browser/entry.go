package browser

import (
	"context"
	"errors"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/inkpage/netfetch"
)

// Sentinel errors.
var (
	ErrNoEntries = errors.New("browser: no entries found")
	ErrNoLink    = errors.New("browser: no download link")
	ErrNotSet    = errors.New("browser: setting not set")
)

// Entry is one row of a listing.
type Entry struct {
	Title  string
	Author string
	// Location is passed to Source.List for navigation entries. For leaves
	// it is the file path or download href.
	Location   string
	Navigation bool
}

// Label is the text shown for the entry.
func (e Entry) Label() string {
	if e.Author != "" {
		return e.Title + " - " + e.Author
	}
	return e.Title
}

// Source lists the entries at a location.
type Source interface {
	Root() string
	List(ctx context.Context, location string) ([]Entry, error)
}

// Downloader saves leaves.
type Downloader interface {
	// Target returns the path e will be saved at.
	Target(e Entry) (string, error)
	Download(ctx context.Context, e Entry, dest string, progress netfetch.Progress) error
}

// Prerequisite must pass before listing, e.g. a configured server.
type Prerequisite interface {
	Check(ctx context.Context) error
}

// PrerequisiteFunc adapts a function to a Prerequisite.
type PrerequisiteFunc func(ctx context.Context) error

// Check implements Prerequisite.
func (fn PrerequisiteFunc) Check(ctx context.Context) error { return fn(ctx) }

// RequireSetting fails while value is empty, with a message naming the
// setting.
func RequireSetting(name, value string) Prerequisite {
	return PrerequisiteFunc(func(context.Context) error {
		if strings.TrimSpace(value) == "" {
			return &settingError{name: name}
		}
		return nil
	})
}

type settingError struct{ name string }

func (e *settingError) Error() string { return e.name + " not set" }
func (e *settingError) Unwrap() error { return ErrNotSet }

// All combines prerequisites, failing on the first that fails.
func All(ps ...Prerequisite) Prerequisite {
	return PrerequisiteFunc(func(ctx context.Context) error {
		for _, p := range ps {
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// FileName builds the file name for a downloaded entry: "Title - Author"
// made safe for a FAT file system, plus an extension taken from the href.
// fallback names entries whose title sanitizes to nothing.
func FileName(e Entry, fallback string) string {
	base := SanitizeFileName(e.Label())
	if base == "" {
		base = fallback
	}
	return base + extension(e.Location)
}

func extension(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	switch strings.ToLower(path.Ext(href)) {
	case ".xtch":
		return ".xtch"
	case ".xtc":
		return ".xtc"
	default:
		return ".epub"
	}
}

const maxFileNameRunes = 100

// SanitizeFileName replaces characters FAT file systems reject, collapses
// whitespace and trims leading and trailing dots and spaces.
func SanitizeFileName(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, ". ")
	if r := []rune(out); len(r) > maxFileNameRunes {
		out = strings.TrimRight(string(r[:maxFileNameRunes]), ". ")
	}
	return out
}
