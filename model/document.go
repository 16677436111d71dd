package model

import "image"

// Document is the contract every format loader satisfies.
//
// Implementations are not safe for concurrent use; a document is owned by a
// single worker goroutine for its whole lifetime.
type Document interface {
	// Metadata returns document-level information.
	Metadata() Metadata

	// SectionCount returns the number of sections (1 for flat formats).
	SectionCount() int

	// PageCount returns the number of pages in a section, building the
	// section layout if it is not cached yet.
	PageCount(section int) (int, error)

	// LoadPage returns the page at pos.
	LoadPage(pos Position) (*Page, error)

	// TOC returns the table of contents, which may be empty.
	TOC() []TOCEntry

	// Cover returns the cover image if one exists. Unsupported cover formats
	// yield (nil, false), never an error.
	Cover() (image.Image, bool)

	// Close releases in-memory resources. The on-disk cache is kept.
	Close() error
}

// Metadata contains document-level information
type Metadata struct {
	Title    string   `msgpack:"title"`
	Authors  []string `msgpack:"authors"`
	Language string   `msgpack:"lang"`
	Format   string   `msgpack:"format"`
}

// TOCEntry is one navigation entry resolved to a position
type TOCEntry struct {
	Title    string   `msgpack:"title"`
	Level    int      `msgpack:"level"`
	Position Position `msgpack:"pos"`
}

// Position is a resume cursor: (section index, page-in-section index), both
// zero-based. Flat formats use Section 0.
type Position struct {
	Section int `msgpack:"s"`
	Page    int `msgpack:"p"`
}

// Direction records the last navigation move
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionForward
	DirectionBackward
)

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "unknown"
	}
}
