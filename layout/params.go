package layout

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Version is bumped whenever the layout algorithm changes in a way that
// moves page boundaries.
const Version = 1

// Params holds every setting that influences pagination.
type Params struct {
	ScreenWidth  int
	ScreenHeight int

	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int

	// FontFace selects the metrics: "basic", "inconsolata" or "cell".
	FontFace string
	// FontSize is the cell height in pixels for the "cell" face.
	FontSize int

	// LineSpacing is the line advance in percent of the line height.
	LineSpacing int
	// ParagraphSpacing is the extra gap in pixels between blocks.
	ParagraphSpacing int
	// ListIndent is the indent in pixels per list nesting level.
	ListIndent int
}

// DefaultParams returns the layout of a 480x800 portrait e-ink panel.
func DefaultParams() Params {
	return Params{
		ScreenWidth:      480,
		ScreenHeight:     800,
		MarginTop:        20,
		MarginRight:      20,
		MarginBottom:     40,
		MarginLeft:       20,
		FontFace:         "inconsolata",
		FontSize:         16,
		LineSpacing:      115,
		ParagraphSpacing: 8,
		ListIndent:       16,
	}
}

// ContentWidth returns the usable line width.
func (p Params) ContentWidth() int {
	return p.ScreenWidth - p.MarginLeft - p.MarginRight
}

// ContentHeight returns the usable page height.
func (p Params) ContentHeight() int {
	return p.ScreenHeight - p.MarginTop - p.MarginBottom
}

// Validate checks that the parameters describe a usable page.
func (p Params) Validate() error {
	if p.ContentWidth() <= 0 || p.ContentHeight() <= 0 {
		return fmt.Errorf("layout: margins leave no content area (%dx%d)", p.ContentWidth(), p.ContentHeight())
	}
	if p.LineSpacing <= 0 {
		return fmt.Errorf("layout: line spacing must be positive, got %d", p.LineSpacing)
	}
	return nil
}

// Fingerprint identifies the parameters and the algorithm version. It is
// stored next to persisted layout and compared on load.
func (p Params) Fingerprint() string {
	canonical := fmt.Sprintf("v%d|%dx%d|%d,%d,%d,%d|%s|%d|%d|%d|%d",
		Version,
		p.ScreenWidth, p.ScreenHeight,
		p.MarginTop, p.MarginRight, p.MarginBottom, p.MarginLeft,
		p.FontFace, p.FontSize,
		p.LineSpacing, p.ParagraphSpacing, p.ListIndent)
	sum := blake3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:12])
}
