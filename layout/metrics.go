package layout

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"

	"github.com/tsawler/inkpage/model"
)

// Metrics measures text for layout. Implementations must be deterministic.
type Metrics interface {
	// Advance returns the horizontal advance of r in pixels.
	Advance(r rune, style model.TextStyle) int
	// LineHeight returns the height of one line in pixels.
	LineHeight(style model.TextStyle) int
}

// Width measures s.
func Width(m Metrics, s string, style model.TextStyle) int {
	w := 0
	for _, r := range s {
		w += advance(m, r, style)
	}
	return w
}

func advance(m Metrics, r rune, style model.TextStyle) int {
	if r == '\t' {
		return 4 * m.Advance(' ', style)
	}
	return m.Advance(r, style)
}

// FaceMetrics measures text with x/image font faces.
type FaceMetrics struct {
	Regular font.Face
	Bold    font.Face // optional, falls back to Regular
}

func (f FaceMetrics) face(style model.TextStyle) font.Face {
	if (style.Bold || style.Level > 0) && f.Bold != nil {
		return f.Bold
	}
	return f.Regular
}

// Advance implements Metrics. Runes missing from the face measure as the
// face's advance for '?', which is what the rasterizer draws for them.
func (f FaceMetrics) Advance(r rune, style model.TextStyle) int {
	face := f.face(style)
	adv, ok := face.GlyphAdvance(r)
	if !ok {
		adv, _ = face.GlyphAdvance('?')
	}
	return adv.Ceil()
}

// LineHeight implements Metrics.
func (f FaceMetrics) LineHeight(style model.TextStyle) int {
	return f.face(style).Metrics().Height.Ceil()
}

// CellMetrics measures text on a fixed character grid. Wide (East Asian)
// runes take two cells, combining marks none.
type CellMetrics struct {
	CellWidth  int
	CellHeight int
}

// Advance implements Metrics.
func (c CellMetrics) Advance(r rune, _ model.TextStyle) int {
	return runewidth.RuneWidth(r) * c.CellWidth
}

// LineHeight implements Metrics.
func (c CellMetrics) LineHeight(_ model.TextStyle) int {
	return c.CellHeight
}

// Face returns the regular and bold x/image faces for a face name.
func Face(name string) (regular, bold font.Face, err error) {
	switch name {
	case "basic":
		return basicfont.Face7x13, basicfont.Face7x13, nil
	case "inconsolata", "":
		return inconsolata.Regular8x16, inconsolata.Bold8x16, nil
	default:
		return nil, nil, fmt.Errorf("layout: unknown font face %q", name)
	}
}

// MetricsFor returns the metrics selected by p.FontFace.
func MetricsFor(p Params) (Metrics, error) {
	if p.FontFace == "cell" {
		size := max(p.FontSize, 1)
		return CellMetrics{CellWidth: max(size/2, 1), CellHeight: size}, nil
	}
	regular, bold, err := Face(p.FontFace)
	if err != nil {
		return nil, err
	}
	return FaceMetrics{Regular: regular, Bold: bold}, nil
}
