package model

import "strings"

// Page represents a single screen-sized page
type Page struct {
	Number int    `msgpack:"no"` // 1-indexed within its section
	Width  int    `msgpack:"w"`  // Page width in pixels
	Height int    `msgpack:"h"`  // Page height in pixels
	Lines  []Line `msgpack:"ln"` // Laid-out lines, top to bottom

	// Bitmap is set for pre-rendered pages instead of Lines
	Bitmap *Bitmap `msgpack:"-"`
}

// NewPage creates a new page with given dimensions
func NewPage(width, height int) *Page {
	return &Page{
		Width:  width,
		Height: height,
		Lines:  make([]Line, 0),
	}
}

// AddLine adds a line to the page
func (p *Page) AddLine(line Line) {
	p.Lines = append(p.Lines, line)
}

// IsBitmap reports whether the page is a pre-rendered image
func (p *Page) IsBitmap() bool {
	return p.Bitmap != nil
}

// Text joins all lines with newlines
func (p *Page) Text() string {
	var sb strings.Builder
	for i, line := range p.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line.Text)
	}
	return sb.String()
}

// ContentHeight returns the bottom edge of the lowest line
func (p *Page) ContentHeight() int {
	h := 0
	for _, line := range p.Lines {
		if b := line.BBox.Bottom(); b > h {
			h = b
		}
	}
	return h
}
