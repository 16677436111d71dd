package model

import "image"

// BlockKind identifies the source block a line was laid out from
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockPreformatted
	BlockSeparator
)

func (k BlockKind) String() string {
	switch k {
	case BlockParagraph:
		return "Paragraph"
	case BlockHeading:
		return "Heading"
	case BlockListItem:
		return "ListItem"
	case BlockPreformatted:
		return "Preformatted"
	case BlockSeparator:
		return "Separator"
	default:
		return "Unknown"
	}
}

// TextStyle represents text styling
type TextStyle struct {
	Bold   bool `msgpack:"b,omitempty"`
	Italic bool `msgpack:"i,omitempty"`
	// Level is the heading level (1-6), 0 for body text
	Level int `msgpack:"l,omitempty"`
}

// TextAlignment represents text alignment
type TextAlignment int

const (
	AlignLeft TextAlignment = iota
	AlignCenter
	AlignRight
	AlignJustify
)

// Line is one laid-out line of text on a page
type Line struct {
	Text      string        `msgpack:"t"`
	BBox      BBox          `msgpack:"bb"`
	Kind      BlockKind     `msgpack:"k"`
	Style     TextStyle     `msgpack:"s"`
	Alignment TextAlignment `msgpack:"a,omitempty"`
	// Block is the index of the source block within its section
	Block int `msgpack:"n"`
	// Offset is the byte offset of the line within its block's text
	Offset int `msgpack:"o,omitempty"`
}

// Bitmap is a pre-rendered page image.
//
// Depth 1 stores rows top to bottom, 8 pixels per byte, MSB first, with a
// set bit meaning white. Depth 2 stores two bit planes of column-major data,
// columns right to left, 8 vertical pixels per byte.
type Bitmap struct {
	Width  int
	Height int
	Depth  int
	Data   []byte
}

// Gray levels for 2-bit pixel values 0..3 (white, dark gray, light gray, black).
var grayLevels = [4]uint8{255, 85, 170, 0}

// PlaneSize returns the number of bytes one 2-bit plane occupies.
func (b *Bitmap) PlaneSize() int {
	return (b.Width*b.Height + 7) / 8
}

// At returns the 8-bit gray level of the pixel at (x, y).
func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return 255
	}
	if b.Depth == 2 {
		colBytes := (b.Height + 7) / 8
		offset := (b.Width-1-x)*colBytes + y/8
		mask := byte(1) << (7 - uint(y%8))
		plane := b.PlaneSize()
		if offset >= plane || plane+offset >= len(b.Data) {
			return 255
		}
		var v int
		if b.Data[offset]&mask != 0 {
			v |= 2
		}
		if b.Data[plane+offset]&mask != 0 {
			v |= 1
		}
		return grayLevels[v]
	}
	rowBytes := (b.Width + 7) / 8
	idx := y*rowBytes + x/8
	if idx >= len(b.Data) {
		return 255
	}
	if b.Data[idx]&(1<<(7-uint(x%8))) != 0 {
		return 255
	}
	return 0
}

// Gray converts the bitmap to an 8-bit grayscale image.
func (b *Bitmap) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			img.Pix[y*img.Stride+x] = b.At(x, y)
		}
	}
	return img
}
