package model

// Point represents a pixel position on the screen
type Point struct {
	X, Y int
}

// BBox represents a bounding box in screen pixels (origin top-left)
type BBox struct {
	X      int `msgpack:"x"` // Left
	Y      int `msgpack:"y"` // Top
	Width  int `msgpack:"w"`
	Height int `msgpack:"h"`
}

// NewBBox creates a bounding box from coordinates
func NewBBox(x, y, width, height int) BBox {
	return BBox{X: x, Y: y, Width: width, Height: height}
}

// Left returns the left edge X coordinate
func (b BBox) Left() int {
	return b.X
}

// Right returns the right edge X coordinate (exclusive)
func (b BBox) Right() int {
	return b.X + b.Width
}

// Top returns the top edge Y coordinate
func (b BBox) Top() int {
	return b.Y
}

// Bottom returns the bottom edge Y coordinate (exclusive)
func (b BBox) Bottom() int {
	return b.Y + b.Height
}

// Contains checks if a point is inside the bounding box
func (b BBox) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.Right() && p.Y >= b.Y && p.Y < b.Bottom()
}

// Intersects checks if this bbox intersects with another
func (b BBox) Intersects(other BBox) bool {
	return !(b.Right() <= other.Left() ||
		b.Left() >= other.Right() ||
		b.Bottom() <= other.Top() ||
		b.Top() >= other.Bottom())
}

// Union returns the smallest bbox containing both bboxes
func (b BBox) Union(other BBox) BBox {
	if b.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return b
	}
	x1 := min(b.Left(), other.Left())
	y1 := min(b.Top(), other.Top())
	x2 := max(b.Right(), other.Right())
	y2 := max(b.Bottom(), other.Bottom())
	return BBox{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IsEmpty returns true if the bbox has zero area
func (b BBox) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}
