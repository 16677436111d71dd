package render

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/model"
)

// ImageSink rasterizes frames into an 8-bit grayscale panel image.
type ImageSink struct {
	mu      sync.Mutex
	width   int
	height  int
	regular font.Face
	bold    font.Face
	img     *image.Gray
	frames  int
}

// NewImageSink creates a sink for a width x height panel drawing text with
// the named face ("basic" or "inconsolata").
func NewImageSink(width, height int, face string) (*ImageSink, error) {
	regular, bold, err := layout.Face(face)
	if err != nil {
		return nil, err
	}
	return &ImageSink{
		width:   width,
		height:  height,
		regular: regular,
		bold:    bold,
		img:     image.NewGray(image.Rect(0, 0, width, height)),
	}, nil
}

// Present implements Sink.
func (s *ImageSink) Present(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draw.Draw(s.img, s.img.Bounds(), image.White, image.Point{}, draw.Src)
	switch {
	case f.Page != nil && f.Page.IsBitmap():
		draw.Draw(s.img, s.img.Bounds(), f.Page.Bitmap.Gray(), image.Point{}, draw.Src)
	case f.Page != nil:
		for _, l := range f.Page.Lines {
			s.drawLine(l)
		}
	default:
		s.drawList(f)
	}
	if f.Footer != "" {
		s.text(s.regular, s.width-font.MeasureString(s.regular, f.Footer).Ceil()-4, s.height-4, f.Footer)
	}
	s.frames++
	return nil
}

func (s *ImageSink) drawLine(l model.Line) {
	if l.Kind == model.BlockSeparator {
		for x := l.BBox.X; x < l.BBox.Right() && x < s.width; x++ {
			s.img.SetGray(x, l.BBox.Y, color.Gray{Y: 0})
		}
		return
	}
	face := s.regular
	if l.Style.Bold {
		face = s.bold
	}
	s.text(face, l.BBox.X, l.BBox.Y+face.Metrics().Ascent.Ceil(), l.Text)
}

func (s *ImageSink) drawList(f Frame) {
	lh := s.regular.Metrics().Height.Ceil() + 4
	ascent := s.regular.Metrics().Ascent.Ceil()
	y := 8
	if f.Title != "" {
		s.text(s.bold, 8, y+ascent, f.Title)
		y += lh * 2
	}
	for i, item := range f.Items {
		if i == f.Selected {
			draw.Draw(s.img, image.Rect(0, y, s.width, y+lh), image.Black, image.Point{}, draw.Src)
			s.textColor(s.regular, 12, y+ascent+2, item, image.White)
		} else {
			s.text(s.regular, 12, y+ascent+2, item)
		}
		y += lh
		if y > s.height-lh {
			break
		}
	}
	if f.Status != "" {
		s.text(s.regular, 8, y+lh+ascent, f.Status)
	}
}

func (s *ImageSink) text(face font.Face, x, y int, text string) {
	s.textColor(face, x, y, text, image.Black)
}

func (s *ImageSink) textColor(face font.Face, x, y int, text string, src image.Image) {
	d := font.Drawer{
		Dst:  s.img,
		Src:  src,
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// Image returns a copy of the last presented frame.
func (s *ImageSink) Image() *image.Gray {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewGray(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

// Frames returns how many frames were presented.
func (s *ImageSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// WriteBMP encodes the last frame as a BMP.
func (s *ImageSink) WriteBMP(w io.Writer) error {
	return bmp.Encode(w, s.Image())
}
