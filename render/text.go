package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/tsawler/inkpage/model"
)

// shades maps gray levels to characters, darkest first.
const shades = "#%+:. "

// TextSink writes frames to a terminal or log as plain text, cutting every
// line to Width cells.
type TextSink struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewTextSink creates a text sink. A width of 0 means 80 cells.
func NewTextSink(w io.Writer, width int) *TextSink {
	if width <= 0 {
		width = 80
	}
	return &TextSink{w: w, width: width}
}

// Present implements Sink.
func (s *TextSink) Present(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw := bufio.NewWriter(s.w)
	if f.Clear {
		fmt.Fprintln(bw, strings.Repeat("=", s.width))
	}
	if f.Title != "" {
		s.line(bw, f.Title)
		s.line(bw, strings.Repeat("-", min(runewidth.StringWidth(f.Title), s.width)))
	}

	switch {
	case f.Page != nil && f.Page.IsBitmap():
		s.bitmap(bw, f.Page.Bitmap)
	case f.Page != nil:
		for _, l := range f.Page.Lines {
			if l.Kind == model.BlockSeparator {
				s.line(bw, strings.Repeat("-", s.width/2))
				continue
			}
			s.line(bw, strings.Repeat(" ", max(0, l.BBox.X/cellWidth(f.Page, s.width)))+l.Text)
		}
	case len(f.Items) > 0:
		for i, item := range f.Items {
			marker := "  "
			if i == f.Selected {
				marker = "> "
			}
			s.line(bw, marker+item)
		}
	}
	if f.Status != "" {
		s.line(bw, f.Status)
	}
	if f.Footer != "" {
		s.line(bw, fmt.Sprintf("%*s", s.width, f.Footer))
	}
	return bw.Flush()
}

func (s *TextSink) line(w io.Writer, text string) {
	fmt.Fprintln(w, runewidth.Truncate(text, s.width, ""))
}

// cellWidth estimates how many pixels one terminal cell stands for.
func cellWidth(p *model.Page, cells int) int {
	return max(1, p.Width/cells)
}

// bitmap draws a downsampled bitmap with one character per block.
func (s *TextSink) bitmap(w io.Writer, b *model.Bitmap) {
	step := max(1, (b.Width+s.width-1)/s.width)
	rows := max(1, step*2) // cells are about twice as tall as wide
	for y := 0; y < b.Height; y += rows {
		var sb strings.Builder
		for x := 0; x < b.Width; x += step {
			sum, n := 0, 0
			for dy := 0; dy < rows && y+dy < b.Height; dy++ {
				for dx := 0; dx < step && x+dx < b.Width; dx++ {
					sum += int(b.At(x+dx, y+dy))
					n++
				}
			}
			sb.WriteByte(shades[sum/n*(len(shades)-1)/255])
		}
		s.line(w, sb.String())
	}
}
