// Package render turns frames produced by the reader and listing screens
// into output: terminal text or a grayscale raster of the panel.
package render

import "github.com/tsawler/inkpage/model"

// Frame is one complete screen. Exactly one of Page or Items is shown;
// Status replaces both when set on a screen without content.
type Frame struct {
	// Clear asks for a full refresh before drawing.
	Clear bool

	Title string
	Page  *model.Page
	Items []string
	// Selected indexes Items; -1 for none.
	Selected int
	Status   string
	// Footer is drawn at the bottom, e.g. "12/280".
	Footer string
}

// Sink receives completed frames. Present is called once per frame by the
// screen's worker goroutine.
type Sink interface {
	Present(f Frame) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(f Frame) error

// Present implements Sink.
func (fn SinkFunc) Present(f Frame) error { return fn(f) }
