// Package model provides the render-ready representation shared by every
// document format.
//
// All format loaders ultimately produce [Page] values: either a list of
// positioned text [Line] values laid out by the pagination engine, or a
// fixed-size [Bitmap] for pre-rendered containers. Pages are immutable once
// produced.
//
// # Documents
//
// The [Document] interface is the common loader contract. Sections are
// chapters for markup documents; flat formats expose a single section.
// Pages are addressed with a [Position] (section index, page-in-section
// index), both zero-based:
//
//	n, _ := doc.PageCount(0)
//	page, err := doc.LoadPage(model.Position{Section: 0, Page: n - 1})
//
// # Errors
//
// Loaders report failures with the taxonomy in errors.go. Use errors.Is with
// [ErrOpen], [ErrCorruptFormat], [ErrOutOfBounds], [ErrIO], [ErrNetwork] and
// [ErrUnsupportedFeature] to classify them.
//
// # Geometry
//
// Coordinates are integer screen pixels with the origin in the top-left
// corner and Y growing downwards, matching the e-ink frame buffer.
package model
