// Package inkpage opens documents for an e-ink reader and serves them page
// by page, caching layout work on storage so that reopening is cheap.
//
// Basic usage:
//
//	doc, err := inkpage.Open("book.epub").Load()
//	if err != nil {
//	    // handle error
//	}
//	defer doc.Close()
//	page, err := doc.LoadPage(model.Position{Section: 0, Page: 0})
//
// With options:
//
//	doc, err := inkpage.Open("notes.txt").
//	    CacheRoot("/sd/.cache").
//	    Params(settings.LayoutParams()).
//	    Logger(log).
//	    Load()
//
// EPUB and plain-text documents are paginated on first open and the result
// is stored in a per-document cache folder; XTC and XTCH containers carry
// pre-rendered pages and are read directly.
package inkpage

// Open returns a Loader for the document at path. Nothing is read until a
// terminal operation such as Load is called.
//
// Example:
//
//	doc, err := inkpage.Open("book.xtch").Load()
func Open(path string) *Loader {
	return &Loader{
		path:    path,
		options: defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	doc := inkpage.Must(inkpage.Open("book.epub").Load())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
