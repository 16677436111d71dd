// Package htmldoc converts XHTML chapter markup into layout blocks.
//
// Text nodes are kept, block elements become paragraphs, headings, list
// items, preformatted runs and separators. Images are never rasterized: an
// <img> contributes its alt text inline, and nothing when it has none.
package htmldoc

import "github.com/tsawler/inkpage/layout"

// NavigationExclusionMode controls which navigation-like elements are
// dropped from a chapter.
type NavigationExclusionMode int

const (
	// NavigationExclusionNone keeps all content. This is the default for
	// book chapters, where <nav> is usually the table of contents the
	// reader asked to see.
	NavigationExclusionNone NavigationExclusionMode = iota

	// NavigationExclusionExplicit skips <nav>, <aside>, ARIA navigation
	// roles, and <header>/<footer> directly under <body> or a single
	// wrapper element.
	NavigationExclusionExplicit

	// NavigationExclusionStandard also skips elements whose class or id
	// looks like navigation or boilerplate (nav, menu, footer, sidebar...).
	NavigationExclusionStandard
)

// Options configures Parse.
type Options struct {
	Exclusion NavigationExclusionMode
	// Bullet prefixes unordered list items. Defaults to "-".
	Bullet string
}

// Chapter is the parsed content of one markup document.
type Chapter struct {
	// Title is the <title> text, or the first heading when the head has none.
	Title  string
	Blocks []layout.Block
}

// Text joins the block texts with blank lines.
func (c *Chapter) Text() string {
	var n int
	for _, b := range c.Blocks {
		n += len(b.Text) + 2
	}
	out := make([]byte, 0, n)
	for i, b := range c.Blocks {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		if b.Bullet != "" {
			out = append(out, b.Bullet...)
			out = append(out, ' ')
		}
		out = append(out, b.Text...)
	}
	return string(out)
}
