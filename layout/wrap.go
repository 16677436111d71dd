package layout

import (
	"unicode"
	"unicode/utf8"

	"github.com/tsawler/inkpage/model"
)

// Span is one wrapped line as a byte range of the wrapped text.
type Span struct {
	Start int // first byte of the line (never whitespace)
	End   int // one past the last byte, trailing whitespace excluded
	Width int // measured width in pixels
}

// WrapSpans breaks a single paragraph (no newlines) into lines no wider than
// width. Lines break at whitespace; a word wider than width is broken at
// rune boundaries. Leading and inter-line whitespace is dropped, whitespace
// inside a line is kept and measured.
//
// Breaking is greedy, so wrapping text[span.Start:] reproduces the remaining
// spans exactly. The plain-text loader relies on this to re-wrap a single
// page from its stored offset.
func WrapSpans(text string, width int, m Metrics, style model.TextStyle) []Span {
	var spans []Span
	if width <= 0 {
		width = 1
	}

	i := skipSpace(text, 0)
	lineStart, lineEnd, lineWidth := -1, -1, 0
	gapWidth := 0

	flush := func() {
		if lineStart >= 0 {
			spans = append(spans, Span{Start: lineStart, End: lineEnd, Width: lineWidth})
		}
		lineStart, lineEnd, lineWidth = -1, -1, 0
	}

	for i < len(text) {
		wordStart := i
		wordEnd := i
		wordWidth := 0
		for wordEnd < len(text) {
			r, size := utf8.DecodeRuneInString(text[wordEnd:])
			if unicode.IsSpace(r) {
				break
			}
			wordWidth += advance(m, r, style)
			wordEnd += size
		}

		if lineStart >= 0 && lineWidth+gapWidth+wordWidth <= width {
			lineEnd = wordEnd
			lineWidth += gapWidth + wordWidth
		} else {
			flush()
			// Force-break words that cannot fit on an empty line.
			start := wordStart
			for wordWidth > width {
				cut, cutWidth := fitRunes(text[start:wordEnd], width, m, style)
				spans = append(spans, Span{Start: start, End: start + cut, Width: cutWidth})
				start += cut
				wordWidth -= cutWidth
			}
			if start < wordEnd {
				lineStart, lineEnd, lineWidth = start, wordEnd, wordWidth
			}
		}

		// Measure the gap to the next word.
		i = wordEnd
		gapWidth = 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			gapWidth += advance(m, r, style)
			i += size
		}
	}
	flush()
	return spans
}

// Wrap returns the wrapped lines of a paragraph as strings.
func Wrap(text string, width int, m Metrics, style model.TextStyle) []string {
	spans := WrapSpans(text, width, m, style)
	lines := make([]string, len(spans))
	for i, s := range spans {
		lines[i] = text[s.Start:s.End]
	}
	return lines
}

// fitRunes returns how many bytes of word fit into width, always at least
// one rune so that progress is guaranteed.
func fitRunes(word string, width int, m Metrics, style model.TextStyle) (int, int) {
	n, w := 0, 0
	for n < len(word) {
		r, size := utf8.DecodeRuneInString(word[n:])
		a := advance(m, r, style)
		if w+a > width && n > 0 {
			break
		}
		n += size
		w += a
	}
	return n, w
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
