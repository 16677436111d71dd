package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/model"
)

// Parse reads one chapter document.
func Parse(r io.Reader, opts Options) (*Chapter, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing chapter: %w", err)
	}

	if opts.Bullet == "" {
		opts.Bullet = "-"
	}

	body := findElement(doc, "body")
	if body == nil {
		// No body tag, extract from the root
		body = doc
	}

	b := &builder{
		opts:  opts,
		excl:  newExclusionChecker(opts.Exclusion, body),
		kind:  model.BlockParagraph,
		depth: -1,
	}
	b.walk(body)
	b.flush()

	ch := &Chapter{Blocks: b.blocks}
	if head := findElement(doc, "head"); head != nil {
		if t := findElement(head, "title"); t != nil {
			ch.Title = collapse(getTextContent(t))
		}
	}
	if ch.Title == "" {
		for _, blk := range ch.Blocks {
			if blk.Kind == model.BlockHeading {
				ch.Title = blk.Text
				break
			}
		}
	}
	return ch, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte, opts Options) (*Chapter, error) {
	return Parse(bytes.NewReader(data), opts)
}

type listState struct {
	ordered bool
	next    int
}

// builder accumulates inline text and emits a block whenever a block-level
// element starts or ends.
type builder struct {
	opts   Options
	excl   *exclusionChecker
	blocks []layout.Block

	text   strings.Builder
	kind   model.BlockKind
	style  model.TextStyle
	depth  int // list depth, -1 outside lists
	bullet string
	lists  []listState
	pre    int
}

// flush emits the pending text as a block of the current kind.
func (b *builder) flush() {
	raw := b.text.String()
	b.text.Reset()

	var text string
	if b.kind == model.BlockPreformatted {
		text = strings.Trim(raw, "\r\n")
	} else {
		text = strings.TrimSpace(raw)
	}
	if text == "" {
		return
	}
	b.blocks = append(b.blocks, layout.Block{
		Kind:   b.kind,
		Text:   norm.NFC.String(text),
		Style:  b.style,
		Depth:  max(b.depth, 0),
		Bullet: b.bullet,
	})
	// Only the first line of a list item carries the marker.
	b.bullet = ""
}

// inline appends text, collapsing whitespace outside preformatted runs.
func (b *builder) inline(s string) {
	if b.pre > 0 {
		b.text.WriteString(s)
		return
	}
	for _, r := range s {
		if isHTMLSpace(r) {
			if b.text.Len() > 0 && !endsWithSpace(b.text.String()) {
				b.text.WriteByte(' ')
			}
			continue
		}
		b.text.WriteRune(r)
	}
}

func isHTMLSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == ' '
}

// within runs fn as a nested block of the given kind and style, restoring
// the enclosing block state afterwards.
func (b *builder) within(kind model.BlockKind, style model.TextStyle, fn func()) {
	b.flush()
	prevKind, prevStyle, prevBullet := b.kind, b.style, b.bullet
	b.kind, b.style = kind, style
	fn()
	b.flush()
	b.kind, b.style, b.bullet = prevKind, prevStyle, prevBullet
}

func (b *builder) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
}

func (b *builder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.inline(n.Data)
		return
	case html.ElementNode:
	default:
		b.children(n)
		return
	}

	if shouldSkipElement(n.Data) || b.excl.shouldExclude(n) {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		b.within(model.BlockHeading, model.TextStyle{Bold: true, Level: level}, func() { b.children(n) })

	case "p", "div", "section", "article", "main", "header", "footer", "nav", "aside",
		"figure", "figcaption", "address", "dl", "dt", "dd", "tr", "caption", "center":
		b.within(b.kind, b.style, func() { b.children(n) })

	case "blockquote":
		style := b.style
		style.Italic = true
		b.within(b.kind, style, func() { b.children(n) })

	case "ul", "ol":
		b.flush()
		ls := listState{ordered: n.Data == "ol", next: 1}
		if v, err := strconv.Atoi(getAttr(n, "start")); err == nil {
			ls.next = v
		}
		b.lists = append(b.lists, ls)
		b.depth++
		b.children(n)
		b.flush()
		b.depth--
		b.lists = b.lists[:len(b.lists)-1]

	case "li":
		bullet := b.opts.Bullet
		if len(b.lists) > 0 {
			ls := &b.lists[len(b.lists)-1]
			if ls.ordered {
				bullet = strconv.Itoa(ls.next) + "."
				ls.next++
			}
		}
		b.within(model.BlockListItem, b.style, func() {
			b.bullet = bullet
			b.children(n)
		})

	case "pre":
		b.within(model.BlockPreformatted, model.TextStyle{}, func() {
			b.pre++
			b.children(n)
			b.pre--
		})

	case "hr":
		b.flush()
		b.blocks = append(b.blocks, layout.Block{Kind: model.BlockSeparator})

	case "br":
		if b.pre > 0 {
			b.text.WriteByte('\n')
			return
		}
		b.flush()

	case "img":
		if alt := strings.TrimSpace(getAttr(n, "alt")); alt != "" {
			b.inline(" " + alt + " ")
		}

	case "td", "th":
		b.inline(" ")
		b.children(n)
		b.inline(" ")

	default:
		b.children(n)
	}
}

// shouldSkipElement reports elements that never contribute text.
func shouldSkipElement(tagName string) bool {
	switch tagName {
	case "head", "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed":
		return true
	}
	return false
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}

// getTextContent extracts all text content from a node and its descendants.
func getTextContent(n *html.Node) string {
	var result strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			result.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && shouldSkipElement(n.Data) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return result.String()
}

// collapse trims s and folds whitespace runs into single spaces.
func collapse(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
