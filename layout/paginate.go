package layout

import (
	"strings"

	"github.com/tsawler/inkpage/model"
)

// Block is one styled unit of source text: a paragraph, heading, list
// item, preformatted run or separator.
type Block struct {
	Kind  model.BlockKind `msgpack:"k"`
	Text  string          `msgpack:"t"`
	Style model.TextStyle `msgpack:"s"`
	// Depth is the list nesting depth (0 for top-level items).
	Depth int `msgpack:"d,omitempty"`
	// Bullet prefixes the first line of a list item.
	Bullet string `msgpack:"b,omitempty"`
}

// Paginator lays out blocks onto pages. It is a small state machine that
// tracks the current page and pen position; use Paginate for the common
// case.
type Paginator struct {
	// OnPage, when set, receives each completed page instead of the
	// Paginator retaining it. Finish then returns nil.
	OnPage func(*model.Page)

	params  Params
	metrics Metrics

	pages  []*model.Page
	page   *model.Page
	count  int
	y      int
	bottom int
}

// NewPaginator creates a Paginator.
func NewPaginator(p Params, m Metrics) *Paginator {
	return &Paginator{
		params:  p,
		metrics: m,
		bottom:  p.ScreenHeight - p.MarginBottom,
	}
}

// Paginate lays out blocks and returns the pages, numbered from 1. It always
// returns at least one page so that empty sections remain navigable.
func Paginate(blocks []Block, p Params, m Metrics) []*model.Page {
	pg := NewPaginator(p, m)
	for i, b := range blocks {
		pg.Add(i, b)
	}
	return pg.Finish()
}

// Add lays out block number idx.
func (pg *Paginator) Add(idx int, b Block) {
	if b.Kind == model.BlockSeparator {
		pg.separator(idx)
		return
	}

	style := b.Style
	if b.Kind == model.BlockHeading {
		style.Bold = true
		if style.Level == 0 {
			style.Level = 1
		}
	}

	gap := pg.params.ParagraphSpacing
	if b.Kind == model.BlockHeading {
		gap *= 2
	}

	left := pg.params.MarginLeft
	width := pg.params.ContentWidth()
	if b.Kind == model.BlockListItem {
		indent := (b.Depth + 1) * pg.params.ListIndent
		left += indent
		width -= indent
	}

	var spans []Span
	text := b.Text
	if b.Kind == model.BlockPreformatted {
		base := 0
		for _, raw := range strings.SplitAfter(b.Text, "\n") {
			trimmed := strings.TrimRight(raw, " \t\r\n")
			if trimmed == "" {
				spans = append(spans, Span{Start: base, End: base})
			}
			for _, s := range WrapSpans(trimmed, width, pg.metrics, style) {
				spans = append(spans, Span{Start: base + s.Start, End: base + s.End, Width: s.Width})
			}
			base += len(raw)
		}
	} else {
		if b.Bullet != "" {
			text = b.Bullet + " " + text
		}
		spans = WrapSpans(text, width, pg.metrics, style)
	}
	if len(spans) == 0 {
		return
	}

	pg.gap(gap)
	for _, s := range spans {
		x := left
		align := model.AlignLeft
		if b.Kind == model.BlockHeading {
			align = model.AlignCenter
			x = left + (width-s.Width)/2
		}
		pg.place(model.Line{
			Text:      text[s.Start:s.End],
			BBox:      model.NewBBox(x, 0, s.Width, 0),
			Kind:      b.Kind,
			Style:     style,
			Alignment: align,
			Block:     idx,
			Offset:    s.Start,
		})
	}
}

// PageCount returns the number of pages started so far.
func (pg *Paginator) PageCount() int {
	return pg.count
}

// Finish closes the last page and returns all pages.
func (pg *Paginator) Finish() []*model.Page {
	if pg.page == nil && pg.count == 0 {
		pg.newPage()
	}
	if pg.page != nil {
		pg.emit(pg.page)
		pg.page = nil
	}
	return pg.pages
}

func (pg *Paginator) emit(p *model.Page) {
	if pg.OnPage != nil {
		pg.OnPage(p)
		return
	}
	pg.pages = append(pg.pages, p)
}

func (pg *Paginator) separator(idx int) {
	style := model.TextStyle{}
	h := pg.metrics.LineHeight(style)
	if pg.page == nil || len(pg.page.Lines) == 0 {
		// A rule at the top of a page carries no information.
		return
	}
	if pg.y+h > pg.bottom {
		pg.newPage()
		return
	}
	pg.page.AddLine(model.Line{
		BBox:  model.NewBBox(pg.params.MarginLeft, pg.y+h/2, pg.params.ContentWidth(), 1),
		Kind:  model.BlockSeparator,
		Block: idx,
	})
	pg.y += h
}

// gap adds vertical space before a block unless it starts a page.
func (pg *Paginator) gap(px int) {
	if pg.page == nil || len(pg.page.Lines) == 0 {
		return
	}
	pg.y += px
}

func (pg *Paginator) place(line model.Line) {
	h := pg.metrics.LineHeight(line.Style)
	if pg.page == nil {
		pg.newPage()
	}
	if pg.y+h > pg.bottom && len(pg.page.Lines) > 0 {
		pg.newPage()
	}
	line.BBox.Y = pg.y
	line.BBox.Height = h
	pg.page.AddLine(line)
	pg.y += h * pg.params.LineSpacing / 100
}

func (pg *Paginator) newPage() {
	if pg.page != nil {
		pg.emit(pg.page)
	}
	pg.count++
	pg.page = model.NewPage(pg.params.ScreenWidth, pg.params.ScreenHeight)
	pg.page.Number = pg.count
	pg.y = pg.params.MarginTop
}
