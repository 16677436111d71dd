package epubdoc

import (
	"bytes"
	"encoding/xml"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/tsawler/inkpage/htmldoc"
)

// navEntry is one flattened table-of-contents entry before it is resolved
// to a spine position.
type navEntry struct {
	Title string
	Level int
	Path  string // archive path without fragment
}

// ncxDocument represents an EPUB 2 NCX navigation document.
type ncxDocument struct {
	XMLName xml.Name      `xml:"ncx"`
	Points  []ncxNavPoint `xml:"navMap>navPoint"`
}

type ncxNavPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// parseNavigation reads the EPUB 3 nav document, falling back to the NCX
// and finally to chapter titles.
func parseNavigation(a *archive, pkg *packageDoc) []navEntry {
	if item, ok := pkg.navItem(); ok {
		if content, err := a.read(item.Path); err == nil {
			if entries := parseNavXHTML(content, path.Dir(item.Path)); len(entries) > 0 {
				return entries
			}
		}
	}
	if item, ok := pkg.ncxItem(); ok {
		if content, err := a.read(item.Path); err == nil {
			if entries, err := parseNCX(content, path.Dir(item.Path)); err == nil && len(entries) > 0 {
				return entries
			}
		}
	}
	return tocFromSpine(a, pkg)
}

// parseNavXHTML flattens the <nav epub:type="toc"> list.
func parseNavXHTML(content []byte, dir string) []navEntry {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil
	}
	nav := findNode(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "nav" {
			return false
		}
		for _, attr := range n.Attr {
			if (attr.Key == "epub:type" || attr.Key == "type") && strings.Contains(attr.Val, "toc") {
				return true
			}
		}
		return false
	})
	if nav == nil {
		return nil
	}
	ol := findNode(nav, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "ol" })
	if ol == nil {
		return nil
	}
	var entries []navEntry
	walkOL(ol, dir, 1, &entries)
	return entries
}

func walkOL(ol *html.Node, dir string, level int, out *[]navEntry) {
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		var e navEntry
		var child *html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "a":
				e.Title = extractText(c)
				for _, attr := range c.Attr {
					if attr.Key == "href" {
						e.Path = resolveHref(dir, attr.Val)
					}
				}
			case "span":
				if e.Title == "" {
					e.Title = extractText(c)
				}
			case "ol":
				child = c
			}
		}
		if e.Title != "" {
			e.Level = level
			*out = append(*out, e)
		}
		if child != nil {
			walkOL(child, dir, level+1, out)
		}
	}
}

// parseNCX flattens an EPUB 2 NCX navMap.
func parseNCX(content []byte, dir string) ([]navEntry, error) {
	var ncx ncxDocument
	if err := xml.Unmarshal(content, &ncx); err != nil {
		return nil, err
	}
	var entries []navEntry
	var walk func(points []ncxNavPoint, level int)
	walk = func(points []ncxNavPoint, level int) {
		for _, p := range points {
			if title := strings.TrimSpace(p.Label); title != "" {
				entries = append(entries, navEntry{Title: title, Level: level, Path: resolveHref(dir, p.Content.Src)})
			}
			walk(p.Children, level+1)
		}
	}
	walk(ncx.Points, 1)
	return entries, nil
}

// tocFromSpine titles every linear chapter from its own markup.
func tocFromSpine(a *archive, pkg *packageDoc) []navEntry {
	var entries []navEntry
	for _, si := range pkg.spine {
		if !si.Linear {
			continue
		}
		title := si.Item.ID
		if content, err := a.read(si.Item.Path); err == nil {
			if ch, err := htmldoc.ParseBytes(content, htmldoc.Options{}); err == nil && ch.Title != "" {
				title = ch.Title
			}
		}
		entries = append(entries, navEntry{Title: title, Level: 1, Path: si.Item.Path})
	}
	return entries
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// extractText returns the whitespace-collapsed text of a node.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
