// Package opds parses OPDS catalog feeds (Atom) into navigation and book
// entries.
package opds

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/tsawler/inkpage/model"
)

// ErrEmptyFeed is returned when a feed has no entries.
var ErrEmptyFeed = errors.New("opds: no entries found")

// Media types and link relations used by catalogs.
const (
	MediaTypeEPUB   = "application/epub+zip"
	MediaTypeAtom   = "application/atom+xml"
	RelAcquisition  = "http://opds-spec.org/acquisition"
	extXTC, extXTCH = ".xtc", ".xtch"
)

// Kind tells a navigation entry from a downloadable book.
type Kind int

const (
	KindNavigation Kind = iota
	KindBook
)

func (k Kind) String() string {
	if k == KindBook {
		return "book"
	}
	return "navigation"
}

// Entry is one feed entry.
type Entry struct {
	Kind   Kind
	Title  string
	Author string
	ID     string
	// Href is the catalog link of a navigation entry, or the EPUB
	// download link of a book.
	Href     string
	HrefEPUB string
	// HrefXTC links a pre-rendered .xtc or .xtch file.
	HrefXTC string
}

// IsNavigation reports whether the entry leads to another feed.
func (e Entry) IsNavigation() bool { return e.Kind == KindNavigation }

// DownloadHref returns the link to download, preferring the pre-rendered
// file.
func (e Entry) DownloadHref() string {
	if e.HrefXTC != "" {
		return e.HrefXTC
	}
	return e.Href
}

type feedXML struct {
	XMLName xml.Name   `xml:"feed"`
	Title   string     `xml:"title"`
	Entries []entryXML `xml:"entry"`
}

type entryXML struct {
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Authors []authorXML `xml:"author"`
	Links   []linkXML   `xml:"link"`
}

type authorXML struct {
	Name string `xml:"name"`
}

type linkXML struct {
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
	Href string `xml:"href,attr"`
}

// Parse reads a feed and returns its entries in document order. A feed
// that is not well-formed Atom yields model.ErrCorruptFormat.
func Parse(r io.Reader) ([]Entry, error) {
	var feed feedXML
	if err := xml.NewDecoder(r).Decode(&feed); err != nil {
		return nil, model.Wrap(model.ErrCorruptFormat, "opds parse", err)
	}

	entries := make([]Entry, 0, len(feed.Entries))
	for _, ex := range feed.Entries {
		entries = append(entries, convert(ex))
	}
	return entries, nil
}

func convert(ex entryXML) Entry {
	e := Entry{
		Title: collapse(ex.Title),
		ID:    strings.TrimSpace(ex.ID),
	}
	if len(ex.Authors) > 0 {
		e.Author = collapse(ex.Authors[0].Name)
	}

	nav := ""
	for _, l := range ex.Links {
		if l.Href == "" {
			continue
		}
		if strings.Contains(l.Rel, "opds-spec.org/acquisition") {
			e.Kind = KindBook
			switch {
			case hasExt(l.Href, extXTCH), hasExt(l.Href, extXTC):
				if e.HrefXTC == "" {
					e.HrefXTC = l.Href
				}
			case strings.HasPrefix(l.Type, MediaTypeEPUB):
				if e.HrefEPUB == "" {
					e.HrefEPUB = l.Href
				}
			}
			continue
		}
		if nav == "" && strings.Contains(l.Type, MediaTypeAtom) {
			nav = l.Href
		}
	}

	if e.Kind == KindBook {
		e.Href = e.HrefEPUB
	} else {
		e.Href = nav
	}
	return e
}

// Books returns only the downloadable entries.
func Books(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Kind == KindBook {
			out = append(out, e)
		}
	}
	return out
}

func hasExt(href, ext string) bool {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return strings.HasSuffix(strings.ToLower(href), ext)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
