package epubdoc

import (
	"encoding/xml"
	"errors"
	"path"
	"strings"
)

// OPF-related errors.
var (
	ErrNoOPF      = errors.New("epub: missing package document (OPF)")
	ErrInvalidOPF = errors.New("epub: invalid package document")
	ErrEmptySpine = errors.New("epub: no content in spine")
)

// opfPackage represents the OPF package document.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Title      []dcElement `xml:"title"`
	Creator    []dcElement `xml:"creator"`
	Language   []dcElement `xml:"language"`
	Identifier []dcElement `xml:"identifier"`
	Meta       []opfMeta   `xml:"meta"`
}

type dcElement struct {
	ID      string `xml:"id,attr"`
	Content string `xml:",chardata"`
}

type opfMeta struct {
	Property string `xml:"property,attr"`
	Name     string `xml:"name,attr"`    // EPUB 2 style
	Content  string `xml:"content,attr"` // EPUB 2 style
	Value    string `xml:",chardata"`    // EPUB 3 style
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"` // NCX ID for EPUB 2
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// manifestItem is one archive entry declared in the manifest, with its
// href already resolved against the OPF directory.
type manifestItem struct {
	ID         string
	Path       string
	MediaType  string
	Properties []string
}

func (m manifestItem) hasProperty(p string) bool {
	for _, prop := range m.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

// spineItem is one entry of the reading order.
type spineItem struct {
	Item   manifestItem
	Linear bool
}

// packageDoc is the parsed OPF.
type packageDoc struct {
	Version  string
	Title    string
	Authors  []string
	Language string

	items   []manifestItem // manifest order
	byID    map[string]manifestItem
	spine   []spineItem
	ncxID   string
	coverID string // EPUB 2 <meta name="cover">
}

// parseOPF parses the OPF file at opfPath.
func parseOPF(a *archive, opfPath string) (*packageDoc, error) {
	data, err := a.read(opfPath)
	if err != nil {
		return nil, ErrNoOPF
	}

	var opf opfPackage
	if err := xml.Unmarshal(data, &opf); err != nil {
		return nil, ErrInvalidOPF
	}

	baseDir := path.Dir(opfPath)
	if baseDir == "." {
		baseDir = ""
	}

	pkg := &packageDoc{
		Version: opf.Version,
		ncxID:   opf.Spine.Toc,
		byID:    make(map[string]manifestItem, len(opf.Manifest.Items)),
	}

	m := &opf.Metadata
	if len(m.Title) > 0 {
		pkg.Title = strings.TrimSpace(m.Title[0].Content)
	}
	for _, c := range m.Creator {
		if s := strings.TrimSpace(c.Content); s != "" {
			pkg.Authors = append(pkg.Authors, s)
		}
	}
	if len(m.Language) > 0 {
		pkg.Language = strings.TrimSpace(m.Language[0].Content)
	}
	for _, mt := range m.Meta {
		if mt.Name == "cover" {
			pkg.coverID = mt.Content
		}
	}

	for _, it := range opf.Manifest.Items {
		mi := manifestItem{
			ID:         it.ID,
			Path:       resolveHref(baseDir, it.Href),
			MediaType:  it.MediaType,
			Properties: strings.Fields(it.Properties),
		}
		pkg.items = append(pkg.items, mi)
		pkg.byID[it.ID] = mi
	}

	for _, ref := range opf.Spine.ItemRefs {
		item, ok := pkg.byID[ref.IDRef]
		if !ok || !a.has(item.Path) {
			continue // Skip dangling spine entries
		}
		pkg.spine = append(pkg.spine, spineItem{Item: item, Linear: ref.Linear != "no"})
	}

	if len(pkg.spine) == 0 {
		return nil, ErrEmptySpine
	}
	return pkg, nil
}

// coverItem returns the manifest entry of the cover image, if declared.
func (p *packageDoc) coverItem() (manifestItem, bool) {
	for _, it := range p.items {
		if it.hasProperty("cover-image") {
			return it, true
		}
	}
	if it, ok := p.byID[p.coverID]; ok && p.coverID != "" {
		return it, true
	}
	return manifestItem{}, false
}

// navItem returns the EPUB 3 navigation document.
func (p *packageDoc) navItem() (manifestItem, bool) {
	for _, it := range p.items {
		if it.hasProperty("nav") {
			return it, true
		}
	}
	return manifestItem{}, false
}

// ncxItem returns the EPUB 2 NCX document.
func (p *packageDoc) ncxItem() (manifestItem, bool) {
	if it, ok := p.byID[p.ncxID]; ok {
		return it, true
	}
	for _, it := range p.items {
		if it.MediaType == "application/x-dtbncx+xml" {
			return it, true
		}
	}
	return manifestItem{}, false
}
