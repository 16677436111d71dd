package epubdoc

import (
	"archive/zip"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// epubFixture describes a test archive. Zero values produce a two-chapter
// EPUB 3 book with a nav document.
type epubFixture struct {
	files   map[string]string // extra or replacement entries
	omit    []string          // entries to leave out
	rawData []byte            // written instead of a zip when set
}

const fixtureOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>Test Author</dc:creator>
    <dc:creator>Second Author</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid">test-isbn-123</dc:identifier>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="text/notes.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
    <itemref idref="chapter2"/>
    <itemref idref="notes" linear="no"/>
    <itemref idref="missing"/>
  </spine>
</package>`

const fixtureNav = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Contents</title></head>
<body>
<nav epub:type="toc">
  <h1>Contents</h1>
  <ol>
    <li><a href="text/chapter1.xhtml">Chapter One</a>
      <ol><li><a href="text/chapter1.xhtml#part2">Part Two</a></li></ol>
    </li>
    <li><a href="text/chapter2.xhtml">Chapter Two</a></li>
    <li><a href="text/gone.xhtml">Dangling</a></li>
  </ol>
</nav>
</body>
</html>`

const fixtureChapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title></head>
<body>
<h1>Chapter One</h1>
<p>It was a bright cold day in April, and the clocks were striking thirteen.</p>
<p>Winston Smith, his chin nuzzled into his breast in an effort to escape the vile wind, slipped quickly through the glass doors.</p>
<p id="part2">Outside, even through the shut window-pane, the world looked cold.</p>
<p><img src="../images/poster.jpg" alt="a poster of a face"/></p>
</body>
</html>`

const fixtureChapter2 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 2</title></head>
<body>
<h1>Chapter Two</h1>
<p>This is the second chapter.</p>
<ul><li>Item one</li><li>Item two</li></ul>
</body>
</html>`

const fixtureNotes = `<html><body><p>Notes.</p></body></html>`

func (fx epubFixture) entries() map[string]string {
	entries := map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"OEBPS/content.opf":         fixtureOPF,
		"OEBPS/nav.xhtml":           fixtureNav,
		"OEBPS/text/chapter1.xhtml": fixtureChapter1,
		"OEBPS/text/chapter2.xhtml": fixtureChapter2,
		"OEBPS/text/notes.xhtml":    fixtureNotes,
	}
	for name, content := range fx.files {
		entries[name] = content
	}
	for _, name := range fx.omit {
		delete(entries, name)
	}
	return entries
}

// write creates the archive as dir/name and returns its path.
func (fx epubFixture) write(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if fx.rawData != nil {
		if err := os.WriteFile(p, fx.rawData, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	entries := fx.entries()

	// mimetype must be first and stored uncompressed
	if content, ok := entries["mimetype"]; ok {
		mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		mw.Write([]byte(content))
	}
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		if name == "mimetype" {
			continue
		}
		ew, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		ew.Write([]byte(entries[name]))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

// corruptEntry overwrites the stored bytes of one archive entry so that
// reading it fails while the rest of the archive stays readable.
func corruptEntry(t *testing.T, path, name string) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	var off, size int64 = -1, 0
	for _, f := range zr.File {
		if f.Name == name {
			if off, err = f.DataOffset(); err != nil {
				t.Fatal(err)
			}
			size = int64(f.CompressedSize64)
		}
	}
	zr.Close()
	if off < 0 {
		t.Fatalf("no entry %s", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := off; i < off+size; i++ {
		data[i] = 0xFF
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
