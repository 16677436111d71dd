package epubdoc

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// testParams lays out 40 cells by 10 lines.
func testParams() layout.Params {
	return layout.Params{
		ScreenWidth:      40,
		ScreenHeight:     20,
		FontFace:         "cell",
		FontSize:         2,
		LineSpacing:      100,
		ParagraphSpacing: 2,
		ListIndent:       2,
	}
}

type env struct {
	dir   string
	fs    *storage.FaultyFS
	cache *cachedir.Dir
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	ffs := storage.NewFaultyFS(storage.Default)
	return &env{
		dir:   dir,
		fs:    ffs,
		cache: cachedir.New(filepath.Join(dir, "cache"), cachedir.WithFileSystem(ffs)),
	}
}

func (e *env) open(t *testing.T, path string, params layout.Params) *Book {
	t.Helper()
	b, err := Open(path, Config{Cache: e.cache, Params: params})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestOpen_Metadata(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")
	b := e.open(t, path, testParams())

	meta := b.Metadata()
	if meta.Title != "Test Book" {
		t.Errorf("Title = %q, want %q", meta.Title, "Test Book")
	}
	if len(meta.Authors) != 2 || meta.Authors[0] != "Test Author" {
		t.Errorf("Authors = %v", meta.Authors)
	}
	if meta.Language != "en" || meta.Format != FormatName {
		t.Errorf("Language/Format = %q/%q", meta.Language, meta.Format)
	}

	// chapter1, chapter2, notes; the dangling itemref is skipped
	if got := b.SectionCount(); got != 3 {
		t.Errorf("SectionCount() = %d, want 3", got)
	}
	if !b.Linear(0) || b.Linear(2) {
		t.Errorf("Linear flags wrong: %v %v", b.Linear(0), b.Linear(2))
	}
}

func TestOpen_TOCFromNavDocument(t *testing.T) {
	e := newEnv(t)
	b := e.open(t, epubFixture{}.write(t, e.dir, "book.epub"), testParams())

	want := []model.TOCEntry{
		{Title: "Chapter One", Level: 1, Position: model.Position{Section: 0}},
		{Title: "Part Two", Level: 2, Position: model.Position{Section: 0}},
		{Title: "Chapter Two", Level: 1, Position: model.Position{Section: 1}},
	}
	got := b.TOC()
	if len(got) != len(want) {
		t.Fatalf("TOC = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TOC[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestOpen_TOCFromNCX(t *testing.T) {
	opf := strings.Replace(fixtureOPF,
		`<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>`,
		`<item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>`, 1)
	opf = strings.Replace(opf, "<spine>", `<spine toc="ncx">`, 1)
	ncx := `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n1" playOrder="1">
      <navLabel><text>First</text></navLabel>
      <content src="text/chapter1.xhtml"/>
      <navPoint id="n2" playOrder="2">
        <navLabel><text>Nested</text></navLabel>
        <content src="text/chapter2.xhtml#x"/>
      </navPoint>
    </navPoint>
  </navMap>
</ncx>`
	fx := epubFixture{
		files: map[string]string{"OEBPS/content.opf": opf, "OEBPS/toc.ncx": ncx},
		omit:  []string{"OEBPS/nav.xhtml"},
	}
	e := newEnv(t)
	b := e.open(t, fx.write(t, e.dir, "ncx.epub"), testParams())

	toc := b.TOC()
	if len(toc) != 2 {
		t.Fatalf("TOC = %+v", toc)
	}
	if toc[1].Title != "Nested" || toc[1].Level != 2 || toc[1].Position.Section != 1 {
		t.Errorf("nested entry = %+v", toc[1])
	}
}

func TestOpen_TOCFromChapterTitles(t *testing.T) {
	opf := strings.Replace(fixtureOPF,
		`<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>`, "", 1)
	fx := epubFixture{files: map[string]string{"OEBPS/content.opf": opf}}
	e := newEnv(t)
	b := e.open(t, fx.write(t, e.dir, "plain.epub"), testParams())

	toc := b.TOC()
	if len(toc) != 2 || toc[0].Title != "Chapter 1" || toc[1].Title != "Chapter 2" {
		t.Errorf("TOC = %+v", toc)
	}
}

func TestOpen_SecondOpenDoesNotReindex(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")

	first := e.open(t, path, testParams())
	if !first.Indexed() {
		t.Error("first open did not index")
	}
	first.Close()
	if got := e.fs.Writes(cachedir.MetaKey); got != 1 {
		t.Fatalf("metadata writes after first open = %d, want 1", got)
	}

	second := e.open(t, path, testParams())
	if second.Indexed() {
		t.Error("second open re-indexed an unchanged book")
	}
	if got := e.fs.Writes(cachedir.MetaKey); got != 1 {
		t.Errorf("metadata writes after second open = %d, want 1", got)
	}
	if second.CacheFolder() != first.CacheFolder() {
		t.Error("unchanged book mapped to a different folder")
	}
}

func TestIndexingIsByteIdentical(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")

	b := e.open(t, path, testParams())
	metaPath := filepath.Join(b.CacheFolder(), cachedir.MetaKey)
	first, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.ClearCache(); err != nil {
		t.Fatal(err)
	}
	b.Close()

	again := e.open(t, path, testParams())
	if !again.Indexed() {
		t.Fatal("expected re-index after ClearCache")
	}
	second, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("re-indexing produced a different metadata blob")
	}
}

func TestLoadPage(t *testing.T) {
	e := newEnv(t)
	b := e.open(t, epubFixture{}.write(t, e.dir, "book.epub"), testParams())

	n, err := b.PageCount(0)
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Fatalf("chapter one has %d pages, want several", n)
	}

	first, err := b.LoadPage(model.Position{Section: 0, Page: 0})
	if err != nil {
		t.Fatal(err)
	}
	if first.Number != 1 || !strings.Contains(first.Text(), "Chapter One") {
		t.Errorf("first page = #%d %q", first.Number, first.Text())
	}

	var all strings.Builder
	for i := 0; i < n; i++ {
		p, err := b.LoadPage(model.Position{Section: 0, Page: i})
		if err != nil {
			t.Fatalf("LoadPage(0,%d): %v", i, err)
		}
		all.WriteString(p.Text() + "\n")
	}
	if !strings.Contains(all.String(), "poster of a face") {
		t.Error("image alt text missing from chapter")
	}

	bad := []model.Position{
		{Section: 0, Page: n},
		{Section: 0, Page: -1},
		{Section: 3, Page: 0},
		{Section: -1, Page: 0},
	}
	for _, pos := range bad {
		if _, err := b.LoadPage(pos); !errors.Is(err, model.ErrOutOfBounds) {
			t.Errorf("LoadPage(%+v) error = %v, want out of bounds", pos, err)
		}
	}
	if _, err := b.PageCount(5); !errors.Is(err, model.ErrOutOfBounds) {
		t.Errorf("PageCount(5) error = %v", err)
	}
}

func TestSectionsAreBuiltLazily(t *testing.T) {
	e := newEnv(t)
	b := e.open(t, epubFixture{}.write(t, e.dir, "book.epub"), testParams())

	if b.SectionsBuilt() != 0 {
		t.Fatalf("sections built at open: %d", b.SectionsBuilt())
	}
	if _, err := b.LoadPage(model.Position{Section: 1}); err != nil {
		t.Fatal(err)
	}
	if b.SectionsBuilt() != 1 {
		t.Errorf("SectionsBuilt() = %d, want 1", b.SectionsBuilt())
	}
	if _, err := os.Stat(filepath.Join(b.CacheFolder(), cachedir.SectionKey(0))); !os.IsNotExist(err) {
		t.Error("section 0 was built without being requested")
	}
}

func TestSectionIndependence(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")

	b := e.open(t, path, testParams())
	for s := 0; s < 2; s++ {
		if _, err := b.LoadPage(model.Position{Section: s}); err != nil {
			t.Fatal(err)
		}
	}
	folder := b.CacheFolder()
	b.Close()

	if err := os.WriteFile(filepath.Join(folder, cachedir.SectionKey(0)), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	b = e.open(t, path, testParams())
	p, err := b.LoadPage(model.Position{Section: 1})
	if err != nil {
		t.Fatalf("section 1 failed after section 0 was corrupted: %v", err)
	}
	if !strings.Contains(p.Text(), "Chapter Two") {
		t.Errorf("section 1 page = %q", p.Text())
	}
	if b.SectionsBuilt() != 0 {
		t.Errorf("section 1 was rebuilt")
	}

	if _, err := b.LoadPage(model.Position{Section: 0}); err != nil {
		t.Fatalf("corrupt section 0 was not rebuilt: %v", err)
	}
	if b.SectionsBuilt() != 1 {
		t.Errorf("SectionsBuilt() = %d, want 1", b.SectionsBuilt())
	}
}

func TestSectionWriteFailureStillServesPages(t *testing.T) {
	e := newEnv(t)
	e.fs.AddRule("section_0", storage.Fault{FailWrite: true})
	b := e.open(t, epubFixture{}.write(t, e.dir, "book.epub"), testParams())

	if _, err := b.LoadPage(model.Position{Section: 0}); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.CacheFolder(), cachedir.SectionKey(0))); !os.IsNotExist(err) {
		t.Error("failed write left a section blob behind")
	}
}

func TestParamsChangeTriggersReindex(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")

	small := e.open(t, path, testParams())
	smallCount, err := small.PageCount(0)
	if err != nil {
		t.Fatal(err)
	}
	small.Close()

	large := testParams()
	large.ScreenWidth, large.ScreenHeight = 120, 80
	b := e.open(t, path, large)
	if !b.Indexed() {
		t.Error("changed params did not trigger re-index")
	}
	largeCount, err := b.PageCount(0)
	if err != nil {
		t.Fatal(err)
	}
	if largeCount >= smallCount {
		t.Errorf("page count with larger screen = %d, small = %d", largeCount, smallCount)
	}
	if b.SectionsBuilt() != 1 {
		t.Errorf("stale section blob was served")
	}
}

func TestReplacedFileUsesNewFolder(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")
	b := e.open(t, path, testParams())
	oldFolder := b.CacheFolder()
	b.Close()

	opf := strings.Replace(fixtureOPF, "Test Book", "Replacement Book", 1)
	epubFixture{files: map[string]string{"OEBPS/content.opf": opf}}.write(t, e.dir, "book.epub")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	b = e.open(t, path, testParams())
	if b.CacheFolder() == oldFolder {
		t.Fatal("replaced file reused the old cache folder")
	}
	if !b.Indexed() || b.Metadata().Title != "Replacement Book" {
		t.Errorf("replaced file served stale metadata: %q", b.Metadata().Title)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		fx   *epubFixture
		kind error
		is   error
	}{
		{"missing file", nil, model.ErrOpen, nil},
		{"not a zip", &epubFixture{rawData: []byte("plain text")}, model.ErrCorruptFormat, ErrInvalidArchive},
		{"no container", &epubFixture{omit: []string{"META-INF/container.xml"}}, model.ErrCorruptFormat, ErrNoContainer},
		{"bad opf", &epubFixture{files: map[string]string{"OEBPS/content.opf": "<package"}}, model.ErrCorruptFormat, ErrInvalidOPF},
		{"empty spine", &epubFixture{omit: []string{"OEBPS/text/chapter1.xhtml", "OEBPS/text/chapter2.xhtml", "OEBPS/text/notes.xhtml"}}, model.ErrCorruptFormat, ErrEmptySpine},
		{"adobe drm", &epubFixture{files: map[string]string{"META-INF/rights.xml": "<rights/>"}}, model.ErrOpen, ErrDRMProtected},
		{"encrypted content", &epubFixture{files: map[string]string{"META-INF/encryption.xml": encryptionXMLFor(
			"http://www.w3.org/2001/04/xmlenc#aes256-cbc", "OEBPS/text/chapter1.xhtml")}}, model.ErrOpen, ErrDRMProtected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			path := filepath.Join(e.dir, "missing.epub")
			if tt.fx != nil {
				path = tt.fx.write(t, e.dir, "bad.epub")
			}
			_, err := Open(path, Config{Cache: e.cache, Params: testParams()})
			if !errors.Is(err, tt.kind) {
				t.Errorf("error = %v, want kind %v", err, tt.kind)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
			if !model.IsFatal(err) {
				t.Errorf("open error %v is not fatal", err)
			}
		})
	}
}

func TestOpen_FontObfuscationIsNotDRM(t *testing.T) {
	fx := epubFixture{files: map[string]string{
		"META-INF/encryption.xml": encryptionXMLFor("http://www.idpf.org/2008/embedding", "OEBPS/fonts/a.otf"),
	}}
	e := newEnv(t)
	if _, err := Open(fx.write(t, e.dir, "fonts.epub"), Config{Cache: e.cache, Params: testParams()}); err != nil {
		t.Errorf("Open failed: %v", err)
	}
}

func TestIsFontObfuscation(t *testing.T) {
	tests := []struct {
		algo string
		want bool
	}{
		{"http://www.idpf.org/2008/embedding", false},
		{"http://www.idpf.org/2008/embedding#obfuscation", true},
		{"http://ns.adobe.com/pdf/enc#RC-obfuscation", true},
		{"http://www.w3.org/2001/04/xmlenc#aes128-cbc", false},
	}
	for _, tt := range tests {
		if got := isFontObfuscation(tt.algo); got != tt.want {
			t.Errorf("isFontObfuscation(%q) = %v, want %v", tt.algo, got, tt.want)
		}
	}
}

func TestCover(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 6, 8)), nil); err != nil {
		t.Fatal(err)
	}

	withCover := func(href, mediaType, data string) epubFixture {
		opf := strings.Replace(fixtureOPF, "<manifest>",
			`<manifest><item id="cover" href="`+href+`" media-type="`+mediaType+`" properties="cover-image"/>`, 1)
		return epubFixture{files: map[string]string{"OEBPS/content.opf": opf, "OEBPS/" + href: data}}
	}

	t.Run("jpeg", func(t *testing.T) {
		e := newEnv(t)
		b := e.open(t, withCover("images/cover.jpg", "image/jpeg", jpg.String()).write(t, e.dir, "c.epub"), testParams())
		img, ok := b.Cover()
		if !ok {
			t.Fatal("expected a cover")
		}
		if img.Bounds().Dx() != 6 {
			t.Errorf("cover width = %d", img.Bounds().Dx())
		}
		if _, err := os.Stat(filepath.Join(b.CacheFolder(), cachedir.CoverJPGKey)); err != nil {
			t.Errorf("cover not cached: %v", err)
		}
	})

	t.Run("png is unsupported", func(t *testing.T) {
		e := newEnv(t)
		b := e.open(t, withCover("images/cover.png", "image/png", "\x89PNG").write(t, e.dir, "p.epub"), testParams())
		if _, ok := b.Cover(); ok {
			t.Error("png cover should be reported as absent")
		}
	})

	t.Run("no cover", func(t *testing.T) {
		e := newEnv(t)
		b := e.open(t, epubFixture{}.write(t, e.dir, "n.epub"), testParams())
		if _, ok := b.Cover(); ok {
			t.Error("unexpected cover")
		}
	})
}

func encryptionXMLFor(algorithm, uri string) string {
	return `<?xml version="1.0"?>
<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#">
    <EncryptionMethod Algorithm="` + algorithm + `"/>
    <CipherData><CipherReference URI="` + uri + `"/></CipherData>
  </EncryptedData>
</encryption>`
}

func TestDamagedChapterIsLocal(t *testing.T) {
	e := newEnv(t)
	path := epubFixture{}.write(t, e.dir, "book.epub")
	corruptEntry(t, path, "OEBPS/text/chapter2.xhtml")

	b := e.open(t, path, testParams())
	if _, err := b.PageCount(1); !errors.Is(err, model.ErrCorruptFormat) {
		t.Errorf("PageCount(1) error = %v, want ErrCorruptFormat", err)
	}
	if _, err := b.LoadPage(model.Position{Section: 1}); !errors.Is(err, model.ErrCorruptFormat) {
		t.Errorf("LoadPage(1, 0) error = %v, want ErrCorruptFormat", err)
	}
	p, err := b.LoadPage(model.Position{Section: 0})
	if err != nil {
		t.Fatalf("section 0 failed next to a damaged section: %v", err)
	}
	if !strings.Contains(p.Text(), "Chapter One") {
		t.Errorf("section 0 page = %q", p.Text())
	}
}
