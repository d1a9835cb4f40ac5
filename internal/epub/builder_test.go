package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func testMeta() Metadata {
	return Metadata{
		Title:    "The Test Book",
		Author:   "A. Writer",
		Modified: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testChapters(n int) []Chapter {
	out := make([]Chapter, n)
	for i := range out {
		out[i] = Chapter{
			Number:     i + 1,
			Title:      fmt.Sprintf("Chapter %d", i+1),
			Paragraphs: []string{"One paragraph.", "Another paragraph."},
		}
	}
	return out
}

// opfPackage mirrors the pieces of content.opf the tests verify.
type opfPackage struct {
	Metadata struct {
		Identifier string `xml:"identifier"`
		Title      string `xml:"title"`
		Creator    string `xml:"creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemrefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func parseOPF(t *testing.T, data []byte) *opfPackage {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "OEBPS/content.opf" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening content.opf: %v", err)
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("reading content.opf: %v", err)
		}
		var pkg opfPackage
		if err := xml.Unmarshal(raw, &pkg); err != nil {
			t.Fatalf("parsing content.opf: %v", err)
		}
		return &pkg
	}
	t.Fatal("archive has no OEBPS/content.opf")
	return nil
}

func TestBuilder(t *testing.T) {
	t.Run("mimetype is the first entry and stored", func(t *testing.T) {
		buf, err := NewBuilder(testMeta(), testChapters(2)).BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		if err != nil {
			t.Fatalf("opening archive: %v", err)
		}
		if len(zr.File) == 0 {
			t.Fatal("empty archive")
		}
		first := zr.File[0]
		if first.Name != "mimetype" {
			t.Errorf("first entry = %s, want mimetype", first.Name)
		}
		if first.Method != zip.Store {
			t.Errorf("mimetype method = %d, want Store", first.Method)
		}
	})

	t.Run("manifest round trip preserves order and metadata", func(t *testing.T) {
		meta := testMeta()
		chapters := testChapters(5)
		buf, err := NewBuilder(meta, chapters).BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}

		pkg := parseOPF(t, buf.Bytes())
		if pkg.Metadata.Title != meta.Title {
			t.Errorf("title = %s, want %s", pkg.Metadata.Title, meta.Title)
		}
		if pkg.Metadata.Creator != meta.Author {
			t.Errorf("creator = %s, want %s", pkg.Metadata.Creator, meta.Author)
		}

		if len(pkg.Spine.Itemrefs) != len(chapters) {
			t.Fatalf("spine has %d entries, want %d", len(pkg.Spine.Itemrefs), len(chapters))
		}
		for i, ref := range pkg.Spine.Itemrefs {
			want := fmt.Sprintf("chapter_%04d", i+1)
			if ref.IDRef != want {
				t.Errorf("spine[%d] = %s, want %s", i, ref.IDRef, want)
			}
		}
	})

	t.Run("byte identical for identical input", func(t *testing.T) {
		a, err := NewBuilder(testMeta(), testChapters(3)).BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		b, err := NewBuilder(testMeta(), testChapters(3)).BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Error("two builds from identical input differ")
		}
	})

	t.Run("cover is declared in the manifest", func(t *testing.T) {
		b := NewBuilder(testMeta(), testChapters(1))
		b.SetCover(Cover{Data: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg"})
		buf, err := b.BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}

		pkg := parseOPF(t, buf.Bytes())
		var found bool
		for _, item := range pkg.Manifest.Items {
			if item.Properties == "cover-image" {
				found = true
				if item.Href != "images/cover.jpg" {
					t.Errorf("cover href = %s, want images/cover.jpg", item.Href)
				}
				if item.MediaType != "image/jpeg" {
					t.Errorf("cover media-type = %s", item.MediaType)
				}
			}
		}
		if !found {
			t.Error("manifest has no cover-image item")
		}

		zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		var hasEntry bool
		for _, f := range zr.File {
			if f.Name == "OEBPS/images/cover.jpg" {
				hasEntry = true
			}
		}
		if !hasEntry {
			t.Error("archive has no OEBPS/images/cover.jpg entry")
		}
	})

	t.Run("unavailable chapter keeps its spine slot with placeholder", func(t *testing.T) {
		chapters := testChapters(3)
		chapters[1] = Chapter{Number: 2, Title: "Gone", Unavailable: true}

		buf, err := NewBuilder(testMeta(), chapters).BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}

		pkg := parseOPF(t, buf.Bytes())
		if len(pkg.Spine.Itemrefs) != 3 {
			t.Fatalf("spine has %d entries, want 3", len(pkg.Spine.Itemrefs))
		}

		zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		for _, f := range zr.File {
			if f.Name != "OEBPS/chapters/chapter_0002.xhtml" {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("opening placeholder chapter: %v", err)
			}
			raw, _ := io.ReadAll(rc)
			rc.Close()
			if !strings.Contains(string(raw), "[Chapter 2 unavailable: Gone]") {
				t.Errorf("placeholder body missing, got:\n%s", raw)
			}
		}
	})

	t.Run("identifier is stable for the same book", func(t *testing.T) {
		a := NewBuilder(testMeta(), nil).generateIdentifier()
		b := NewBuilder(testMeta(), nil).generateIdentifier()
		if a != b {
			t.Errorf("identifiers differ: %s vs %s", a, b)
		}
		other := testMeta()
		other.Title = "A Different Book"
		if a == NewBuilder(other, nil).generateIdentifier() {
			t.Error("different books share an identifier")
		}
	})
}
