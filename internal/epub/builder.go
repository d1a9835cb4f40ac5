// Package epub provides EPUB 3.0 generation for downloaded books.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Metadata holds the book-level fields written into the package
// document. Modified is embedded as dcterms:modified; callers pass a
// fixed value so identical inputs produce identical archives.
type Metadata struct {
	Identifier string // falls back to a name-based UUID over title/author
	Title      string
	Author     string
	Language   string // ISO 639-1 code, defaults to "en"
	Modified   time.Time
}

// Chapter is one spine entry. Number is the 1-based chapter number
// that names the content file (chapter_0001 and so on). Unavailable
// chapters still occupy their spine slot with a placeholder body.
type Chapter struct {
	Number      int
	Title       string
	Paragraphs  []string
	Unavailable bool
}

// Cover is the optional cover image resource.
type Cover struct {
	Data     []byte
	MIMEType string
}

// Builder creates EPUB 3.0 files.
type Builder struct {
	meta     Metadata
	chapters []Chapter
	cover    *Cover
}

// NewBuilder creates an epub builder for the given book and chapters.
// Chapters must already be in reading order.
func NewBuilder(meta Metadata, chapters []Chapter) *Builder {
	return &Builder{
		meta:     meta,
		chapters: chapters,
	}
}

// SetCover attaches a cover image. Must be called before the build.
func (b *Builder) SetCover(cover Cover) {
	b.cover = &cover
}

// BuildToBuffer generates the epub and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	// 1. mimetype (must be first, uncompressed)
	if err := b.writeMimetype(zw); err != nil {
		return err
	}

	// 2. META-INF/container.xml
	if err := b.writeContainer(zw); err != nil {
		return err
	}

	// 3. OEBPS/content.opf (package document)
	if err := b.writePackage(zw); err != nil {
		return err
	}

	// 4. OEBPS/nav.xhtml (navigation)
	if err := b.writeNavigation(zw); err != nil {
		return err
	}

	// 5. OEBPS/toc.ncx (NCX for ePub 2 compatibility)
	if err := b.writeNCX(zw); err != nil {
		return err
	}

	// 6. OEBPS/styles/style.css
	if err := b.writeStylesheet(zw); err != nil {
		return err
	}

	// 7. Cover image, when present
	if b.cover != nil {
		if err := b.writeCover(zw); err != nil {
			return err
		}
	}

	// 8. Chapter files
	for _, ch := range b.chapters {
		if err := b.writeChapter(zw, ch); err != nil {
			return fmt.Errorf("failed to write chapter %s: %w", chapterID(ch), err)
		}
	}

	return nil
}

// chapterID names a chapter entry by zero-padded chapter number.
func chapterID(ch Chapter) string {
	return fmt.Sprintf("chapter_%04d", ch.Number)
}

// writeMimetype writes the mimetype file (must be first and uncompressed).
func (b *Builder) writeMimetype(zw *zip.Writer) error {
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

// writeContainer writes META-INF/container.xml.
func (b *Builder) writeContainer(zw *zip.Writer) error {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

	w, err := zw.Create("META-INF/container.xml")
	if err != nil {
		return fmt.Errorf("failed to create container.xml: %w", err)
	}
	_, err = w.Write([]byte(content))
	return err
}

// writePackage writes OEBPS/content.opf.
func (b *Builder) writePackage(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/content.opf")
	if err != nil {
		return fmt.Errorf("failed to create content.opf: %w", err)
	}
	_, err = w.Write([]byte(b.generatePackage()))
	return err
}

// writeNavigation writes OEBPS/nav.xhtml.
func (b *Builder) writeNavigation(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/nav.xhtml")
	if err != nil {
		return fmt.Errorf("failed to create nav.xhtml: %w", err)
	}
	_, err = w.Write([]byte(b.generateNavigation()))
	return err
}

// writeNCX writes OEBPS/toc.ncx for ePub 2 compatibility.
func (b *Builder) writeNCX(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/toc.ncx")
	if err != nil {
		return fmt.Errorf("failed to create toc.ncx: %w", err)
	}
	_, err = w.Write([]byte(b.generateNCX()))
	return err
}

// writeStylesheet writes OEBPS/styles/style.css.
func (b *Builder) writeStylesheet(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/styles/style.css")
	if err != nil {
		return fmt.Errorf("failed to create style.css: %w", err)
	}
	_, err = w.Write([]byte(defaultStylesheet))
	return err
}

// writeCover writes the cover image under OEBPS/images/.
func (b *Builder) writeCover(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/images/" + b.coverFilename())
	if err != nil {
		return fmt.Errorf("failed to create cover entry: %w", err)
	}
	_, err = w.Write(b.cover.Data)
	return err
}

// coverFilename derives the cover entry name from its media type.
func (b *Builder) coverFilename() string {
	switch b.cover.MIMEType {
	case "image/png":
		return "cover.png"
	case "image/gif":
		return "cover.gif"
	case "image/svg+xml":
		return "cover.svg"
	default:
		return "cover.jpg"
	}
}

// writeChapter writes a single chapter XHTML file.
func (b *Builder) writeChapter(zw *zip.Writer, ch Chapter) error {
	filename := fmt.Sprintf("OEBPS/chapters/%s.xhtml", chapterID(ch))
	w, err := zw.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	_, err = w.Write([]byte(b.generateChapterXHTML(ch)))
	return err
}

// namespaceBookfetch scopes name-based identifiers so re-runs of the
// same book produce the same publication identifier.
var namespaceBookfetch = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/bookfetch/bookfetch"))

// generateIdentifier returns the publication identifier.
func (b *Builder) generateIdentifier() string {
	if b.meta.Identifier != "" {
		return b.meta.Identifier
	}
	seed := b.meta.Title + "\x00" + b.meta.Author
	return "urn:uuid:" + uuid.NewSHA1(namespaceBookfetch, []byte(seed)).String()
}

const defaultStylesheet = `/* bookfetch ePub stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1, h2, h3 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
}

h1 {
  font-size: 1.8em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

p:first-of-type,
h1 + p, h2 + p {
  text-indent: 0;
}

.unavailable {
  font-style: italic;
  text-align: center;
  margin-top: 3em;
}
`
