package epub

import (
	"fmt"
	"strings"
)

// generatePackage creates the content.opf package document. The spine
// lists chapters in ascending chapter number, which callers guarantee
// is the canonical reading order.
func (b *Builder) generatePackage() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)

	// Dublin Core metadata
	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", b.generateIdentifier()))
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(b.meta.Title)))
	sb.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", escapeXML(b.meta.Author)))

	lang := b.meta.Language
	if lang == "" {
		lang = "en"
	}
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", lang))

	// dcterms:modified is required for ePub 3. The caller supplies a
	// fixed timestamp so output is reproducible.
	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n",
		b.meta.Modified.UTC().Format("2006-01-02T15:04:05Z")))

	if b.cover != nil {
		// ePub 2 reader compatibility
		sb.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}

	sb.WriteString("  </metadata>\n\n")

	// Manifest
	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")

	if b.cover != nil {
		sb.WriteString(fmt.Sprintf("    <item id=\"cover-image\" href=\"images/%s\" media-type=\"%s\" properties=\"cover-image\"/>\n",
			b.coverFilename(), b.cover.MIMEType))
	}

	// Chapter items
	for _, ch := range b.chapters {
		id := chapterID(ch)
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n",
			id, id))
	}

	sb.WriteString("  </manifest>\n\n")

	// Spine (reading order)
	sb.WriteString("  <spine toc=\"ncx\">\n")
	for _, ch := range b.chapters {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", chapterID(ch)))
	}
	sb.WriteString("  </spine>\n")

	sb.WriteString("</package>\n")

	return sb.String()
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
