package epub

import (
	"fmt"
	"strings"
)

// generateChapterXHTML renders a chapter body as minimal XHTML:
// a heading followed by one <p> per paragraph. Unavailable chapters
// render a single placeholder line so the spine slot is never empty.
func (b *Builder) generateChapterXHTML(ch Chapter) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(b.navTitle(ch)))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
`)

	if ch.Unavailable {
		sb.WriteString(fmt.Sprintf("<p class=\"unavailable\">%s</p>\n", escapeXML(UnavailableLine(ch.Number, ch.Title))))
	} else {
		sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", escapeXML(b.navTitle(ch))))
		for _, p := range ch.Paragraphs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			sb.WriteString(fmt.Sprintf("<p>%s</p>\n", escapeXML(p)))
		}
	}

	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

// UnavailableLine is the placeholder text for a chapter that could
// not be fetched. number is the 1-based chapter number.
func UnavailableLine(number int, title string) string {
	if title == "" {
		title = "unknown"
	}
	return fmt.Sprintf("[Chapter %d unavailable: %s]", number, title)
}
