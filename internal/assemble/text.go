package assemble

import (
	"fmt"
	"strings"

	"github.com/bookfetch/bookfetch/internal/book"
	"github.com/bookfetch/bookfetch/internal/epub"
)

// chapterDelimiter separates chapters in the text artifact.
const chapterDelimiter = "* * *"

// generationNote is appended as a footer so the artifact records its origin.
const generationNote = "Downloaded with bookfetch."

// assembleText renders the deterministic plain-text artifact:
// line 1 title, line 2 author, a blank line, then every requested
// chapter in index order. Failed chapters render an explicit
// placeholder line, so the artifact's chapter count always equals the
// requested chapter count.
func (a *Assembler) assembleText(outcome *book.BookOutcome) ([]byte, error) {
	bk := outcome.Job.Book

	var sb strings.Builder
	sb.WriteString(bk.Title)
	sb.WriteString("\n")
	sb.WriteString(bk.Author)
	sb.WriteString("\n\n")

	for i, ch := range outcome.Chapters {
		if i > 0 {
			sb.WriteString(chapterDelimiter)
			sb.WriteString("\n\n")
		}
		if ch.Status == book.StatusSuccess {
			title := ch.Title
			if title == "" {
				title = fmt.Sprintf("Chapter %d", ch.Index+1)
			}
			sb.WriteString(title)
			sb.WriteString("\n\n")
			for _, p := range ch.Body {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				sb.WriteString(p)
				sb.WriteString("\n\n")
			}
		} else {
			sb.WriteString(epub.UnavailableLine(ch.Index+1, ch.Title))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString(generationNote)
	sb.WriteString("\n")

	a.logger.Debug("assembled text",
		"book_id", bk.ID, "chapters", len(outcome.Chapters), "bytes", sb.Len())
	return []byte(sb.String()), nil
}
