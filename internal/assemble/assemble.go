// Package assemble serializes a collected book into its artifact
// container: a plain-text file or an EPUB archive.
package assemble

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bookfetch/bookfetch/internal/book"
	"github.com/bookfetch/bookfetch/internal/epub"
)

// ErrFormat indicates the requested format's minimal structural
// requirements cannot be met. It marks a structural bug or an empty
// outcome and is never retried.
var ErrFormat = errors.New("format error")

// Assembler turns a BookOutcome into artifact bytes.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger.With("component", "assembler")}
}

// Assemble serializes the outcome in the job's format. The cover is
// optional and only embedded in EPUB output. At least one successful
// chapter is required for any format.
func (a *Assembler) Assemble(outcome *book.BookOutcome, cover *book.CoverImage) ([]byte, error) {
	if outcome.SuccessCount() == 0 {
		return nil, fmt.Errorf("%w: no successful chapters to assemble", ErrFormat)
	}

	switch outcome.Job.Format {
	case book.FormatText:
		return a.assembleText(outcome)
	case book.FormatEPUB:
		return a.assembleEPUB(outcome, cover)
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", ErrFormat, outcome.Job.Format)
	}
}

// assembleEPUB builds the archive container. Chapters keep their
// spine slot even when failed, rendered as placeholder entries.
func (a *Assembler) assembleEPUB(outcome *book.BookOutcome, cover *book.CoverImage) ([]byte, error) {
	bk := outcome.Job.Book

	chapters := make([]epub.Chapter, 0, len(outcome.Chapters))
	for _, ch := range outcome.Chapters {
		chapters = append(chapters, epub.Chapter{
			Number:      ch.Index + 1,
			Title:       ch.Title,
			Paragraphs:  ch.Body,
			Unavailable: ch.Status != book.StatusSuccess,
		})
	}

	builder := epub.NewBuilder(epub.Metadata{
		Title:    bk.Title,
		Author:   bk.Author,
		Modified: outcome.Job.CreatedAt.Truncate(time.Second),
	}, chapters)

	if cover != nil && len(cover.Data) > 0 {
		builder.SetCover(epub.Cover{Data: cover.Data, MIMEType: cover.MIMEType})
	}

	buf, err := builder.BuildToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	a.logger.Debug("assembled epub",
		"book_id", bk.ID, "chapters", len(chapters), "bytes", buf.Len(), "cover", cover != nil)
	return buf.Bytes(), nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ArtifactFilename derives the output file name from the book title.
func ArtifactFilename(bk book.Book, format book.Format) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(bk.Title, "_"), "_")
	if base == "" {
		base = bk.ID
	}
	switch format {
	case book.FormatEPUB:
		return base + ".epub"
	default:
		return base + ".txt"
	}
}
