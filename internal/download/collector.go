package download

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bookfetch/bookfetch/internal/book"
)

// Collector buffers completed chapter fetches, which arrive in
// arbitrary order, and reconstructs the canonical index order. It is
// the only writer of the per-book chapter holder; workers hand results
// over the scheduler's channel.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a collector.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger.With("component", "collector")}
}

// Collect drains the results stream and materializes the ordered,
// status-annotated chapter set for the requested indices. Indices the
// stream never resolved (cancellation, abort-on-failure) are marked
// failed with the cause recorded, so no missing chapter goes untraced.
func (c *Collector) Collect(ctx context.Context, job book.DownloadJob, metas []book.ChapterMeta, indices []int, results <-chan book.ChapterContent) *book.BookOutcome {
	titles := make(map[int]string, len(metas))
	for _, m := range metas {
		titles[m.Index] = m.Title
	}

	holder := make(map[int]book.ChapterContent, len(indices))
	for content := range results {
		if _, dup := holder[content.Index]; dup {
			c.logger.Warn("duplicate chapter result dropped", "chapter", content.Index)
			continue
		}
		holder[content.Index] = content
	}

	cancelled := ctx.Err() != nil

	ordered := make([]int, len(indices))
	copy(ordered, indices)
	sort.Ints(ordered)

	chapters := make([]book.ChapterContent, 0, len(ordered))
	failedIndices := make(map[int]struct{})
	unresolved := 0

	for _, idx := range ordered {
		content, ok := holder[idx]
		if !ok {
			// Never claimed or cancelled mid-flight.
			unresolved++
			content = book.ChapterContent{
				Index:  idx,
				Title:  titles[idx],
				Status: book.StatusFailed,
				Err:    context.Canceled,
			}
		}
		if content.Status != book.StatusSuccess {
			failedIndices[idx] = struct{}{}
		}
		chapters = append(chapters, content)
	}

	outcome := c.decide(job.Policy, len(ordered), len(failedIndices), unresolved, cancelled)

	// Under a lenient policy, exhausted chapters that the job is
	// proceeding without are reported as skipped.
	if outcome == book.OutcomePartialSuccess {
		for i := range chapters {
			if chapters[i].Status == book.StatusFailed {
				chapters[i].Status = book.StatusSkipped
			}
		}
	}

	c.logger.Info("collection finished",
		"book_id", job.Book.ID,
		"chapters", len(chapters),
		"failed", len(failedIndices),
		"outcome", outcome)

	return &book.BookOutcome{
		Job:           job,
		Chapters:      chapters,
		FailedIndices: failedIndices,
		Outcome:       outcome,
	}
}

// decide classifies the job's terminal outcome.
func (c *Collector) decide(policy book.Policy, total, failed, unresolved int, cancelled bool) book.Outcome {
	if cancelled || unresolved > 0 {
		return book.OutcomeAborted
	}
	if failed == 0 {
		return book.OutcomeComplete
	}
	if policy.AbortOnFailure {
		return book.OutcomeAborted
	}
	if policy.Tolerance.Allows(failed, total) {
		return book.OutcomePartialSuccess
	}
	return book.OutcomeAborted
}
