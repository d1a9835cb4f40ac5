// Package orchestrator coordinates download jobs end to end: it
// validates the requested selection, runs the fetch scheduler and
// collector, and hands the collected book to the assembler. Batch
// mode processes several books under its own concurrency bound,
// independent of each job's chapter concurrency.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/bookfetch/bookfetch/internal/assemble"
	"github.com/bookfetch/bookfetch/internal/book"
	"github.com/bookfetch/bookfetch/internal/download"
	"github.com/bookfetch/bookfetch/internal/source"
)

// Orchestrator runs one-or-many download jobs against a single source.
type Orchestrator struct {
	src              source.Client
	logger           *slog.Logger
	batchConcurrency int
	onProgress       download.ProgressFunc
	timer            retry.Timer
}

// Config configures an orchestrator.
type Config struct {
	Source           source.Client
	Logger           *slog.Logger
	BatchConcurrency int // concurrent books in batch mode (default 2)
	OnProgress       download.ProgressFunc

	// Timer overrides the scheduler backoff clock for tests.
	Timer retry.Timer
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.BatchConcurrency
	if batch <= 0 {
		batch = 2
	}
	return &Orchestrator{
		src:              cfg.Source,
		logger:           logger.With("component", "orchestrator"),
		batchConcurrency: batch,
		onProgress:       cfg.OnProgress,
		timer:            cfg.Timer,
	}
}

// JobResult pairs a job's terminal outcome with its artifact, if one
// was written.
type JobResult struct {
	Outcome      *book.BookOutcome
	ArtifactPath string
	Err          error
}

// RunJob executes one download job to its terminal outcome. Selection
// validation happens before any chapter fetch; an invalid selection
// surfaces immediately as book.ErrInvalidSelection.
func (o *Orchestrator) RunJob(ctx context.Context, job book.DownloadJob) JobResult {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Format == "" {
		job.Format = book.FormatEPUB
	}

	// A job may carry only a book ID; look the record up first.
	if job.Book.ChapterCount == 0 && job.Book.Title == "" {
		bk, err := o.src.GetBook(ctx, job.Book.ID)
		if err != nil {
			return JobResult{Err: fmt.Errorf("looking up book %s: %w", job.Book.ID, err)}
		}
		job.Book = bk
	}

	indices, err := job.Selection.Resolve(job.Book.ChapterCount)
	if err != nil {
		return JobResult{Err: err}
	}

	metas, err := o.src.ListChapters(ctx, job.Book.ID)
	if err != nil {
		return JobResult{Err: fmt.Errorf("listing chapters for %s: %w", job.Book.ID, err)}
	}

	o.logger.Info("job starting",
		"book_id", job.Book.ID, "title", job.Book.Title,
		"chapters", len(indices), "format", job.Format)

	sched := download.NewScheduler(download.SchedulerConfig{
		Source:     o.src,
		Policy:     job.Policy,
		Logger:     o.logger,
		OnProgress: o.onProgress,
		Timer:      o.timer,
	})
	results, err := sched.Run(ctx, job.Book, metas, indices)
	if err != nil {
		return JobResult{Err: err}
	}

	outcome := download.NewCollector(o.logger).Collect(ctx, job, metas, indices, results)

	path, err := o.emitArtifact(ctx, outcome)
	if err != nil {
		return JobResult{Outcome: outcome, Err: err}
	}

	o.logger.Info("job finished",
		"book_id", job.Book.ID, "outcome", outcome.Outcome,
		"failed", len(outcome.FailedIndices), "artifact", path)

	return JobResult{Outcome: outcome, ArtifactPath: path}
}

// emitArtifact assembles and writes the artifact when the outcome
// permits one. Aborted jobs get no EPUB; a best-effort partial text
// artifact is written only when the policy opts in.
func (o *Orchestrator) emitArtifact(ctx context.Context, outcome *book.BookOutcome) (string, error) {
	job := outcome.Job

	if outcome.Outcome == book.OutcomeAborted {
		if !(job.Format == book.FormatText && job.Policy.Tolerance.PartialArtifactOnAbort) {
			return "", nil
		}
		if outcome.SuccessCount() == 0 {
			return "", nil
		}
	}

	var cover *book.CoverImage
	if job.Format == book.FormatEPUB && job.Book.CoverAvailable {
		c, err := o.src.FetchCover(ctx, job.Book.ID)
		switch {
		case err == nil:
			cover = &c
		case errors.Is(err, source.ErrNotFound):
			o.logger.Warn("cover not found, continuing without it", "book_id", job.Book.ID)
		default:
			o.logger.Warn("cover fetch failed, continuing without it",
				"book_id", job.Book.ID, "error", err)
		}
	}

	data, err := assemble.NewAssembler(o.logger).Assemble(outcome, cover)
	if err != nil {
		return "", err
	}

	dir := job.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, assemble.ArtifactFilename(job.Book, job.Format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

// RunBatch processes jobs with a bounded pool of concurrent books.
// One book's failure never aborts its siblings; results come back in
// input order.
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []book.DownloadJob) []JobResult {
	results := make([]JobResult, len(jobs))

	// Claim-one queue over job positions, same shape as the chapter
	// queue one level down.
	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	workers := o.batchConcurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					results[i] = JobResult{Err: ctx.Err()}
					continue
				}
				results[i] = o.RunJob(ctx, jobs[i])
			}
		}()
	}
	wg.Wait()

	return results
}
