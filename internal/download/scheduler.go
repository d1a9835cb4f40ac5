// Package download implements the chapter fetch pipeline: a bounded
// worker pool that pulls chapter indices from a shared claim-one
// queue, retries transient failures with capped exponential backoff,
// and hands terminal results to the collector by message passing.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/avast/retry-go/v4"

	"github.com/bookfetch/bookfetch/internal/book"
	"github.com/bookfetch/bookfetch/internal/source"
)

// ErrSchedulerReused indicates Run was called twice on one scheduler.
// A scheduler carries per-job state and is single-use.
var ErrSchedulerReused = errors.New("scheduler already ran: create a fresh scheduler per job")

// Scheduler turns a book's requested chapter set into bounded-concurrency
// fetches against the source. Create one per job via NewScheduler.
type Scheduler struct {
	src        source.Client
	policy     book.Policy
	logger     *slog.Logger
	timer      retry.Timer
	onProgress ProgressFunc

	started atomic.Bool

	done   atomic.Int32
	failed atomic.Int32
	total  int

	// cancelJob is armed when policy.AbortOnFailure is set.
	cancelJob context.CancelFunc
}

// SchedulerConfig configures a new scheduler.
type SchedulerConfig struct {
	Source     source.Client
	Policy     book.Policy
	Logger     *slog.Logger
	OnProgress ProgressFunc

	// Timer overrides the backoff clock. Tests inject an instant timer
	// so retry paths run without real delays. Nil uses real time.
	Timer retry.Timer
}

// NewScheduler creates a single-use scheduler for one job.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if policy.Concurrency <= 0 {
		policy.Concurrency = book.DefaultPolicy().Concurrency
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = book.DefaultPolicy().MaxRetries
	}
	if policy.FetchTimeout <= 0 {
		policy.FetchTimeout = book.DefaultPolicy().FetchTimeout
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = book.DefaultPolicy().BackoffBase
	}
	if policy.BackoffCap <= 0 {
		policy.BackoffCap = book.DefaultPolicy().BackoffCap
	}
	return &Scheduler{
		src:        cfg.Source,
		policy:     policy,
		logger:     logger.With("component", "scheduler"),
		timer:      cfg.Timer,
		onProgress: cfg.OnProgress,
	}
}

// Run dispatches fetches for the requested indices and returns a
// channel of terminal ChapterContent values. The channel closes once
// every claimed index resolved or the context was cancelled. Results
// arrive in completion order, not index order; the collector restores
// canonical order.
func (s *Scheduler) Run(ctx context.Context, bk book.Book, metas []book.ChapterMeta, indices []int) (<-chan book.ChapterContent, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrSchedulerReused
	}
	s.total = len(indices)

	titles := make(map[int]string, len(metas))
	for _, m := range metas {
		titles[m.Index] = m.Title
	}

	jobCtx := ctx
	if s.policy.AbortOnFailure {
		jobCtx, s.cancelJob = context.WithCancel(ctx)
	}

	// Claim-one-item queue: closed after seeding, so each worker's
	// receive claims exactly one pending index.
	queue := make(chan int, len(indices))
	for _, idx := range indices {
		queue <- idx
	}
	close(queue)

	results := make(chan book.ChapterContent, len(indices))

	workers := s.policy.Concurrency
	if workers > len(indices) {
		workers = len(indices)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(jobCtx, id, bk, titles, queue, results)
		}(i)
	}
	go func() {
		wg.Wait()
		if s.cancelJob != nil {
			s.cancelJob()
		}
		close(results)
	}()

	s.logger.Debug("scheduler started",
		"book_id", bk.ID, "chapters", len(indices), "workers", workers)

	return results, nil
}

// worker claims indices until the queue drains or the job is cancelled.
func (s *Scheduler) worker(ctx context.Context, id int, bk book.Book, titles map[int]string, queue <-chan int, results chan<- book.ChapterContent) {
	for {
		select {
		case <-ctx.Done():
			return
		case idx, ok := <-queue:
			if !ok {
				return
			}
			content := s.fetchOne(ctx, bk, idx, titles[idx])
			if content.Status == book.StatusFailed {
				s.failed.Add(1)
				if s.policy.AbortOnFailure && s.cancelJob != nil {
					s.logger.Warn("chapter failed with abort-on-failure set, cancelling job",
						"book_id", bk.ID, "chapter", idx)
					s.cancelJob()
				}
			}
			s.done.Add(1)
			s.emitProgress(bk.ID)
			results <- content
		}
	}
}

// fetchOne runs one chapter fetch with per-attempt timeout and
// exponential backoff plus jitter between attempts. Terminal errors
// (not found, parse) are never retried.
func (s *Scheduler) fetchOne(ctx context.Context, bk book.Book, idx int, title string) book.ChapterContent {
	attempts := 0
	var content book.ChapterContent

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(s.policy.MaxRetries) + 1),
		retry.Delay(s.policy.BackoffBase),
		retry.MaxDelay(s.policy.BackoffCap),
		retry.MaxJitter(s.policy.BackoffBase),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(source.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying chapter fetch",
				"book_id", bk.ID, "chapter", idx, "attempt", n+1, "error", err)
		}),
	}
	if s.timer != nil {
		opts = append(opts, retry.WithTimer(s.timer))
	}

	err := retry.Do(
		func() error {
			attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, s.policy.FetchTimeout)
			defer cancel()

			c, err := s.src.FetchChapter(attemptCtx, bk.ID, idx)
			if err != nil {
				// A per-attempt deadline is a transient condition;
				// job-level cancellation is not.
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return fmt.Errorf("%w: chapter %d attempt timed out", source.ErrNetwork, idx)
				}
				return err
			}
			content = c
			return nil
		},
		opts...,
	)

	if err != nil {
		s.logger.Debug("chapter fetch exhausted",
			"book_id", bk.ID, "chapter", idx, "attempts", attempts, "error", err)
		return book.ChapterContent{
			Index:    idx,
			Title:    title,
			Status:   book.StatusFailed,
			Attempts: attempts,
			Err:      err,
		}
	}

	content.Index = idx
	if content.Title == "" {
		content.Title = title
	}
	content.Status = book.StatusSuccess
	content.Attempts = attempts
	return content
}

func (s *Scheduler) emitProgress(bookID string) {
	if s.onProgress == nil {
		return
	}
	s.onProgress(ProgressEvent{
		BookID: bookID,
		Done:   int(s.done.Load()),
		Total:  s.total,
		Failed: int(s.failed.Load()),
	})
}
