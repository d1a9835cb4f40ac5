// Package book provides the domain types shared across the download pipeline.
// This package has no dependencies on other bookfetch packages to avoid import cycles.
package book

import (
	"time"
)

// Book describes a work as reported by the content source.
// Immutable once fetched; a lookup step produces it and the
// orchestrator owns it for the duration of a job.
type Book struct {
	ID             string
	Title          string
	Author         string
	ChapterCount   int
	CoverAvailable bool
}

// ChapterMeta identifies one chapter in canonical order.
// Index is zero-based and defines the reading order.
type ChapterMeta struct {
	Index int
	Title string
}

// ChapterContent is the result of fetching a single chapter.
// Body is a sequence of paragraphs. Exactly one goroutine mutates a
// given ChapterContent at a time; handoff is by message passing.
type ChapterContent struct {
	Index    int
	Title    string
	Body     []string
	Status   Status
	Attempts int
	Err      error
}

// CoverImage holds the raw cover resource. Absence is not an error,
// only a degraded output.
type CoverImage struct {
	Data     []byte
	MIMEType string
}

// Format selects the artifact container.
type Format string

const (
	FormatText Format = "text"
	FormatEPUB Format = "epub"
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "text", "txt":
		return FormatText, true
	case "epub":
		return FormatEPUB, true
	default:
		return "", false
	}
}

// Tolerance bounds how many failed chapters a job absorbs before the
// outcome degrades from PartialSuccess to Aborted. Zero values mean
// the corresponding check is disabled.
type Tolerance struct {
	// MaxFailed is the absolute number of failed chapters allowed.
	MaxFailed int
	// MaxFailedRatio is the allowed failed/total ratio in (0,1].
	MaxFailedRatio float64
	// PartialArtifactOnAbort emits a best-effort text artifact for
	// aborted jobs that resolved at least one chapter. EPUB output is
	// never written for an aborted job.
	PartialArtifactOnAbort bool
}

// Allows reports whether failed failures out of total chapters stay
// within tolerance.
func (t Tolerance) Allows(failed, total int) bool {
	if failed == 0 {
		return true
	}
	if t.MaxFailed > 0 && failed <= t.MaxFailed {
		return true
	}
	if t.MaxFailedRatio > 0 && total > 0 && float64(failed)/float64(total) <= t.MaxFailedRatio {
		return true
	}
	return false
}

// Policy holds the tunables governing one job's fetch behavior.
type Policy struct {
	Concurrency    int
	MaxRetries     int
	FetchTimeout   time.Duration
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	AbortOnFailure bool
	Tolerance      Tolerance
}

// DefaultPolicy returns the policy used when a job does not override it.
func DefaultPolicy() Policy {
	return Policy{
		Concurrency:  6,
		MaxRetries:   3,
		FetchTimeout: 30 * time.Second,
		BackoffBase:  500 * time.Millisecond,
		BackoffCap:   10 * time.Second,
		Tolerance:    Tolerance{MaxFailedRatio: 0.1},
	}
}

// DownloadJob is one request to download and assemble a single book.
type DownloadJob struct {
	Book      Book
	Selection Selection
	Format    Format
	OutputDir string
	Policy    Policy
	CreatedAt time.Time
}

// Outcome is the terminal classification of a job.
type Outcome string

const (
	OutcomeComplete       Outcome = "complete"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeAborted        Outcome = "aborted"
)

// BookOutcome is the collector's final materialization: the requested
// chapters in ascending index order with terminal statuses, plus the
// set of indices that failed.
type BookOutcome struct {
	Job           DownloadJob
	Chapters      []ChapterContent
	FailedIndices map[int]struct{}
	Outcome       Outcome
}

// SuccessCount returns the number of successfully fetched chapters.
func (o *BookOutcome) SuccessCount() int {
	n := 0
	for _, ch := range o.Chapters {
		if ch.Status == StatusSuccess {
			n++
		}
	}
	return n
}
