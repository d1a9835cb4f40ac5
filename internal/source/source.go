// Package source defines the content-source boundary: the remote
// catalog the pipeline fetches books, chapters, and covers from.
// The remote is treated as an unreliable dependency with unknown
// latency; implementations classify failures into the sentinels below
// so the scheduler can decide what is worth retrying.
package source

import (
	"context"
	"errors"

	"github.com/bookfetch/bookfetch/internal/book"
)

var (
	// ErrNetwork marks a transient transport failure. Retried per policy.
	ErrNetwork = errors.New("network error")
	// ErrNotFound marks an absent book, chapter, or cover. Never retried.
	ErrNotFound = errors.New("not found")
	// ErrParse marks remote content of an unexpected shape. Never retried.
	ErrParse = errors.New("parse error")
)

// Retryable reports whether an error from a Client is worth another
// attempt. Only transient network failures qualify; absent resources
// and malformed payloads are terminal for that resource.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrParse) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// BookSummary is one search hit from the catalog.
type BookSummary struct {
	ID           string
	Title        string
	Author       string
	ChapterCount int
}

// Client is the content-source boundary. Implementations must be safe
// for concurrent use; the scheduler issues many FetchChapter calls in
// parallel against a single Client.
type Client interface {
	// Search looks up books by title.
	Search(ctx context.Context, query string) ([]BookSummary, error)

	// GetBook fetches the metadata record for one book.
	GetBook(ctx context.Context, bookID string) (book.Book, error)

	// ListChapters returns the book's chapter list in canonical order.
	ListChapters(ctx context.Context, bookID string) ([]book.ChapterMeta, error)

	// FetchChapter fetches one chapter body by zero-based index.
	FetchChapter(ctx context.Context, bookID string, index int) (book.ChapterContent, error)

	// FetchCover fetches the cover image. Returns ErrNotFound when the
	// book has no cover; callers treat that as a degraded output, not
	// a failure.
	FetchCover(ctx context.Context, bookID string) (book.CoverImage, error)
}
