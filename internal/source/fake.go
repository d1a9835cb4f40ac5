package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bookfetch/bookfetch/internal/book"
)

// FakeClient is a deterministic in-memory Client for tests. It can
// inject latency, a fixed number of transient failures per chapter,
// and permanently missing chapters.
type FakeClient struct {
	Book     book.Book
	Chapters []book.ChapterMeta
	Cover    *book.CoverImage

	// Latency delays every call. Zero means respond immediately.
	Latency time.Duration

	// TransientFailures maps chapter index to the number of times a
	// fetch fails with ErrNetwork before succeeding.
	TransientFailures map[int]int

	// Missing chapters always fail with ErrNotFound.
	Missing map[int]struct{}

	// Malformed chapters always fail with ErrParse.
	Malformed map[int]struct{}

	mu       sync.Mutex
	attempts map[int]int
}

// NewFakeClient creates a fake source with n generated chapters.
func NewFakeClient(bookID string, n int) *FakeClient {
	chapters := make([]book.ChapterMeta, n)
	for i := range chapters {
		chapters[i] = book.ChapterMeta{Index: i, Title: fmt.Sprintf("Chapter %d", i+1)}
	}
	return &FakeClient{
		Book: book.Book{
			ID:             bookID,
			Title:          "Test Book",
			Author:         "Test Author",
			ChapterCount:   n,
			CoverAvailable: false,
		},
		Chapters:          chapters,
		TransientFailures: make(map[int]int),
		Missing:           make(map[int]struct{}),
		Malformed:         make(map[int]struct{}),
		attempts:          make(map[int]int),
	}
}

// AttemptCount returns how many FetchChapter calls were made for index.
func (f *FakeClient) AttemptCount(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[index]
}

func (f *FakeClient) wait(ctx context.Context) error {
	if f.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.Latency):
		return nil
	}
}

// Search returns the one configured book when the query matches its title.
func (f *FakeClient) Search(ctx context.Context, query string) ([]BookSummary, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return []BookSummary{{
		ID:           f.Book.ID,
		Title:        f.Book.Title,
		Author:       f.Book.Author,
		ChapterCount: f.Book.ChapterCount,
	}}, nil
}

// GetBook returns the configured book.
func (f *FakeClient) GetBook(ctx context.Context, bookID string) (book.Book, error) {
	if err := f.wait(ctx); err != nil {
		return book.Book{}, err
	}
	if bookID != f.Book.ID {
		return book.Book{}, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}
	return f.Book, nil
}

// ListChapters returns the configured chapter list.
func (f *FakeClient) ListChapters(ctx context.Context, bookID string) ([]book.ChapterMeta, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if bookID != f.Book.ID {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}
	out := make([]book.ChapterMeta, len(f.Chapters))
	copy(out, f.Chapters)
	return out, nil
}

// FetchChapter fetches a generated chapter body, honoring the
// configured failure injections.
func (f *FakeClient) FetchChapter(ctx context.Context, bookID string, index int) (book.ChapterContent, error) {
	if err := f.wait(ctx); err != nil {
		return book.ChapterContent{}, err
	}

	f.mu.Lock()
	f.attempts[index]++
	attempt := f.attempts[index]
	f.mu.Unlock()

	if bookID != f.Book.ID || index < 0 || index >= len(f.Chapters) {
		return book.ChapterContent{}, fmt.Errorf("%w: chapter %d", ErrNotFound, index)
	}
	if _, ok := f.Missing[index]; ok {
		return book.ChapterContent{}, fmt.Errorf("%w: chapter %d", ErrNotFound, index)
	}
	if _, ok := f.Malformed[index]; ok {
		return book.ChapterContent{}, fmt.Errorf("%w: chapter %d", ErrParse, index)
	}
	if n, ok := f.TransientFailures[index]; ok && attempt <= n {
		return book.ChapterContent{}, fmt.Errorf("%w: injected failure %d for chapter %d", ErrNetwork, attempt, index)
	}

	meta := f.Chapters[index]
	return book.ChapterContent{
		Index: meta.Index,
		Title: meta.Title,
		Body: []string{
			fmt.Sprintf("First paragraph of %s.", meta.Title),
			fmt.Sprintf("Second paragraph of %s.", meta.Title),
		},
	}, nil
}

// FetchCover returns the configured cover or ErrNotFound.
func (f *FakeClient) FetchCover(ctx context.Context, bookID string) (book.CoverImage, error) {
	if err := f.wait(ctx); err != nil {
		return book.CoverImage{}, err
	}
	if f.Cover == nil {
		return book.CoverImage{}, fmt.Errorf("%w: no cover for book %s", ErrNotFound, bookID)
	}
	return *f.Cover, nil
}

// Verify interface compliance
var _ Client = (*FakeClient)(nil)
