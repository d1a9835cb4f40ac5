package download

import (
	"context"
	"math/rand"
	"testing"

	"github.com/bookfetch/bookfetch/internal/book"
)

func testJob(n int) book.DownloadJob {
	return book.DownloadJob{
		Book:      book.Book{ID: "bk-1", Title: "Test Book", Author: "Test Author", ChapterCount: n},
		Selection: book.FullSelection(),
		Format:    book.FormatText,
		Policy:    book.DefaultPolicy(),
	}
}

func testMetas(n int) []book.ChapterMeta {
	metas := make([]book.ChapterMeta, n)
	for i := range metas {
		metas[i] = book.ChapterMeta{Index: i, Title: "Chapter"}
	}
	return metas
}

func feed(contents []book.ChapterContent) <-chan book.ChapterContent {
	ch := make(chan book.ChapterContent, len(contents))
	for _, c := range contents {
		ch <- c
	}
	close(ch)
	return ch
}

func TestCollector(t *testing.T) {
	t.Run("restores index order from shuffled arrivals", func(t *testing.T) {
		const n = 25
		contents := make([]book.ChapterContent, n)
		for i := range contents {
			contents[i] = book.ChapterContent{Index: i, Title: "Chapter", Status: book.StatusSuccess, Body: []string{"p"}}
		}
		rand.New(rand.NewSource(42)).Shuffle(n, func(i, j int) {
			contents[i], contents[j] = contents[j], contents[i]
		})

		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}

		outcome := NewCollector(nil).Collect(context.Background(), testJob(n), testMetas(n), indices, feed(contents))

		if outcome.Outcome != book.OutcomeComplete {
			t.Errorf("outcome = %s, want complete", outcome.Outcome)
		}
		if len(outcome.Chapters) != n {
			t.Fatalf("got %d chapters, want %d", len(outcome.Chapters), n)
		}
		for i, c := range outcome.Chapters {
			if c.Index != i {
				t.Fatalf("chapter at position %d has index %d", i, c.Index)
			}
		}
	})

	t.Run("failures within tolerance yield partial success", func(t *testing.T) {
		job := testJob(10)
		job.Policy.Tolerance = book.Tolerance{MaxFailed: 2}

		contents := make([]book.ChapterContent, 10)
		for i := range contents {
			contents[i] = book.ChapterContent{Index: i, Status: book.StatusSuccess, Body: []string{"p"}}
		}
		contents[4] = book.ChapterContent{Index: 4, Status: book.StatusFailed}

		indices := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		outcome := NewCollector(nil).Collect(context.Background(), job, testMetas(10), indices, feed(contents))

		if outcome.Outcome != book.OutcomePartialSuccess {
			t.Errorf("outcome = %s, want partial_success", outcome.Outcome)
		}
		if _, ok := outcome.FailedIndices[4]; !ok {
			t.Error("chapter 4 missing from FailedIndices")
		}
		if outcome.Chapters[4].Status != book.StatusSkipped {
			t.Errorf("chapter 4 status = %s, want skipped under lenient policy", outcome.Chapters[4].Status)
		}
	})

	t.Run("failures beyond tolerance abort", func(t *testing.T) {
		job := testJob(10)
		job.Policy.Tolerance = book.Tolerance{MaxFailed: 1}

		contents := make([]book.ChapterContent, 10)
		for i := range contents {
			contents[i] = book.ChapterContent{Index: i, Status: book.StatusSuccess, Body: []string{"p"}}
		}
		contents[2] = book.ChapterContent{Index: 2, Status: book.StatusFailed}
		contents[7] = book.ChapterContent{Index: 7, Status: book.StatusFailed}

		indices := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		outcome := NewCollector(nil).Collect(context.Background(), job, testMetas(10), indices, feed(contents))

		if outcome.Outcome != book.OutcomeAborted {
			t.Errorf("outcome = %s, want aborted", outcome.Outcome)
		}
		if len(outcome.FailedIndices) != 2 {
			t.Errorf("got %d failed indices, want 2", len(outcome.FailedIndices))
		}
	})

	t.Run("unresolved indices mark the job aborted", func(t *testing.T) {
		// Stream closed after 2 of 10 chapters: cancellation mid-job.
		contents := []book.ChapterContent{
			{Index: 1, Status: book.StatusSuccess, Body: []string{"p"}},
			{Index: 0, Status: book.StatusSuccess, Body: []string{"p"}},
		}
		indices := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		outcome := NewCollector(nil).Collect(context.Background(), testJob(10), testMetas(10), indices, feed(contents))

		if outcome.Outcome != book.OutcomeAborted {
			t.Errorf("outcome = %s, want aborted", outcome.Outcome)
		}
		if len(outcome.Chapters) != 10 {
			t.Fatalf("got %d chapters, want 10 (unresolved included)", len(outcome.Chapters))
		}
		if outcome.Chapters[5].Status != book.StatusFailed {
			t.Errorf("unresolved chapter status = %s, want failed", outcome.Chapters[5].Status)
		}
		if len(outcome.FailedIndices) != 8 {
			t.Errorf("got %d failed indices, want 8", len(outcome.FailedIndices))
		}
	})

	t.Run("duplicate results are dropped", func(t *testing.T) {
		contents := []book.ChapterContent{
			{Index: 0, Status: book.StatusSuccess, Body: []string{"first"}},
			{Index: 0, Status: book.StatusSuccess, Body: []string{"second"}},
		}
		outcome := NewCollector(nil).Collect(context.Background(), testJob(1), testMetas(1), []int{0}, feed(contents))

		if len(outcome.Chapters) != 1 {
			t.Fatalf("got %d chapters, want 1", len(outcome.Chapters))
		}
		if outcome.Chapters[0].Body[0] != "first" {
			t.Errorf("duplicate overwrote first arrival")
		}
	})
}
