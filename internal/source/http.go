package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bookfetch/bookfetch/internal/book"
)

// HTTPClient is a Client backed by a JSON catalog API.
//
// Endpoint shape:
//
//	GET {base}/books?q={query}
//	GET {base}/books/{id}
//	GET {base}/books/{id}/chapters
//	GET {base}/books/{id}/chapters/{index}
//	GET {base}/books/{id}/cover
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a catalog client for the given base URL.
// The timeout bounds each individual request; per-attempt deadlines
// from the scheduler apply on top via context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type bookRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	ChapterCount int    `json:"chapter_count"`
	HasCover     bool   `json:"has_cover"`
}

type chapterRecord struct {
	Index      int      `json:"index"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs,omitempty"`
}

// Search looks up books by title.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]BookSummary, error) {
	var records []bookRecord
	u := fmt.Sprintf("%s/books?q=%s", c.baseURL, url.QueryEscape(query))
	if err := c.getJSON(ctx, u, &records); err != nil {
		return nil, err
	}
	out := make([]BookSummary, 0, len(records))
	for _, r := range records {
		out = append(out, BookSummary{
			ID:           r.ID,
			Title:        r.Title,
			Author:       r.Author,
			ChapterCount: r.ChapterCount,
		})
	}
	return out, nil
}

// GetBook fetches the metadata record for one book.
func (c *HTTPClient) GetBook(ctx context.Context, bookID string) (book.Book, error) {
	var r bookRecord
	u := fmt.Sprintf("%s/books/%s", c.baseURL, url.PathEscape(bookID))
	if err := c.getJSON(ctx, u, &r); err != nil {
		return book.Book{}, err
	}
	return book.Book{
		ID:             r.ID,
		Title:          r.Title,
		Author:         r.Author,
		ChapterCount:   r.ChapterCount,
		CoverAvailable: r.HasCover,
	}, nil
}

// ListChapters returns the book's chapter list in canonical order.
func (c *HTTPClient) ListChapters(ctx context.Context, bookID string) ([]book.ChapterMeta, error) {
	var records []chapterRecord
	u := fmt.Sprintf("%s/books/%s/chapters", c.baseURL, url.PathEscape(bookID))
	if err := c.getJSON(ctx, u, &records); err != nil {
		return nil, err
	}
	out := make([]book.ChapterMeta, 0, len(records))
	for _, r := range records {
		out = append(out, book.ChapterMeta{Index: r.Index, Title: r.Title})
	}
	return out, nil
}

// FetchChapter fetches one chapter body by zero-based index.
func (c *HTTPClient) FetchChapter(ctx context.Context, bookID string, index int) (book.ChapterContent, error) {
	var r chapterRecord
	u := fmt.Sprintf("%s/books/%s/chapters/%d", c.baseURL, url.PathEscape(bookID), index)
	if err := c.getJSON(ctx, u, &r); err != nil {
		return book.ChapterContent{}, err
	}
	if len(r.Paragraphs) == 0 {
		return book.ChapterContent{}, fmt.Errorf("%w: chapter %d has no content", ErrParse, index)
	}
	return book.ChapterContent{
		Index: r.Index,
		Title: r.Title,
		Body:  r.Paragraphs,
	}, nil
}

// FetchCover fetches the cover image bytes.
func (c *HTTPClient) FetchCover(ctx context.Context, bookID string) (book.CoverImage, error) {
	u := fmt.Sprintf("%s/books/%s/cover", c.baseURL, url.PathEscape(bookID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return book.CoverImage{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return book.CoverImage{}, c.wrapTransport(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return book.CoverImage{}, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return book.CoverImage{}, fmt.Errorf("%w: reading cover body: %v", ErrNetwork, err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return book.CoverImage{}, fmt.Errorf("%w: cover is %s, not an image", ErrParse, mimeType)
	}
	return book.CoverImage{Data: data, MIMEType: mimeType}, nil
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.wrapTransport(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrParse, url, err)
	}
	return nil
}

// wrapTransport classifies a transport-level error. Context
// cancellation passes through so the scheduler sees it as such.
func (c *HTTPClient) wrapTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// classifyStatus maps HTTP status codes onto the error taxonomy.
// 5xx and 429 are transient; 404 is terminal for the resource.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrParse, code)
	}
}

// Verify interface compliance
var _ Client = (*HTTPClient)(nil)
