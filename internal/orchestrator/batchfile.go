package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bookfetch/bookfetch/internal/book"
)

// batchEntry is one job in a batch file.
type batchEntry struct {
	BookID    string `yaml:"book_id"`
	Chapters  string `yaml:"chapters,omitempty"`
	Format    string `yaml:"format,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`
}

// LoadBatchFile reads a YAML list of download entries and expands each
// into a job based on the supplied defaults. Selection expressions are
// parsed here so a malformed batch file fails before any job starts.
func LoadBatchFile(path string, defaults book.DownloadJob) ([]book.DownloadJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var entries []batchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing batch file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("batch file %s has no entries", path)
	}

	jobs := make([]book.DownloadJob, 0, len(entries))
	for i, e := range entries {
		if e.BookID == "" {
			return nil, fmt.Errorf("batch entry %d has no book_id", i+1)
		}
		job := defaults
		job.Book = book.Book{ID: e.BookID}

		sel, err := book.ParseSelection(e.Chapters)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i+1, err)
		}
		job.Selection = sel

		if e.Format != "" {
			f, ok := book.ParseFormat(e.Format)
			if !ok {
				return nil, fmt.Errorf("batch entry %d: unknown format %q", i+1, e.Format)
			}
			job.Format = f
		}
		if e.OutputDir != "" {
			job.OutputDir = e.OutputDir
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
