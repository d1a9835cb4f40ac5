package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookfetch/bookfetch/internal/book"
	"github.com/bookfetch/bookfetch/internal/config"
	"github.com/bookfetch/bookfetch/internal/download"
	"github.com/bookfetch/bookfetch/internal/orchestrator"
)

var (
	downloadChapters    string
	downloadFormat      string
	downloadOutput      string
	downloadConcurrency int
	downloadRetries     int
	downloadTimeout     time.Duration
	downloadAbort       bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <book-id>",
	Short: "Download one book and assemble it into an artifact",
	Long: `Download fetches a book's chapters concurrently and assembles them
into a text file or an ePub archive.

Chapter selection accepts three forms (1-based chapter numbers):
  full          every chapter (default)
  5-12          a contiguous range
  1,4,9         an explicit list

Examples:
  bookfetch download bk-42
  bookfetch download bk-42 --chapters 1-10 --format text
  bookfetch download bk-42 --output ~/books --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger, _ := newLogger(cfg)

		job, err := jobFromFlags(cmd, cfg, args[0])
		if err != nil {
			return err
		}

		src, err := newSourceClient(cfg)
		if err != nil {
			return err
		}

		orch := orchestrator.New(orchestrator.Config{
			Source: src,
			Logger: logger,
			OnProgress: func(e download.ProgressEvent) {
				logger.Info("progress",
					"book_id", e.BookID, "done", e.Done, "total", e.Total, "failed", e.Failed)
			},
		})

		res := orch.RunJob(cmd.Context(), job)
		if res.Err != nil {
			return res.Err
		}
		return reportResult(cmd, res)
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadChapters, "chapters", "full", "chapter selection: full, N-M, or comma list")
	downloadCmd.Flags().StringVarP(&downloadFormat, "format", "f", "", "output format: text or epub (default from config)")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output directory (default from config)")
	downloadCmd.Flags().IntVar(&downloadConcurrency, "concurrency", 0, "concurrent chapter fetches (default from config)")
	downloadCmd.Flags().IntVar(&downloadRetries, "retries", -1, "retries per chapter (default from config)")
	downloadCmd.Flags().DurationVar(&downloadTimeout, "timeout", 0, "per-fetch timeout (default from config)")
	downloadCmd.Flags().BoolVar(&downloadAbort, "abort-on-failure", false, "cancel the whole job on the first failed chapter")
}

// jobFromFlags merges config defaults with download command flags.
func jobFromFlags(cmd *cobra.Command, cfg *config.Config, bookID string) (book.DownloadJob, error) {
	sel, err := book.ParseSelection(downloadChapters)
	if err != nil {
		return book.DownloadJob{}, err
	}

	format, ok := book.ParseFormat(cfg.Format)
	if !ok {
		return book.DownloadJob{}, fmt.Errorf("unknown format %q in config", cfg.Format)
	}
	if cmd.Flags().Changed("format") {
		format, ok = book.ParseFormat(downloadFormat)
		if !ok {
			return book.DownloadJob{}, fmt.Errorf("unknown format %q", downloadFormat)
		}
	}

	policy := cfg.Policy()
	if cmd.Flags().Changed("concurrency") {
		policy.Concurrency = downloadConcurrency
	}
	if cmd.Flags().Changed("retries") {
		policy.MaxRetries = downloadRetries
	}
	if cmd.Flags().Changed("timeout") {
		policy.FetchTimeout = downloadTimeout
	}
	if downloadAbort {
		policy.AbortOnFailure = true
	}

	outputDir := cfg.OutputDir
	if downloadOutput != "" {
		outputDir = downloadOutput
	}

	return book.DownloadJob{
		Book:      book.Book{ID: bookID},
		Selection: sel,
		Format:    format,
		OutputDir: outputDir,
		Policy:    policy,
	}, nil
}

// reportResult prints a job's terminal state to stdout.
func reportResult(cmd *cobra.Command, res orchestrator.JobResult) error {
	out := cmd.OutOrStdout()
	switch res.Outcome.Outcome {
	case book.OutcomeComplete:
		fmt.Fprintf(out, "complete: %s\n", res.ArtifactPath)
	case book.OutcomePartialSuccess:
		fmt.Fprintf(out, "partial: %s (%d chapters failed)\n", res.ArtifactPath, len(res.Outcome.FailedIndices))
	case book.OutcomeAborted:
		if res.ArtifactPath != "" {
			fmt.Fprintf(out, "aborted: best-effort artifact at %s\n", res.ArtifactPath)
		} else {
			fmt.Fprintln(out, "aborted: no artifact written")
		}
		return fmt.Errorf("job aborted: %d of %d chapters failed",
			len(res.Outcome.FailedIndices), len(res.Outcome.Chapters))
	}
	return nil
}
