package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookfetch/bookfetch/internal/book"
	"github.com/bookfetch/bookfetch/internal/config"
	"github.com/bookfetch/bookfetch/internal/download"
	"github.com/bookfetch/bookfetch/internal/orchestrator"
)

var batchCmd = &cobra.Command{
	Use:   "batch <jobs.yaml>",
	Short: "Download several books from a YAML job list",
	Long: `Batch runs many download jobs with a bounded number of concurrent
books, independent of each job's chapter concurrency. One book's
failure never aborts the others.

The job file is a YAML list:

  - book_id: bk-42
    chapters: 1-10
    format: epub
  - book_id: bk-43
    format: text
    output_dir: /tmp/books`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger, logLevel := newLogger(cfg)

		// Batch runs are long enough that config edits mid-run matter.
		// Watch the file and apply log level changes live.
		cm.OnChange(func(c *config.Config) {
			logLevel.Set(parseLogLevel(c.LogLevel))
			logger.Info("configuration reloaded", "log_level", c.LogLevel)
		})
		cm.WatchConfig()

		format, ok := book.ParseFormat(cfg.Format)
		if !ok {
			return fmt.Errorf("unknown format %q in config", cfg.Format)
		}
		defaults := book.DownloadJob{
			Selection: book.FullSelection(),
			Format:    format,
			OutputDir: cfg.OutputDir,
			Policy:    cfg.Policy(),
		}

		jobs, err := orchestrator.LoadBatchFile(args[0], defaults)
		if err != nil {
			return err
		}

		src, err := newSourceClient(cfg)
		if err != nil {
			return err
		}

		orch := orchestrator.New(orchestrator.Config{
			Source:           src,
			Logger:           logger,
			BatchConcurrency: cfg.Download.BatchConcurrency,
			OnProgress: func(e download.ProgressEvent) {
				logger.Info("progress",
					"book_id", e.BookID, "done", e.Done, "total", e.Total, "failed", e.Failed)
			},
		})

		results := orch.RunBatch(cmd.Context(), jobs)

		out := cmd.OutOrStdout()
		failures := 0
		for i, res := range results {
			id := jobs[i].Book.ID
			switch {
			case res.Err != nil:
				failures++
				fmt.Fprintf(out, "%s: error: %v\n", id, res.Err)
			case res.Outcome.Outcome == book.OutcomeAborted:
				failures++
				fmt.Fprintf(out, "%s: aborted (%d chapters failed)\n", id, len(res.Outcome.FailedIndices))
			default:
				fmt.Fprintf(out, "%s: %s -> %s\n", id, res.Outcome.Outcome, res.ArtifactPath)
			}
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d jobs failed", failures, len(results))
		}
		return nil
	},
}
