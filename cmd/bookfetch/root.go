package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bookfetch/bookfetch/internal/config"
	"github.com/bookfetch/bookfetch/internal/source"
	"github.com/bookfetch/bookfetch/version"
)

var (
	cfgFile string
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "bookfetch",
	Short: "Download books from a catalog source into text or ePub files",
	Long: `Bookfetch downloads multi-chapter books from a remote catalog and
assembles them into portable artifacts.

Chapters are fetched concurrently with retry and backoff, reassembled
in reading order, and serialized as plain text or as an ePub archive
with embedded cover art. Partial failures are tolerated up to a
configurable threshold and always leave an explicit trace in the
output.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bookfetch/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "bookfetch home directory (default: ~/.bookfetch)",
	)

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig builds the config manager from the persistent flags.
func loadConfig() (*config.Manager, error) {
	home := homeDir
	if home == "" {
		h, err := config.DefaultHome()
		if err != nil {
			return nil, err
		}
		home = h
	}
	return config.NewManager(cfgFile, home)
}

// parseLogLevel maps a config string onto a slog level, defaulting to
// info for anything unrecognized.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the CLI logger at the configured level. The
// returned LevelVar lets long-running commands adjust verbosity when
// the config file changes under them.
func newLogger(cfg *config.Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(parseLogLevel(cfg.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	return logger, level
}

// newSourceClient builds the catalog client from config.
func newSourceClient(cfg *config.Config) (source.Client, error) {
	if cfg.SourceURL == "" {
		return nil, fmt.Errorf("no source_url configured (set it in config.yaml or BOOKFETCH_SOURCE_URL)")
	}
	return source.NewHTTPClient(cfg.SourceURL, cfg.Download.Timeout), nil
}
