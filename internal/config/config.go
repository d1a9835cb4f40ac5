// Package config handles loading and hot-reloading configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/bookfetch/bookfetch/internal/book"
)

// Config is the full application configuration.
type Config struct {
	// SourceURL is the catalog API base URL.
	SourceURL string `mapstructure:"source_url"`

	// OutputDir receives artifacts. Defaults to the current directory.
	OutputDir string `mapstructure:"output_dir"`

	// Format is the default artifact container: "text" or "epub".
	Format string `mapstructure:"format"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	Download  DownloadConfig  `mapstructure:"download"`
	Tolerance ToleranceConfig `mapstructure:"tolerance"`
}

// DownloadConfig holds the per-job fetch tunables.
type DownloadConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	MaxRetries       int           `mapstructure:"max_retries"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	AbortOnFailure   bool          `mapstructure:"abort_on_failure"`
}

// ToleranceConfig bounds acceptable partial failure.
type ToleranceConfig struct {
	MaxFailed              int     `mapstructure:"max_failed"`
	MaxFailedRatio         float64 `mapstructure:"max_failed_ratio"`
	PartialArtifactOnAbort bool    `mapstructure:"partial_artifact_on_abort"`
}

// Policy converts the configured tunables into a job policy.
func (c *Config) Policy() book.Policy {
	return book.Policy{
		Concurrency:    c.Download.Concurrency,
		MaxRetries:     c.Download.MaxRetries,
		FetchTimeout:   c.Download.Timeout,
		BackoffBase:    c.Download.BackoffBase,
		BackoffCap:     c.Download.BackoffCap,
		AbortOnFailure: c.Download.AbortOnFailure,
		Tolerance: book.Tolerance{
			MaxFailed:              c.Tolerance.MaxFailed,
			MaxFailedRatio:         c.Tolerance.MaxFailedRatio,
			PartialArtifactOnAbort: c.Tolerance.PartialArtifactOnAbort,
		},
	}
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	policy := book.DefaultPolicy()
	return &Config{
		OutputDir: ".",
		Format:    "epub",
		LogLevel:  "info",
		Download: DownloadConfig{
			Concurrency:      policy.Concurrency,
			BatchConcurrency: 2,
			MaxRetries:       policy.MaxRetries,
			Timeout:          policy.FetchTimeout,
			BackoffBase:      policy.BackoffBase,
			BackoffCap:       policy.BackoffCap,
		},
		Tolerance: ToleranceConfig{
			MaxFailedRatio: policy.Tolerance.MaxFailedRatio,
		},
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	defaults := DefaultConfig()
	viper.SetDefault("source_url", defaults.SourceURL)
	viper.SetDefault("output_dir", defaults.OutputDir)
	viper.SetDefault("format", defaults.Format)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("download.concurrency", defaults.Download.Concurrency)
	viper.SetDefault("download.batch_concurrency", defaults.Download.BatchConcurrency)
	viper.SetDefault("download.max_retries", defaults.Download.MaxRetries)
	viper.SetDefault("download.timeout", defaults.Download.Timeout)
	viper.SetDefault("download.backoff_base", defaults.Download.BackoffBase)
	viper.SetDefault("download.backoff_cap", defaults.Download.BackoffCap)
	viper.SetDefault("download.abort_on_failure", defaults.Download.AbortOnFailure)
	viper.SetDefault("tolerance.max_failed", defaults.Tolerance.MaxFailed)
	viper.SetDefault("tolerance.max_failed_ratio", defaults.Tolerance.MaxFailedRatio)
	viper.SetDefault("tolerance.partial_artifact_on_abort", defaults.Tolerance.PartialArtifactOnAbort)

	// Environment variables with BOOKFETCH_ prefix
	viper.SetEnvPrefix("BOOKFETCH")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if homeDir != "" {
			viper.AddConfigPath(homeDir)
		}
		viper.AddConfigPath("$HOME/.bookfetch")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// DefaultHome returns the bookfetch home directory (~/.bookfetch),
// creating it if needed.
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".bookfetch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}
