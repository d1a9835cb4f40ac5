package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Format != "epub" {
		t.Errorf("default format = %s, want epub", cfg.Format)
	}
	if cfg.Download.Concurrency <= 0 {
		t.Error("default concurrency must be positive")
	}
	if cfg.Tolerance.MaxFailedRatio <= 0 {
		t.Error("default tolerance ratio must be positive")
	}
}

func TestManagerLoadsFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `format: text
output_dir: /tmp/books
download:
  concurrency: 3
  max_retries: 7
  timeout: 5s
tolerance:
  max_failed: 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := cm.Get()
	if cfg.Format != "text" {
		t.Errorf("format = %s, want text", cfg.Format)
	}
	if cfg.OutputDir != "/tmp/books" {
		t.Errorf("output_dir = %s", cfg.OutputDir)
	}
	if cfg.Download.Concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", cfg.Download.Concurrency)
	}
	if cfg.Download.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Download.Timeout)
	}
	// Unset keys keep defaults
	if cfg.Download.BackoffBase != DefaultConfig().Download.BackoffBase {
		t.Errorf("backoff_base = %v, want default", cfg.Download.BackoffBase)
	}
}

func TestManagerMissingFileUsesDefaults(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cm, err := NewManager("", dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if cm.Get().Format != "epub" {
		t.Errorf("format = %s, want default epub", cm.Get().Format)
	}
}

func TestManagerWatchConfig(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	changed := make(chan *Config, 4)
	cm.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	cm.WatchConfig()

	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// The watcher may fire more than once per edit; wait for the
	// reload that carries the new value.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.LogLevel != "debug" {
				continue
			}
			if got := cm.Get().LogLevel; got != "debug" {
				t.Errorf("Get() log_level = %s, want debug", got)
			}
			return
		case <-deadline:
			t.Fatal("config change callback never delivered the new value")
		}
	}
}

func TestPolicyConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.MaxRetries = 5
	cfg.Download.AbortOnFailure = true
	cfg.Tolerance.MaxFailed = 3

	policy := cfg.Policy()
	if policy.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", policy.MaxRetries)
	}
	if !policy.AbortOnFailure {
		t.Error("AbortOnFailure not carried over")
	}
	if policy.Tolerance.MaxFailed != 3 {
		t.Errorf("Tolerance.MaxFailed = %d, want 3", policy.Tolerance.MaxFailed)
	}
}
