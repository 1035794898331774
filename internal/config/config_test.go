package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/histprobe/internal/aggregate"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// This test ensures that defaults are documented through tests and that changes
// to defaults are intentional (tests will fail if defaults change unexpectedly).
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default BatchSize is automatic", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 0 {
			t.Errorf("expected BatchSize to be 0, got %d", cfg.BatchSize)
		}
	})

	t.Run("default delays", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchDelay != 50*time.Millisecond {
			t.Errorf("expected BatchDelay to be 50ms, got %v", cfg.BatchDelay)
		}
		if cfg.FailureBackoff != time.Second {
			t.Errorf("expected FailureBackoff to be 1s, got %v", cfg.FailureBackoff)
		}
	})

	t.Run("default browser is headless", func(t *testing.T) {
		t.Parallel()
		if !cfg.Headless {
			t.Error("expected Headless to be true")
		}
		if cfg.CallTimeout != 30*time.Second {
			t.Errorf("expected CallTimeout to be 30s, got %v", cfg.CallTimeout)
		}
	})

	t.Run("default cache timing script is /main.js", func(t *testing.T) {
		t.Parallel()
		if cfg.Probes.CacheTiming.ScriptPath != "/main.js" {
			t.Errorf("expected ScriptPath to be '/main.js', got '%s'", cfg.Probes.CacheTiming.ScriptPath)
		}
	})

	t.Run("default storage uses XDG directories", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir to be %q, got %q", XDGDataDir(), cfg.DBDir)
		}
		if cfg.CacheDir != XDGCacheDir() {
			t.Errorf("expected CacheDir to be %q, got %q", XDGCacheDir(), cfg.CacheDir)
		}
		if cfg.NoDB {
			t.Error("expected NoDB to be false")
		}
	})

	t.Run("default Retention is 7 days", func(t *testing.T) {
		t.Parallel()
		if cfg.Retention != 7*24*time.Hour {
			t.Errorf("expected Retention to be 168h, got %v", cfg.Retention)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "negative batch size",
			modify:  func(c *Config) { c.BatchSize = -1 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "negative batch delay",
			modify:  func(c *Config) { c.BatchDelay = -time.Millisecond },
			wantErr: ErrInvalidDelay,
		},
		{
			name:    "negative failure backoff",
			modify:  func(c *Config) { c.FailureBackoff = -time.Second },
			wantErr: ErrInvalidDelay,
		},
		{
			name:    "zero call timeout",
			modify:  func(c *Config) { c.CallTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name: "both report formats",
			modify: func(c *Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			wantErr: ErrConflictingReportFormats,
		},
		{
			name:    "zero retention",
			modify:  func(c *Config) { c.Retention = 0 },
			wantErr: ErrInvalidRetention,
		},
		{
			name:    "empty script path",
			modify:  func(c *Config) { c.Probes.CacheTiming.ScriptPath = "" },
			wantErr: ErrInvalidScriptPath,
		},
		{
			name:    "negative weight",
			modify:  func(c *Config) { c.Weights["reflow"] = -1 },
			wantErr: aggregate.ErrInvalidWeight,
		},
		{
			name:    "unknown probe weight",
			modify:  func(c *Config) { c.Weights["telepathy"] = 1 },
			wantErr: aggregate.ErrUnknownProbe,
		},
		{
			name:    "explicit batch size is valid",
			modify:  func(c *Config) { c.BatchSize = 7 },
			wantErr: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestValidateTargets tests that a detection needs at least one target source.
func TestValidateTargets(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if err := cfg.ValidateTargets(); !errors.Is(err, ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}

	cfg.Targets = []string{"example.com"}
	if err := cfg.ValidateTargets(); err != nil {
		t.Errorf("expected no error with targets, got %v", err)
	}

	cfg = NewConfig()
	cfg.ListFile = "sites.txt"
	if err := cfg.ValidateTargets(); err != nil {
		t.Errorf("expected no error with a list file, got %v", err)
	}
}

// TestWeightTable tests that overrides replace only the named weights.
func TestWeightTable(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Weights["reflow"] = 3

	table, err := cfg.WeightTable()
	if err != nil {
		t.Fatalf("WeightTable failed: %v", err)
	}

	defaults := aggregate.DefaultWeights()
	for name, weight := range defaults {
		want := weight
		if name == "reflow" {
			want = 3
		}
		if table[name] != want {
			t.Errorf("weight %s = %v, want %v", name, table[name], want)
		}
	}
}

// TestLoadConfigFile tests loading and applying the YAML configuration file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed file returns an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("browser: [unterminated"), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error for malformed YAML")
		}
	})

	t.Run("applies every section", func(t *testing.T) {
		t.Parallel()

		content := `browser:
  execPath: /usr/bin/chromium
  userDataDir: /tmp/profile
  headless: false
  callTimeout: 45s
scheduler:
  batchSize: 4
  batchDelay: 100ms
  failureBackoff: 2s
probes:
  cacheTiming:
    scriptPath: /static/app.js
    timeout: 3s
    processingThreshold: 8
weights:
  cache_timing: 2.5
storage:
  dbDir: /tmp/db
  cacheDir: /tmp/cache
  noDB: true
  retention: 48h
`
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile failed: %v", err)
		}

		cfg := NewConfig()
		cf.ApplyTo(cfg)

		if cfg.ChromePath != "/usr/bin/chromium" || cfg.UserDataDir != "/tmp/profile" {
			t.Errorf("browser paths not applied: %q %q", cfg.ChromePath, cfg.UserDataDir)
		}
		if cfg.Headless {
			t.Error("expected headless: false to override the default")
		}
		if cfg.CallTimeout != 45*time.Second {
			t.Errorf("expected CallTimeout 45s, got %v", cfg.CallTimeout)
		}
		if cfg.BatchSize != 4 || cfg.BatchDelay != 100*time.Millisecond || cfg.FailureBackoff != 2*time.Second {
			t.Errorf("scheduler not applied: %d %v %v", cfg.BatchSize, cfg.BatchDelay, cfg.FailureBackoff)
		}
		ct := cfg.Probes.CacheTiming
		if ct.ScriptPath != "/static/app.js" || ct.Timeout != 3*time.Second || ct.ProcessingThreshold != 8 {
			t.Errorf("cache timing not applied: %+v", ct)
		}
		if cfg.Weights["cache_timing"] != 2.5 {
			t.Errorf("expected cache_timing weight 2.5, got %v", cfg.Weights["cache_timing"])
		}
		if cfg.DBDir != "/tmp/db" || cfg.CacheDir != "/tmp/cache" || !cfg.NoDB {
			t.Errorf("storage not applied: %q %q %v", cfg.DBDir, cfg.CacheDir, cfg.NoDB)
		}
		if cfg.Retention != 48*time.Hour {
			t.Errorf("expected Retention 48h, got %v", cfg.Retention)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected applied config to validate, got %v", err)
		}
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile failed: %v", err)
		}

		cfg := NewConfig()
		cf.ApplyTo(cfg)
		if !cfg.Headless || cfg.CallTimeout != DefaultCallTimeout {
			t.Errorf("expected defaults to survive, got headless=%v timeout=%v", cfg.Headless, cfg.CallTimeout)
		}
	})
}

// TestFindConfigFile tests the explicit path branch of the search.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if got := FindConfigFile(path); got != path {
		t.Errorf("expected %q, got %q", path, got)
	}
	if got := FindConfigFile(filepath.Join(dir, "missing.yaml")); got != "" {
		t.Errorf("expected empty result for missing explicit path, got %q", got)
	}
}
