package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/histprobe/internal/aggregate"
	"github.com/nao1215/histprobe/internal/probe"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "histprobe"

	// DefaultCallTimeout bounds a single in-page measurement. The slowest
	// probe (cache timing) waits up to its own 5 second timeout plus frame
	// setup, so 30 seconds leaves ample headroom on a loaded machine.
	DefaultCallTimeout = 30 * time.Second

	// DefaultBatchDelay is the pause between two batches.
	DefaultBatchDelay = 50 * time.Millisecond

	// DefaultFailureBackoff is the pause after a failed batch, giving the
	// browser time to recover before the next batch starts.
	DefaultFailureBackoff = time.Second

	// DefaultRetention is the age after which `sessions prune` removes a
	// session.
	DefaultRetention = 7 * 24 * time.Hour

	// DefaultPollInterval is how often the watch view reloads the session.
	DefaultPollInterval = 500 * time.Millisecond
)

// Config holds all configuration options for histprobe.
// This struct is populated from defaults, the optional config file and CLI
// flags (in that order) and passed through the application via dependency
// injection rather than global state.
type Config struct {
	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .histprobe in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// Targets are target addresses given on the command line.
	Targets []string

	// ListFile is a target list (text, YAML or bookmark export).
	ListFile string

	// BatchSize fixes the number of targets per batch.
	// Zero selects the size from the number of targets.
	BatchSize int

	// BatchDelay is the pause between two batches.
	BatchDelay time.Duration

	// FailureBackoff is the pause after a failed batch.
	FailureBackoff time.Duration

	// ChromePath is the browser executable. Empty lets chromedp find one.
	ChromePath string

	// UserDataDir is the browser profile to measure. The history that is
	// measured is the history of this profile. Empty uses a throwaway one.
	UserDataDir string

	// Headless runs the browser without a window.
	Headless bool

	// CallTimeout bounds a single in-page measurement.
	CallTimeout time.Duration

	// Probes holds the probe tunables; the config file may override some.
	Probes probe.Params

	// Weights holds per-probe weight overrides keyed by probe name.
	Weights map[string]float64

	// JSONReport enables JSON report output instead of the human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/histprobe on Linux).
	DBDir string

	// CacheDir holds the per-session JSON cache.
	// Defaults to the XDG cache directory (~/.cache/histprobe on Linux).
	CacheDir string

	// NoDB skips the SQLite store and keeps sessions in the cache only.
	NoDB bool

	// Retention is the age after which sessions are pruned.
	Retention time.Duration

	// PollInterval is the refresh interval of the watch view.
	PollInterval time.Duration
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts, probe
// tunables). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		BatchDelay:     DefaultBatchDelay,
		FailureBackoff: DefaultFailureBackoff,
		Headless:       true,
		CallTimeout:    DefaultCallTimeout,
		Probes:         probe.DefaultParams(),
		Weights:        map[string]float64{},
		DBDir:          XDGDataDir(),
		CacheDir:       XDGCacheDir(),
		Retention:      DefaultRetention,
		PollInterval:   DefaultPollInterval,
	}
}

// XDGDataDir returns the XDG data directory for histprobe.
// On Linux: ~/.local/share/histprobe
// On macOS: ~/Library/Application Support/histprobe
// On Windows: %LOCALAPPDATA%\histprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for histprobe.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for histprobe session files.
// On Linux: ~/.cache/histprobe/sessions
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName, "sessions")
}

// WeightTable returns the default weights with the configured overrides
// applied and validated.
func (c *Config) WeightTable() (aggregate.WeightTable, error) {
	table := aggregate.DefaultWeights().Merge(c.Weights)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks the settings shared by every command that runs a
// detection. Target presence is checked by ValidateTargets.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// The first error found is returned.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return ErrInvalidBatchSize
	}

	if c.BatchDelay < 0 || c.FailureBackoff < 0 {
		return ErrInvalidDelay
	}

	if c.CallTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.Retention <= 0 {
		return ErrInvalidRetention
	}

	if c.Probes.CacheTiming.ScriptPath == "" {
		return ErrInvalidScriptPath
	}

	if _, err := c.WeightTable(); err != nil {
		return err
	}

	return nil
}

// ValidateTargets checks that a detection has something to measure.
func (c *Config) ValidateTargets() error {
	if len(c.Targets) == 0 && c.ListFile == "" {
		return ErrNoTarget
	}
	return nil
}
