package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".histprobe"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .histprobe configuration file.
// Every field is optional; unset fields keep the built-in defaults.
type File struct {
	Browser   BrowserFile        `yaml:"browser,omitempty"`
	Scheduler SchedulerFile      `yaml:"scheduler,omitempty"`
	Probes    ProbesFile         `yaml:"probes,omitempty"`
	Weights   map[string]float64 `yaml:"weights,omitempty"`
	Storage   StorageFile        `yaml:"storage,omitempty"`
}

// BrowserFile configures the browser that histprobe launches.
type BrowserFile struct {
	// ExecPath is the Chrome or Chromium executable.
	ExecPath string `yaml:"execPath,omitempty"`

	// UserDataDir is the profile whose history is measured.
	UserDataDir string `yaml:"userDataDir,omitempty"`

	// Headless runs the browser without a window.
	Headless *bool `yaml:"headless,omitempty"`

	// CallTimeout bounds a single in-page measurement.
	CallTimeout time.Duration `yaml:"callTimeout,omitempty"`
}

// SchedulerFile overrides batch scheduling.
type SchedulerFile struct {
	BatchSize      int           `yaml:"batchSize,omitempty"`
	BatchDelay     time.Duration `yaml:"batchDelay,omitempty"`
	FailureBackoff time.Duration `yaml:"failureBackoff,omitempty"`
}

// ProbesFile overrides probe tunables.
type ProbesFile struct {
	CacheTiming CacheTimingFile `yaml:"cacheTiming,omitempty"`
}

// CacheTimingFile overrides the cache timing probe.
type CacheTimingFile struct {
	// ScriptPath is the script guessed on every target origin.
	ScriptPath string `yaml:"scriptPath,omitempty"`

	// Timeout bounds the wait for the isolated frame.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// ProcessingThreshold is the processing time (ms) under which an
	// origin counts as recently active.
	ProcessingThreshold float64 `yaml:"processingThreshold,omitempty"`
}

// StorageFile overrides storage locations and retention.
type StorageFile struct {
	DBDir     string        `yaml:"dbDir,omitempty"`
	CacheDir  string        `yaml:"cacheDir,omitempty"`
	NoDB      bool          `yaml:"noDB,omitempty"`
	Retention time.Duration `yaml:"retention,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// ApplyTo copies every set field of the file onto cfg.
func (cf *File) ApplyTo(cfg *Config) {
	if cf.Browser.ExecPath != "" {
		cfg.ChromePath = cf.Browser.ExecPath
	}
	if cf.Browser.UserDataDir != "" {
		cfg.UserDataDir = cf.Browser.UserDataDir
	}
	if cf.Browser.Headless != nil {
		cfg.Headless = *cf.Browser.Headless
	}
	if cf.Browser.CallTimeout != 0 {
		cfg.CallTimeout = cf.Browser.CallTimeout
	}

	if cf.Scheduler.BatchSize != 0 {
		cfg.BatchSize = cf.Scheduler.BatchSize
	}
	if cf.Scheduler.BatchDelay != 0 {
		cfg.BatchDelay = cf.Scheduler.BatchDelay
	}
	if cf.Scheduler.FailureBackoff != 0 {
		cfg.FailureBackoff = cf.Scheduler.FailureBackoff
	}

	ct := &cfg.Probes.CacheTiming
	if cf.Probes.CacheTiming.ScriptPath != "" {
		ct.ScriptPath = cf.Probes.CacheTiming.ScriptPath
	}
	if cf.Probes.CacheTiming.Timeout != 0 {
		ct.Timeout = cf.Probes.CacheTiming.Timeout
	}
	if cf.Probes.CacheTiming.ProcessingThreshold != 0 {
		ct.ProcessingThreshold = cf.Probes.CacheTiming.ProcessingThreshold
	}

	if len(cf.Weights) > 0 {
		if cfg.Weights == nil {
			cfg.Weights = make(map[string]float64, len(cf.Weights))
		}
		for k, v := range cf.Weights {
			cfg.Weights[k] = v
		}
	}

	if cf.Storage.DBDir != "" {
		cfg.DBDir = cf.Storage.DBDir
	}
	if cf.Storage.CacheDir != "" {
		cfg.CacheDir = cf.Storage.CacheDir
	}
	if cf.Storage.NoDB {
		cfg.NoDB = true
	}
	if cf.Storage.Retention != 0 {
		cfg.Retention = cf.Storage.Retention
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .histprobe in the current directory
// 3. Look for .histprobe in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
