package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/histprobe/internal/aggregate"
	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/catalog"
	"github.com/nao1215/histprobe/internal/config"
	"github.com/nao1215/histprobe/internal/database"
	"github.com/nao1215/histprobe/internal/log"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/pipeline"
	"github.com/nao1215/histprobe/internal/probe"
	"github.com/nao1215/histprobe/internal/report"
	"github.com/nao1215/histprobe/internal/session"
)

// buildConfig creates the configuration from defaults, the configuration
// file and command-line flags, in that order. Flags only override the file
// when they were given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if flags.Lookup("config") != nil {
		cfg.ConfigFilePath, err = flags.GetString("config")
		if err != nil {
			return nil, err
		}
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently keep the defaults if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.ApplyTo(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if flags.Changed("verbose") {
		if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cache-dir") {
		if cfg.CacheDir, err = flags.GetString("cache-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-db") {
		if cfg.NoDB, err = flags.GetBool("no-db"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("list") {
		if cfg.ListFile, err = flags.GetString("list"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("batch-delay") {
		if cfg.BatchDelay, err = flags.GetDuration("batch-delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("failure-backoff") {
		if cfg.FailureBackoff, err = flags.GetDuration("failure-backoff"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("chrome") {
		if cfg.ChromePath, err = flags.GetString("chrome"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("profile") {
		if cfg.UserDataDir, err = flags.GetString("profile"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("headless") {
		if cfg.Headless, err = flags.GetBool("headless"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("call-timeout") {
		if cfg.CallTimeout, err = flags.GetDuration("call-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("script-path") {
		if cfg.Probes.CacheTiming.ScriptPath, err = flags.GetString("script-path"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("older-than") {
		if cfg.Retention, err = flags.GetDuration("older-than"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("interval") {
		if cfg.PollInterval, err = flags.GetDuration("interval"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("json") {
		if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("markdown") {
		if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}

	cfg.Targets = args

	return cfg, nil
}

// addDetectionFlags registers the flags shared by detect, resume and rerun.
func addDetectionFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("batch", "b", 0,
		"Targets per batch (0 picks 20, 10 or 5 from the number of targets)")
	cmd.Flags().Duration("batch-delay", config.DefaultBatchDelay,
		"Pause between two batches")
	cmd.Flags().Duration("failure-backoff", config.DefaultFailureBackoff,
		"Pause after a failed batch")
	cmd.Flags().String("chrome", "",
		"Chrome or Chromium executable (default: found on PATH)")
	cmd.Flags().StringP("profile", "p", "",
		"Browser user data directory whose history is measured (default: a throwaway profile)")
	cmd.Flags().Bool("headless", true,
		"Run the browser without a window")
	cmd.Flags().Duration("call-timeout", config.DefaultCallTimeout,
		"Upper bound of one in-page measurement")
	cmd.Flags().String("script-path", probe.DefaultParams().CacheTiming.ScriptPath,
		"Script path guessed on every target origin by the cache timing probe")
	cmd.Flags().BoolP("watch", "w", false,
		"Show a live progress view while the detection runs")
	addReportFlags(cmd)
}

// addReportFlags registers the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output report in Markdown format")
	cmd.Flags().StringP("output", "o", "",
		"Write report to file instead of stdout")
	cmd.Flags().BoolP("all", "a", false,
		"List targets that were not detected as visited too (text report)")
}

// setupLogger creates a logger that redacts sensitive values. Debug output
// is enabled in verbose mode; otherwise only warnings and errors are shown.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return log.NewSecureLogger(w, verbose)
}

// storage is the session store of one command invocation.
type storage struct {
	session.Store

	// db is nil when the command runs on the file cache alone.
	db *database.SessionDB
}

// openStorage opens the session store. Sessions are always written to the
// file cache; the SQLite database is used in front of it unless disabled.
//
// Design decision: A database that cannot be opened is not fatal. The
// command falls back to the file cache and warns, so a detection is never
// lost to a locked or corrupted database file.
func openStorage(cfg *config.Config, logger *slog.Logger) *storage {
	cache := session.NewFileCache(cfg.CacheDir)
	if cfg.NoDB {
		return &storage{Store: cache}
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("session database unavailable, using the file cache only",
			"dir", cfg.DBDir,
			"error", err,
		)
		return &storage{Store: cache}
	}

	return &storage{
		Store: session.NewResilientStore(db, cache, session.WithStoreLogger(logger)),
		db:    db,
	}
}

// Close closes the database, if one was opened.
func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// detector bundles the browser and the session manager of a detection.
type detector struct {
	chrome  *browser.Chrome
	manager *session.Manager
}

// newDetector wires the probe suite, aggregator, batch processor and
// scheduler on top of a browser that is started but not yet attached.
func newDetector(cfg *config.Config, store session.Store, logger *slog.Logger, onProgress func(pipeline.Progress)) (*detector, error) {
	weights, err := cfg.WeightTable()
	if err != nil {
		return nil, err
	}
	aggregator, err := aggregate.New(weights)
	if err != nil {
		return nil, err
	}

	chrome := browser.NewChrome(
		browser.WithExecPath(cfg.ChromePath),
		browser.WithUserDataDir(cfg.UserDataDir),
		browser.WithHeadless(cfg.Headless),
		browser.WithCallTimeout(cfg.CallTimeout),
		browser.WithLogger(logger),
	)

	suite := probe.NewSuite(chrome,
		probe.WithLogger(logger),
		probe.WithParams(cfg.Probes),
	)

	processor := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(suite, aggregator, pipeline.WithLogger(logger))
		},
		pipeline.WithBatchLogger(logger),
	)

	opts := []pipeline.SchedulerOption{
		pipeline.WithSchedulerLogger(logger),
		pipeline.WithBatchSize(cfg.BatchSize),
		pipeline.WithBatchDelay(cfg.BatchDelay),
		pipeline.WithFailureBackoff(cfg.FailureBackoff),
	}
	if onProgress != nil {
		opts = append(opts, pipeline.WithProgress(onProgress))
	}
	scheduler := pipeline.NewScheduler(processor, store, opts...)

	return &detector{
		chrome:  chrome,
		manager: session.NewManager(store, scheduler, session.WithLogger(logger)),
	}, nil
}

// progressPrinter returns a progress callback that prints one line per
// batch to w.
func progressPrinter(w io.Writer) func(pipeline.Progress) {
	return func(p pipeline.Progress) {
		status := ""
		switch {
		case p.Failed:
			status = " (some targets failed, left unresolved)"
		case p.Skipped:
			status = " (already resolved)"
		}
		fmt.Fprintf(w, "[%3d%%] batch %d/%d: %d of %d resolved, %d visited%s\n",
			p.Percent, p.Batch+1, p.Total,
			p.Snapshot.ResolvedCount(), len(p.Snapshot.Targets),
			p.Snapshot.VisitedCount(), status)
	}
}

// loadTargets builds the target list from --list and the positional
// arguments. Rejected entries are logged and skipped; a target given in
// both places is measured once.
func loadTargets(cfg *config.Config, logger *slog.Logger) ([]model.Target, error) {
	var results []catalog.Result

	if cfg.ListFile != "" {
		res, err := catalog.LoadFile(cfg.ListFile)
		if err != nil && !errors.Is(err, catalog.ErrEmptyCatalog) {
			return nil, err
		}
		results = append(results, res)
	}
	if len(cfg.Targets) > 0 {
		res, err := catalog.FromArgs(cfg.Targets)
		if err != nil && !errors.Is(err, catalog.ErrEmptyCatalog) {
			return nil, err
		}
		results = append(results, res)
	}

	var targets []model.Target
	seen := make(map[string]bool)
	duplicates := 0
	for _, res := range results {
		for _, r := range res.Rejected {
			logger.Warn("skipping target", "address", r.Entry.URL, "error", r.Err)
		}
		duplicates += res.Duplicates
		for _, t := range res.Targets {
			if seen[t.URL] {
				duplicates++
				continue
			}
			seen[t.URL] = true
			targets = append(targets, t)
		}
	}
	if duplicates > 0 {
		logger.Info("duplicate targets removed", "count", duplicates)
	}

	if len(targets) == 0 {
		return nil, catalog.ErrEmptyCatalog
	}
	return targets, nil
}

// newWriter selects the report writer for the configured format.
func newWriter(cmd *cobra.Command, cfg *config.Config, output io.Writer) report.Writer {
	if cfg.JSONReport {
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	}
	if cfg.MarkdownReport {
		return report.NewMarkdownWriter(output)
	}

	showAll := false
	if cmd.Flags().Lookup("all") != nil {
		showAll, _ = cmd.Flags().GetBool("all")
	}
	return report.NewSimpleWriter(output, report.WithVerbose(showAll))
}

// withReportOutput opens the report destination and passes the selected
// writer to fn.
func withReportOutput(cmd *cobra.Command, cfg *config.Config, fn func(report.Writer) error) error {
	output := cmd.OutOrStdout()
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports reveal browsing history and are only readable by the owner.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	return fn(newWriter(cmd, cfg, output))
}

// outputReport writes the report of a session.
func outputReport(cmd *cobra.Command, cfg *config.Config, sess *model.DetectionSession) error {
	return withReportOutput(cmd, cfg, func(w report.Writer) error {
		_, err := w.Write(sess)
		return err
	})
}

// loadSession reads one session from the store with a friendly error for
// unknown IDs.
func loadSession(ctx context.Context, store session.Store, id string) (*model.DetectionSession, error) {
	sess, err := store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s (see 'histprobe sessions list')", err, id)
	}
	return sess, err
}
