package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/histprobe/internal/config"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/pipeline"
	"github.com/nao1215/histprobe/internal/report"
	"github.com/nao1215/histprobe/internal/session"
	"github.com/nao1215/histprobe/internal/ui/watch"
)

// ErrInterrupted is returned when a detection stops before its last batch.
var ErrInterrupted = errors.New("detection interrupted")

// NewDetectCmd creates the detect command.
func NewDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [address...]",
		Short: "Start a new detection session",
		Long: `Detect creates a new session from the given addresses and measures each of
them in a browser that histprobe launches.

Targets come from positional arguments, a list file (--list), or both. A
list file may be plain text (one address per line, optionally
"address, name, category"), YAML, or a browser bookmark export (HTML).
Addresses without a scheme get https://.

The measured history is the history of the browser profile given with
--profile. Without it, a throwaway profile is used and nothing will be
detected except what the detection itself loads.

Examples:
  # Measure two sites against your Chromium profile
  histprobe detect --profile ~/.config/chromium news.example.com shop.example.com

  # Measure a bookmark export with a live progress view
  histprobe detect --profile ~/.config/chromium --list bookmarks.html --watch

  # Write a Markdown report
  histprobe detect --list sites.txt --markdown -o report.md`,
		RunE: runDetectCmd,
	}

	cmd.Flags().StringP("list", "l", "",
		"Target list file (text, YAML or bookmark HTML export)")
	addDetectionFlags(cmd)

	return cmd
}

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Continue an interrupted detection session",
		Long: `Resume continues a session that was interrupted before its last batch.

Targets that already have a verdict are kept and not measured again; only
batches with unresolved targets run.`,
		Args: cobra.ExactArgs(1),
		RunE: runResumeCmd,
	}

	addDetectionFlags(cmd)
	return cmd
}

// NewRerunCmd creates the rerun command.
func NewRerunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rerun <session-id>",
		Short: "Measure the targets of a session again as a new session",
		Long: `Rerun creates a new session with the targets of an existing one and runs it.
The existing session is left untouched.

With --compare, the report shows what changed between the two sessions
instead of the full result.`,
		Args: cobra.ExactArgs(1),
		RunE: runRerunCmd,
	}

	addDetectionFlags(cmd)
	cmd.Flags().Bool("compare", false,
		"Report the differences to the source session")
	return cmd
}

// runDetectCmd executes the detect command.
func runDetectCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateTargets(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	targets, err := loadTargets(cfg, logger)
	if err != nil {
		return err
	}

	return runDetection(cmd, cfg, func(ctx context.Context, m *session.Manager) (*model.DetectionSession, error) {
		return m.Create(ctx, targets)
	}, nil)
}

// runResumeCmd executes the resume command.
func runResumeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	id := args[0]
	return runDetection(cmd, cfg, func(ctx context.Context, m *session.Manager) (*model.DetectionSession, error) {
		sess, err := loadSession(ctx, m.Store(), id)
		if err != nil {
			return nil, err
		}
		if sess.Completed {
			return nil, fmt.Errorf("%w: use 'histprobe rerun %s' to measure its targets again",
				session.ErrCompleted, id)
		}
		return sess, nil
	}, nil)
}

// runRerunCmd executes the rerun command.
func runRerunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	compare, err := cmd.Flags().GetBool("compare")
	if err != nil {
		return err
	}

	var previous *model.DetectionSession
	prepare := func(ctx context.Context, m *session.Manager) (*model.DetectionSession, error) {
		prev, err := loadSession(ctx, m.Store(), args[0])
		if err != nil {
			return nil, err
		}
		previous = prev
		return m.NewDetection(ctx, prev.ID)
	}

	var finish func(*model.DetectionSession) error
	if compare {
		finish = func(current *model.DetectionSession) error {
			return withReportOutput(cmd, cfg, func(w report.Writer) error {
				_, err := w.WriteComparison(report.Compare(previous, current))
				return err
			})
		}
	}

	return runDetection(cmd, cfg, prepare, finish)
}

// runDetection launches the browser, runs the session returned by prepare
// and reports the result. finish replaces the default report when set.
//
// Design decision: prepare runs before the browser is launched so unknown
// or completed sessions fail without starting Chrome.
func runDetection(
	cmd *cobra.Command,
	cfg *config.Config,
	prepare func(context.Context, *session.Manager) (*model.DetectionSession, error),
	finish func(*model.DetectionSession) error,
) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	logger := setupLogger(stderr, cfg.Verbose)

	watching := false
	if cmd.Flags().Lookup("watch") != nil {
		watching, _ = cmd.Flags().GetBool("watch")
	}

	store := openStorage(cfg, logger)
	defer store.Close()

	var onProgress func(pipeline.Progress)
	if !watching {
		onProgress = progressPrinter(stderr)
	}

	det, err := newDetector(cfg, store, logger, onProgress)
	if err != nil {
		return err
	}

	sess, err := prepare(ctx, det.manager)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Session %s: %d targets, %d already resolved\n",
		sess.ID, len(sess.Targets), sess.ResolvedCount())

	if err := det.chrome.Start(ctx); err != nil {
		return fmt.Errorf("%w (the session was saved; run 'histprobe resume %s' once the browser is available)",
			err, sess.ID)
	}
	defer det.chrome.Stop()

	run, err := det.manager.Start(ctx, sess.ID)
	if err != nil {
		return err
	}

	if watching {
		if _, err := watch.Run(ctx, store, sess.ID, cmd.InOrStdin(), stderr,
			watch.WithInterval(cfg.PollInterval),
			watch.WithExitOnComplete(true),
		); err != nil {
			logger.Warn("live view failed", "error", err)
		}
		select {
		case <-run.Done():
		default:
			fmt.Fprintln(stderr, "Waiting for the detection to finish (Ctrl+C stops after the current batch)")
		}
	}

	final, runErr := run.Wait()
	if final == nil {
		if final, err = loadSession(context.WithoutCancel(ctx), store, sess.ID); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}

	if finish == nil {
		finish = func(s *model.DetectionSession) error {
			return outputReport(cmd, cfg, s)
		}
	}
	if err := finish(final); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("%w after %d of %d targets: run 'histprobe resume %s' to continue",
			ErrInterrupted, final.ResolvedCount(), len(final.Targets), final.ID)
	}
	return nil
}
