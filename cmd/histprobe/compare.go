package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/report"
)

// ErrNothingToCompare is returned when no two sessions can be paired.
var ErrNothingToCompare = errors.New("need at least two sessions to compare")

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [previous-id] [current-id]",
		Short: "Compare the verdicts of two sessions",
		Long: `Compare shows how the verdicts changed between two sessions: targets that
became visited, targets that are no longer detected, and targets present in
only one of them. Targets are matched by address.

With no arguments the two newest completed sessions are compared. With one
argument, that session is compared with the newest completed session
created after it.

Examples:
  # Compare the latest two completed sessions
  histprobe compare

  # Compare two specific sessions as JSON
  histprobe compare 3f1c2a9e-... 8b7d4e10-... --json`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	addReportFlags(cmd)
	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	ids := args
	if len(ids) < 2 {
		summaries, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		ids, err = pickComparison(summaries, args)
		if err != nil {
			return err
		}
	}

	previous, err := loadSession(ctx, store, ids[0])
	if err != nil {
		return err
	}
	current, err := loadSession(ctx, store, ids[1])
	if err != nil {
		return err
	}

	return withReportOutput(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteComparison(report.Compare(previous, current))
		return err
	})
}

// pickComparison chooses the sessions to compare from a newest-first
// listing. With no fixed ID it returns the two newest completed sessions;
// with one, that session and the newest completed session created after it.
func pickComparison(summaries []model.Summary, fixed []string) ([]string, error) {
	var completed []model.Summary
	for _, s := range summaries {
		if s.Completed {
			completed = append(completed, s)
		}
	}

	if len(fixed) == 0 {
		if len(completed) < 2 {
			return nil, ErrNothingToCompare
		}
		return []string{completed[1].ID, completed[0].ID}, nil
	}

	var base *model.Summary
	for i := range summaries {
		if summaries[i].ID == fixed[0] {
			base = &summaries[i]
			break
		}
	}
	if base == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, fixed[0])
	}

	for _, s := range completed {
		if s.ID != base.ID && s.CreatedAt.After(base.CreatedAt) {
			return []string{base.ID, s.ID}, nil
		}
	}
	return nil, fmt.Errorf("%w: no completed session newer than %s", ErrNothingToCompare, base.ID)
}
