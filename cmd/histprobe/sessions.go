package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/histprobe/internal/config"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/session"
)

// ErrHistoryNeedsDB is returned by `sessions history` when the session
// database is disabled or unavailable.
var ErrHistoryNeedsDB = errors.New("target history needs the session database (remove --no-db)")

// timeLayout is the timestamp format of session listings.
const timeLayout = "2006-01-02 15:04:05"

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage stored detection sessions",
		Long: `Sessions lists, inspects and removes stored detection sessions.

Sessions are kept in the SQLite database under the XDG data directory and
mirrored to per-session JSON files under the XDG cache directory.`,
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	cmd.AddCommand(newSessionsPruneCmd())
	cmd.AddCommand(newSessionsHistoryCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList,
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the per-target state of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsShow,
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSessionsDelete,
	}
}

func newSessionsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions older than the retention period",
		Long: `Prune deletes every session created before the retention period.
The default period is 7 days; set it with --older-than or storage.retention
in the configuration file.`,
		Args: cobra.NoArgs,
		RunE: runSessionsPrune,
	}
	cmd.Flags().Duration("older-than", config.DefaultRetention,
		"Delete sessions created longer ago than this")
	return cmd
}

func newSessionsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <address>",
		Short: "Show every stored verdict for one target",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsHistory,
	}
}

// runSessionsList executes `sessions list`.
func runSessionsList(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	summaries, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No detection sessions found.")
		fmt.Fprintln(out, "\nUse 'histprobe detect <address>' to start one.")
		return nil
	}

	fmt.Fprintf(out, "Detection sessions (%d):\n\n", len(summaries))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-9s  %s\n", "ID", "Created", "State", "Resolved", "Visited")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 92))
	for _, s := range summaries {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %-9s  %d\n",
			s.ID,
			s.CreatedAt.Local().Format(timeLayout),
			s.State,
			fmt.Sprintf("%d/%d", s.Resolved, s.Targets),
			s.Visited,
		)
	}
	fmt.Fprintln(out, "\nUse 'histprobe report <id>' to see the result of a session.")

	return nil
}

// runSessionsShow executes `sessions show`.
func runSessionsShow(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	sess, err := loadSession(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}

	writeSessionDetail(cmd.OutOrStdout(), sess)
	return nil
}

// writeSessionDetail prints one line per target with its state and the
// individual probe outcomes.
func writeSessionDetail(out io.Writer, sess *model.DetectionSession) {
	fmt.Fprintf(out, "Session:  %s\n", sess.ID)
	fmt.Fprintf(out, "Created:  %s\n", sess.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(out, "State:    %s\n", sess.State())
	fmt.Fprintf(out, "Resolved: %d/%d\n", sess.ResolvedCount(), len(sess.Targets))
	fmt.Fprintf(out, "Visited:  %d\n\n", sess.VisitedCount())

	for _, ts := range sess.Targets {
		fmt.Fprintf(out, "  %-9s  %s\n", targetStatus(ts), ts.Target.URL)
		if ts.Composite != nil {
			fmt.Fprintf(out, "             score %.2f (%s)\n", ts.Composite.WeightedScore, ts.Composite.Confidence)
		}
		for _, r := range ts.Probes.Results() {
			mark := "-"
			if r.Detected {
				mark = "+"
			}
			fmt.Fprintf(out, "             %s %-14s %.3f\n", mark, r.Probe, r.Metric)
		}
	}
}

// targetStatus names the state of a target for listings.
func targetStatus(ts model.TargetState) string {
	switch {
	case ts.Checking:
		return "checking"
	case !ts.Resolved():
		return "pending"
	case ts.Visited():
		return "visited"
	default:
		return "no"
	}
}

// runSessionsDelete executes `sessions delete`.
func runSessionsDelete(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	out := cmd.OutOrStdout()
	var errs []error
	for _, id := range args {
		existed, err := store.Delete(cmd.Context(), id)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("failed to delete session %s: %w", id, err))
		case !existed:
			errs = append(errs, fmt.Errorf("%w: %s", session.ErrNotFound, id))
		default:
			fmt.Fprintf(out, "Deleted session %s\n", id)
		}
	}
	return errors.Join(errs...)
}

// runSessionsPrune executes `sessions prune`.
func runSessionsPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.Retention <= 0 {
		return config.ErrInvalidRetention
	}
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	pruner, ok := store.Store.(session.Pruner)
	if !ok {
		return fmt.Errorf("session store %T cannot prune", store.Store)
	}

	removed, err := pruner.Prune(cmd.Context(), cfg.Retention, time.Now())
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintf(out, "No sessions older than %s.\n", cfg.Retention)
		return nil
	}
	for _, id := range removed {
		fmt.Fprintf(out, "Deleted session %s\n", id)
	}
	fmt.Fprintf(out, "\nPruned %d session(s) older than %s.\n", len(removed), cfg.Retention)
	return nil
}

// runSessionsHistory executes `sessions history`.
func runSessionsHistory(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	if store.db == nil {
		return ErrHistoryNeedsDB
	}

	targetURL, err := model.NormalizeURL(args[0])
	if err != nil {
		return err
	}

	records, err := store.db.History(cmd.Context(), targetURL)
	if err != nil {
		return fmt.Errorf("failed to get target history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No verdicts found for %s\n", targetURL)
		return nil
	}

	fmt.Fprintf(out, "Verdict history for %s (%d sessions):\n\n", targetURL, len(records))
	fmt.Fprintf(out, "  %-36s  %-19s  %-7s  %-6s  %-10s  %s\n",
		"Session", "Created", "Visited", "Score", "Confidence", "Probes")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, r := range records {
		visited := "no"
		if r.Visited {
			visited = "yes"
		}
		probes := make([]string, len(r.PositiveDetections))
		for i, p := range r.PositiveDetections {
			probes[i] = string(p)
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-7s  %-6.2f  %-10s  %s\n",
			r.SessionID,
			r.CreatedAt.Local().Format(timeLayout),
			visited,
			r.WeightedScore,
			r.Confidence,
			strings.Join(probes, ", "),
		)
	}
	return nil
}
