package main

import (
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print the report of a stored session",
		Long: `Report prints the result of a stored session: a summary with the number
of visited targets per confidence tier, a breakdown per category and per
probe, and the list of visited targets.

Incomplete sessions are reported with the targets resolved so far.

Examples:
  # Human-readable report
  histprobe report 3f1c2a9e-...

  # Markdown report to a file
  histprobe report 3f1c2a9e-... --markdown -o report.md`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	addReportFlags(cmd)
	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	sess, err := loadSession(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}
	return outputReport(cmd, cfg, sess)
}
