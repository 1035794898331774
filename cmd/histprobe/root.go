package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for histprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "histprobe",
		Short: "Measure which sites a browser profile has visited",
		Long: `histprobe measures which addresses from a target list appear in the
visited history of a browser profile.

It launches its own Chromium instance on the profile you choose (--profile),
runs seven independent probes per target (render timing, computed style,
forced reflow and resource cache timing) and fuses them into one verdict
with a weighted confidence score.

Detections are stored as sessions. An interrupted session keeps every
finished batch and can be resumed; a completed one can be re-run as a new
session and compared with the original.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .histprobe in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the session database (default: XDG data directory)")
	cmd.PersistentFlags().String("cache-dir", "",
		"Directory of the session file cache (default: XDG cache directory)")
	cmd.PersistentFlags().Bool("no-db", false,
		"Keep sessions in the file cache only")

	// Add subcommands
	cmd.AddCommand(NewDetectCmd())
	cmd.AddCommand(NewResumeCmd())
	cmd.AddCommand(NewRerunCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a running detection stops after its current batch.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}
