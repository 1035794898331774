package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/histprobe/internal/ui/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow the progress of a session live",
		Long: `Watch shows a live progress view of a session that is running in another
histprobe process. The view reloads the session from the store and lists
targets as they are detected.

Keys: r reloads immediately, q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatchCmd,
	}

	cmd.Flags().Duration("interval", watch.DefaultInterval,
		"Reload interval")
	cmd.Flags().Bool("exit", false,
		"Quit when the session completes")
	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	exitOnComplete, err := cmd.Flags().GetBool("exit")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store := openStorage(cfg, setupLogger(cmd.ErrOrStderr(), cfg.Verbose))
	defer store.Close()

	if _, err := loadSession(ctx, store, args[0]); err != nil {
		return err
	}

	final, err := watch.Run(ctx, store, args[0], cmd.InOrStdin(), cmd.OutOrStdout(),
		watch.WithInterval(cfg.PollInterval),
		watch.WithExitOnComplete(exitOnComplete),
	)
	if err != nil {
		return err
	}
	return final.Err()
}
