package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/screener/pkg/inbox"
	"github.com/xhad/screener/pkg/screening"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Index résumés as they are dropped into a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Int64P("position", "p", 0, "position id the résumés belong to")
	watchCmd.Flags().Bool("screen", false, "validate and record each candidate before indexing")
}

func runWatch(cmd *cobra.Command, args []string) error {
	positionID, _ := cmd.Flags().GetInt64("position")
	screen, _ := cmd.Flags().GetBool("screen")
	if positionID < 1 {
		return errPositionRequired
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := inbox.NewWatcher(inbox.WatcherConfig{Dir: args[0], Logger: a.logger})
	if err != nil {
		return err
	}

	handle := func(ctx context.Context, path string) {
		if a.pipeline.Ingest(ctx, path, positionID, "") {
			color.Green("✓ %s", filepath.Base(path))
		} else {
			color.Red("✗ %s", filepath.Base(path))
		}
	}
	if screen {
		svc, closeStore, err := a.screeningService()
		if err != nil {
			return err
		}
		defer closeStore()
		handle = func(ctx context.Context, path string) {
			out, err := svc.Submit(ctx, screening.Submission{PositionID: positionID, FilePath: path})
			switch {
			case err != nil:
				color.Red("✗ %s: %v", filepath.Base(path), err)
			case out.Indexed:
				color.Green("✓ %s", filepath.Base(path))
			default:
				color.Yellow("✗ %s: %s", filepath.Base(path), out.Message)
			}
		}
	}

	color.Cyan("Watching %s for position %d (Ctrl+C to stop)", args[0], positionID)
	return w.Run(ctx, handle)
}
