package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"asciireel/internal/logs"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs [run-id]",
		Short: "Print the debug log of a run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path, err = logs.FindRunLog(cfg.Paths.LogDir, args[0])
			} else {
				path, err = logs.LatestRunLog(cfg.Paths.LogDir)
			}
			if errors.Is(err, logs.ErrNoRunLog) {
				return fmt.Errorf("%w (logs are kept for %d days)", err, cfg.Logging.RetentionDays)
			}
			if err != nil {
				return err
			}
			return streamLog(cmd.Context(), cmd.OutOrStdout(), path, lines, follow)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}

func streamLog(ctx context.Context, w io.Writer, path string, lines int, follow bool) error {
	opts := logs.TailOptions{Offset: -1, Limit: lines}
	if lines <= 0 {
		opts = logs.TailOptions{Offset: 0}
	}
	for {
		result, err := logs.Tail(ctx, path, opts)
		for _, line := range result.Lines {
			fmt.Fprintln(w, line)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !follow {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: followWait}
	}
}
