package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"asciireel/internal/services"
)

const (
	exitFailure   = 1
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode reports err on w and maps it to a process exit status.
func exitCode(w io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, services.ErrCancelled), errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "asciireel: cancelled")
		return exitCancelled
	default:
		fmt.Fprintf(w, "asciireel: %v\n", err)
		if stage, frame, ok := services.FailedStage(err); ok && stage != "" {
			if frame >= 0 {
				fmt.Fprintf(w, "  failed while %s at frame %d\n", stage, frame)
			} else {
				fmt.Fprintf(w, "  failed while %s\n", stage)
			}
		}
		return exitFailure
	}
}
