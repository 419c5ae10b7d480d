package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"asciireel/internal/notifications"
	"asciireel/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var output string
	var notify bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify tools, encoder, and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, output)
			if notify {
				results = append(results, checkNotification(cmd.Context(), notifications.NewService(cfg), cfg.Notifications.NtfyTopic))
			}
			out := cmd.OutOrStdout()
			writeCheckReport(out, results, shouldColorize(out))
			if failed := preflight.Failed(results); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, r := range failed {
					names = append(names, r.Name)
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also check that this output path's directory is writable")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a test notification to the configured ntfy topic")
	return cmd
}

func checkNotification(ctx context.Context, notifier notifications.Service, topic string) preflight.Result {
	result := preflight.Result{Name: "Notifications", Optional: true}
	if topic == "" {
		result.Detail = "no ntfy topic configured"
		return result
	}
	if err := notifier.TestNotification(ctx); err != nil {
		result.Detail = err.Error()
		return result
	}
	result.Passed = true
	result.Detail = "test message sent to " + topic
	return result
}

func writeCheckReport(w io.Writer, results []preflight.Result, colorize bool) {
	for _, line := range checkLines(results, colorize) {
		fmt.Fprintln(w, line)
	}
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Preflight", colorize)
	for _, r := range results {
		kind := statusOK
		switch {
		case r.Passed:
		case r.Optional:
			kind = statusWarn
		default:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}

	failed := preflight.Failed(results)
	summaryKind := statusOK
	summary := fmt.Sprintf("%d checks passed", len(results))
	if len(failed) > 0 {
		summaryKind = statusError
		summary = fmt.Sprintf("%d of %d required checks failed", len(failed), len(results))
	}
	return append(lines, renderStatusLine("Summary", summaryKind, summary, colorize))
}
