package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"asciireel/internal/history"
	"asciireel/internal/services"
)

const defaultHistoryLimit = 20

var statusTitle = cases.Title(language.Und)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeHistoryTable(cmd.OutOrStdout(), runs, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum runs to list")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id-or-prefix>",
		Short: "Show one conversion in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Find(cmd.Context(), args[0])
			switch {
			case errors.Is(err, history.ErrNotFound):
				return fmt.Errorf("run %s not found", args[0])
			case errors.Is(err, history.ErrAmbiguousID):
				return fmt.Errorf("run id %s matches several runs; use more characters", args[0])
			}
			if err != nil {
				return err
			}
			writeRunDetail(cmd.OutOrStdout(), *run)
			return nil
		},
	}
}

func writeHistoryTable(w io.Writer, runs []history.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return
	}
	headers := []string{"ID", "Started", "Status", "Frames", "Size", "Elapsed", "Output"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			statusLabel(run.Status),
			frameCount(run),
			sizeLabel(run.OutputBytes),
			elapsedLabel(run),
			filepath.Base(run.OutputPath),
		})
	}
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
}

func writeRunDetail(w io.Writer, run history.Run) {
	field := func(label, value string) {
		fmt.Fprintf(w, "%-16s %s\n", label+":", value)
	}
	field("Run", run.ID)
	field("Status", statusLabel(run.Status))
	field("Input", run.InputPath)
	field("Output", run.OutputPath)
	field("Started", run.StartedAt.Local().Format(time.DateTime))
	if !run.FinishedAt.IsZero() {
		field("Finished", run.FinishedAt.Local().Format(time.DateTime))
		field("Elapsed", elapsedLabel(run))
	}
	field("Columns", fmt.Sprintf("%d", run.Columns))
	if run.Width > 0 && run.Height > 0 {
		field("Resolution", fmt.Sprintf("%dx%d @ %.3g fps", run.Width, run.Height, run.FPS))
	}
	field("Frames", frameCount(run))
	field("Size", sizeLabel(run.OutputBytes))
	if run.ErrorMessage != "" {
		field("Error", run.ErrorMessage)
	}
	if run.FailedStage != "" {
		stage := run.FailedStage
		if run.FailedFrame >= 0 {
			stage = fmt.Sprintf("%s (frame %d)", stage, run.FailedFrame)
		}
		field("Failed during", stage)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusLabel(status services.Status) string {
	if status == "" {
		return "Unknown"
	}
	return statusTitle.String(string(status))
}

func frameCount(run history.Run) string {
	if run.ExpectedFrames > 0 {
		return humanize.Comma(run.Frames) + "/" + humanize.Comma(run.ExpectedFrames)
	}
	return humanize.Comma(run.Frames)
}

func sizeLabel(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func elapsedLabel(run history.Run) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	return run.Elapsed().Round(time.Second).String()
}
