package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"asciireel/internal/config"
	"asciireel/internal/deps"
	"asciireel/internal/history"
	"asciireel/internal/logging"
	"asciireel/internal/logs"
	"asciireel/internal/media/ffmpeg"
	"asciireel/internal/notifications"
	"asciireel/internal/pipeline"
	"asciireel/internal/render"
	"asciireel/internal/services"
	"asciireel/internal/workspace"
)

const (
	// staleTempAge is how old an orphaned temp file next to the output must be
	// before convert removes it.
	staleTempAge = 6 * time.Hour
	// abandonedRunAge marks history rows still "running" after this long as
	// failed; their process is gone.
	abandonedRunAge = 48 * time.Hour
)

type convertOptions struct {
	output     string
	columns    int
	fps        float64
	charset    string
	width      int
	height     int
	polarity   string
	shades     int
	workers    int
	queueDepth int
	compare    bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Transcode a video into ASCII art",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output path (default <input>_ascii.mp4)")
	flags.IntVar(&opts.columns, "columns", 0, "Glyph columns per row")
	flags.Float64Var(&opts.fps, "fps", 0, "Output frame rate (default: source rate)")
	flags.StringVar(&opts.charset, "charset", "", "Glyphs ordered from darkest to brightest")
	flags.IntVar(&opts.width, "width", 0, "Output width in pixels (default: source width)")
	flags.IntVar(&opts.height, "height", 0, "Output height in pixels (default: source height)")
	flags.StringVar(&opts.polarity, "polarity", "", "light_on_dark or dark_on_light")
	flags.IntVar(&opts.shades, "shades", 0, "Stroke gray levels: 1 for black and white, 2-256 for grayscale")
	flags.IntVar(&opts.workers, "workers", 0, "Render workers (default: number of CPUs)")
	flags.IntVar(&opts.queueDepth, "queue-depth", 0, "Maximum frames in flight")
	flags.BoolVar(&opts.compare, "compare", false, "Place the source next to the ASCII rendering")

	return cmd
}

func runConvert(cmd *cobra.Command, ctx *commandContext, input string, opts convertOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	pcfg, err := buildPipelineConfig(cfg, input, opts, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	runLog, err := logging.OpenRunLog(cfg.Paths.LogDir, logs.RunLogName(runID, time.Now()))
	if err != nil {
		logger.Warn("run log unavailable; continuing with console logging only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "run_log_unavailable"),
			logging.String(logging.FieldImpact, "no debug log file is written for this run"),
		)
	} else {
		defer runLog.Close()
		logger = logging.TeeLogger(logger, runLog.Handler)
	}

	retention := logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log"}
	if runLog != nil {
		retention.Exclude = []string{runLog.Path}
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, retention)

	stale := workspace.CleanStale(filepath.Dir(pcfg.OutputPath), staleTempAge, logger)
	reportStaleFailures(logger, stale)

	store := openHistory(cmd.Context(), cfg, logger)
	if store != nil {
		if err := store.Begin(cmd.Context(), history.Start{
			ID:         runID,
			InputPath:  pcfg.InputPath,
			OutputPath: pcfg.OutputPath,
			Columns:    pcfg.Columns,
		}); err != nil {
			logger.Warn("run not recorded in history", logging.Error(err))
			_ = store.Close()
			store = nil
		} else {
			defer store.Close()
		}
	}

	progress := newProgressReporter(cmd.ErrOrStderr(), isTerminal(cmd.ErrOrStderr()) && !ctx.isQuiet())
	orch, err := pipeline.New(pipeline.Options{
		Backend:    ffmpeg.NewDecoder(cfg.FFmpegBinary(), deps.ResolveFFprobePath(cfg.FFprobeBinary(), cfg.FFmpegBinary()), logger),
		Encoder:    ffmpeg.NewEncoder(encoderOptions(cfg), logger),
		Logger:     logger,
		OnProgress: progress.Update,
	})
	if err != nil {
		return err
	}

	runCtx := services.WithRunID(cmd.Context(), runID)
	result, runErr := orch.Run(runCtx, pcfg)
	progress.Finish(runErr == nil)

	var outputBytes int64
	if runErr == nil {
		if info, statErr := os.Stat(result.OutputPath); statErr == nil {
			outputBytes = info.Size()
		}
	}
	if store != nil {
		// The command context may already be cancelled; the outcome must still land.
		finishCtx := context.WithoutCancel(cmd.Context())
		if err := store.Finish(finishCtx, runID, history.Outcome{
			FPS:            result.FPS,
			Width:          result.Width,
			Height:         result.Height,
			Frames:         result.Frames,
			ExpectedFrames: result.ExpectedFrames,
			OutputBytes:    outputBytes,
			Err:            runErr,
		}); err != nil {
			logger.Warn("run outcome not recorded in history", logging.Error(err))
		}
	}
	notifyOutcome(cmd.Context(), notifications.NewService(cfg), logger, pcfg.InputPath, result, outputBytes, runErr)
	if runErr != nil {
		return runErr
	}

	printConvertSummary(cmd.OutOrStdout(), result, outputBytes)
	return nil
}

// reportStaleFailures warns about temp artifacts CleanStale could not remove.
func reportStaleFailures(logger *slog.Logger, stale workspace.CleanStaleResult) {
	for _, failure := range stale.Errors {
		logger.Warn("stale temp file not removed",
			logging.String("path", failure.Path),
			logging.Error(failure.Error),
			logging.String(logging.FieldErrorHint, "remove the file by hand once no run is using it"),
		)
	}
}

// buildPipelineConfig layers explicitly set flags over the loaded config.
func buildPipelineConfig(cfg *config.Config, input string, opts convertOptions, flags *pflag.FlagSet) (pipeline.Config, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return pipeline.Config{}, fmt.Errorf("%w: input path is required", services.ErrInvalidConfig)
	}
	inputPath, err := config.ExpandPath(input)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("%w: input path: %v", services.ErrInvalidConfig, err)
	}

	pcfg := pipeline.Config{
		InputPath:    inputPath,
		Columns:      cfg.Render.Columns,
		FPS:          cfg.Render.FPS,
		Charset:      cfg.Render.Charset,
		OutputWidth:  cfg.Render.OutputWidth,
		OutputHeight: cfg.Render.OutputHeight,
		Workers:      cfg.Pipeline.Workers,
		QueueDepth:   cfg.Pipeline.QueueDepth,
		Compare:      cfg.Encoding.Compare,
		Shades:       cfg.Render.Shades,
	}
	polarity := cfg.Render.Polarity

	changed := func(name string) bool { return flags != nil && flags.Changed(name) }
	if changed("columns") {
		pcfg.Columns = opts.columns
	}
	if changed("fps") {
		pcfg.FPS = opts.fps
	}
	if changed("charset") {
		pcfg.Charset = opts.charset
	}
	if changed("width") {
		pcfg.OutputWidth = opts.width
	}
	if changed("height") {
		pcfg.OutputHeight = opts.height
	}
	if changed("shades") {
		pcfg.Shades = opts.shades
	}
	if changed("workers") {
		pcfg.Workers = opts.workers
	}
	if changed("queue-depth") {
		pcfg.QueueDepth = opts.queueDepth
	}
	if changed("compare") {
		pcfg.Compare = opts.compare
	}
	if changed("polarity") {
		polarity = opts.polarity
	}

	parsed, err := render.ParsePolarity(strings.ToLower(strings.TrimSpace(polarity)))
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("%w: %v", services.ErrInvalidConfig, err)
	}
	pcfg.Polarity = parsed

	output := strings.TrimSpace(opts.output)
	if output == "" {
		pcfg.OutputPath = defaultOutputPath(inputPath, pcfg.Compare)
	} else {
		expanded, err := config.ExpandPath(output)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("%w: output path: %v", services.ErrInvalidConfig, err)
		}
		pcfg.OutputPath = expanded
	}
	if filepath.Ext(pcfg.OutputPath) == "" {
		return pipeline.Config{}, fmt.Errorf("%w: output path %q needs a container extension such as .mp4", services.ErrInvalidConfig, pcfg.OutputPath)
	}
	if filepath.Clean(pcfg.OutputPath) == filepath.Clean(pcfg.InputPath) {
		return pipeline.Config{}, fmt.Errorf("%w: output path must differ from input", services.ErrInvalidConfig)
	}
	return pcfg, nil
}

// defaultOutputPath places the result next to the input.
func defaultOutputPath(input string, compare bool) string {
	suffix := "_ascii"
	if compare {
		suffix = "_compare"
	}
	dir := filepath.Dir(input)
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+suffix+".mp4")
}

func encoderOptions(cfg *config.Config) ffmpeg.EncoderOptions {
	return ffmpeg.EncoderOptions{
		Binary:      cfg.FFmpegBinary(),
		Codec:       cfg.Encoding.Codec,
		Preset:      cfg.Encoding.Preset,
		CRF:         cfg.Encoding.CRF,
		PixelFormat: cfg.Encoding.PixelFormat,
		Tune:        cfg.Encoding.Tune,
	}
}

// openHistory opens the run store and sweeps abandoned rows. History is
// best-effort: failures are logged and convert proceeds without it.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) *history.Store {
	store, err := history.Open(cfg)
	if err != nil {
		if errors.Is(err, history.ErrSchemaMismatch) {
			logger.Warn("history database schema mismatch; run will not be recorded",
				logging.String("path", cfg.HistoryPath()),
				logging.String(logging.FieldErrorHint, "move the database aside to start a fresh history"),
			)
		} else {
			logger.Warn("history unavailable", logging.Error(err))
		}
		return nil
	}
	if marked, err := store.MarkAbandoned(ctx, time.Now().Add(-abandonedRunAge)); err != nil {
		logger.Debug("abandoned run sweep failed", logging.Error(err))
	} else if marked > 0 {
		logger.Info("marked abandoned runs as failed", logging.Int64("runs", marked))
	}
	return store
}

// notifyOutcome pushes the result of a run. Cancelled runs are not reported.
func notifyOutcome(ctx context.Context, notifier notifications.Service, logger *slog.Logger, input string, result pipeline.Result, outputBytes int64, runErr error) {
	if services.FailureStatus(runErr) == services.StatusCancelled {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if runErr != nil {
		err = notifier.NotifyRunFailed(ctx, input, runErr)
	} else {
		err = notifier.NotifyRunCompleted(ctx, notifications.RunSummary{
			OutputPath:  result.OutputPath,
			Frames:      result.Frames,
			OutputBytes: outputBytes,
			Elapsed:     result.Elapsed,
		})
	}
	if err != nil {
		logger.Warn("notification not delivered",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
		)
	}
}

func printConvertSummary(w io.Writer, result pipeline.Result, outputBytes int64) {
	fmt.Fprintf(w, "Wrote %s\n", result.OutputPath)
	fmt.Fprintf(w, "  %s frames at %.3g fps, %dx%d (%d x %d glyphs)\n",
		humanize.Comma(result.Frames), result.FPS, result.Width, result.Height, result.Columns, result.Rows)
	if outputBytes > 0 {
		fmt.Fprintf(w, "  %s in %s\n", humanize.IBytes(uint64(outputBytes)), result.Elapsed.Round(100*time.Millisecond))
	} else {
		fmt.Fprintf(w, "  finished in %s\n", result.Elapsed.Round(100*time.Millisecond))
	}
}
