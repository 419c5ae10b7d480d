package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"asciireel/internal/charset"
	"asciireel/internal/frame"
	"asciireel/internal/glyph"
	"asciireel/internal/logging"
	"asciireel/internal/render"
	"asciireel/internal/reorder"
	"asciireel/internal/sampler"
	"asciireel/internal/services"
	"asciireel/internal/sink"
	"asciireel/internal/source"
	"asciireel/internal/workspace"
)

// Progress is reported after each frame reaches the encoder.
type Progress struct {
	Frame    int64
	Expected int64
	Elapsed  time.Duration
}

// Percent returns completion in [0,100], or 0 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.Expected <= 0 {
		return 0
	}
	return math.Min(100, float64(p.Frame)*100/float64(p.Expected))
}

// Result summarizes a run.
type Result struct {
	RunID          string
	State          State
	OutputPath     string
	Source         source.Metadata
	FPS            float64
	Width          int
	Height         int
	Rows           int
	Columns        int
	Frames         int64
	ExpectedFrames int64
	Elapsed        time.Duration
}

// Options wires the orchestrator to its collaborators.
type Options struct {
	Backend source.Backend
	Encoder sink.Encoder
	Logger  *slog.Logger
	// OnState observes every transition. It runs on the Run goroutine.
	OnState func(State)
	// OnProgress runs on the writer goroutine and must not block.
	OnProgress func(Progress)
}

// Orchestrator runs transcodes one at a time.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger

	runMu sync.Mutex
	mu    sync.Mutex
	state State
}

// New validates the collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("pipeline requires a decoder backend")
	}
	if opts.Encoder == nil {
		return nil, errors.New("pipeline requires an encoder")
	}
	return &Orchestrator{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "pipeline"),
		state:  StateIdle,
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	if !canTransition(from, to) {
		o.mu.Unlock()
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", from, to))
	}
	o.state = to
	o.mu.Unlock()
	if o.opts.OnState != nil {
		o.opts.OnState(to)
	}
}

func (o *Orchestrator) reset() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
	if o.opts.OnState != nil {
		o.opts.OnState(StateIdle)
	}
}

// Run transcodes cfg.InputPath into cfg.OutputPath. On failure the returned
// error wraps a *services.StageError naming the state that failed and, for
// per-frame failures, the frame index.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (Result, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	o.reset()

	started := time.Now()
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	result := Result{RunID: runID, OutputPath: cfg.OutputPath, Columns: cfg.Columns}
	logger := logging.WithContext(ctx, o.logger)

	r := &run{o: o, ctx: ctx, cfg: cfg, result: &result, logger: logger, started: started}
	err := r.execute()
	result.Elapsed = time.Since(started)
	if err != nil {
		err = r.fail(err)
		result.State = StateFailed
		return result, err
	}
	result.State = StateDone
	logger.Info("transcode complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output", result.OutputPath),
		logging.Int64("frames", result.Frames),
		logging.Int64("expected_frames", result.ExpectedFrames),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

type run struct {
	o       *Orchestrator
	ctx     context.Context
	cfg     Config
	result  *Result
	logger  *slog.Logger
	started time.Time
}

func (r *run) execute() error {
	o := r.o
	o.transition(StateProbing)

	cs, err := r.cfg.Validate()
	if err != nil {
		return err
	}

	src, err := source.Open(r.ctx, o.opts.Backend, r.cfg.InputPath)
	if err != nil {
		return err
	}
	meta := src.Metadata()
	r.result.Source = meta

	fps := r.cfg.FPS
	if fps <= 0 {
		fps = meta.FPS
	}
	width, height := r.cfg.OutputWidth, r.cfg.OutputHeight
	if width == 0 {
		width = meta.Width
	}
	if height == 0 {
		height = meta.Height
	}
	if width <= 0 || height <= 0 {
		return services.Wrap(services.ErrInvalidDimensions, "probing", "output size",
			fmt.Sprintf("%dx%d", width, height), nil)
	}
	r.result.FPS = fps
	r.result.Width = width
	r.result.Height = height
	r.result.Rows = sampler.Rows(meta.Width, meta.Height, r.cfg.Columns)
	r.result.ExpectedFrames = meta.ExpectedFrames(fps)

	renderer, err := render.New(render.Options{Polarity: r.cfg.Polarity, Shades: r.cfg.Shades})
	if err != nil {
		return err
	}

	ws, err := workspace.Acquire(r.cfg.OutputPath, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := ws.Release(); releaseErr != nil {
			r.logger.Debug("workspace release failed", logging.Error(releaseErr))
		}
	}()
	r.result.OutputPath = ws.Output()

	r.logger.Info("source probed",
		logging.String(logging.FieldEventType, "source_probed"),
		logging.String("input", r.cfg.InputPath),
		logging.Int("source_width", meta.Width),
		logging.Int("source_height", meta.Height),
		logging.Float64("source_fps", meta.FPS),
		logging.Bool("has_audio", meta.HasAudio),
		logging.Float64("fps", fps),
		logging.Int("columns", r.cfg.Columns),
		logging.Int("rows", r.result.Rows),
	)

	r.warnIllegibleCells()

	o.transition(StateProcessing)
	videoPath := ws.TempPath("video")
	writer, err := o.opts.Encoder.Open(r.ctx, sink.EncodeJob{OutputPath: videoPath, Width: width, Height: height, FPS: fps})
	if err != nil {
		return err
	}
	if err := r.process(src, fps, cs, renderer, writer, width, height); err != nil {
		writer.Abort()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	r.checkFrameCount()

	o.transition(StateMuxing)
	final := videoPath
	if meta.HasAudio || r.cfg.Compare {
		evenWidth, _ := sink.EvenDimensions(width, height)
		final = ws.TempPath("muxed")
		job := sink.MuxJob{
			VideoPath:  videoPath,
			SourcePath: r.cfg.InputPath,
			OutputPath: final,
			Audio:      meta.Audio,
			Compare:    r.cfg.Compare,
			Width:      evenWidth,
		}
		if err := o.opts.Encoder.Mux(r.ctx, job); err != nil {
			return err
		}
	}
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if err := ws.Commit(final); err != nil {
		return err
	}
	o.transition(StateDone)
	return nil
}

// process runs the decoder, worker pool, and writer until the stream ends or
// any of them fails.
func (r *run) process(src *source.Source, fps float64, cs *charset.Charset, renderer *render.Renderer, writer sink.VideoWriter, width, height int) error {
	stream, err := src.Frames(r.ctx, fps)
	if err != nil {
		return err
	}
	defer stream.Close()

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	depth := r.cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	tokens := make(chan struct{}, depth)
	jobs := make(chan frame.Source)
	buf := reorder.New[*frame.Rendered](depth)
	var written atomic.Int64
	progress := logging.NewProgressSampler(10)

	g, gctx := errgroup.WithContext(r.ctx)

	g.Go(func() error {
		defer close(jobs)
		for {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			f, err := stream.Next()
			if errors.Is(err, io.EOF) {
				buf.CloseAt(stream.Decoded())
				return nil
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return &services.StageError{Stage: StateProcessing.String(), Frame: stream.Decoded(), Err: err}
			}
			select {
			case jobs <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for f := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := renderOne(f, r.cfg.Columns, cs, renderer, width, height)
				if err != nil {
					return &services.StageError{Stage: StateProcessing.String(), Frame: f.Index, Err: err}
				}
				if err := buf.Put(out.Index, out); err != nil {
					return &services.StageError{Stage: StateProcessing.String(), Frame: f.Index, Err: err}
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		for {
			out, ok, err := buf.Next(gctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := writer.WriteFrame(out.Image); err != nil {
				return &services.StageError{Stage: StateProcessing.String(), Frame: out.Index, Err: err}
			}
			n := written.Add(1)
			<-tokens
			r.reportProgress(progress, n)
		}
	})

	err = g.Wait()
	r.result.Frames = written.Load()
	return err
}

func renderOne(f frame.Source, columns int, cs *charset.Charset, renderer *render.Renderer, width, height int) (*frame.Rendered, error) {
	grid, err := sampler.Sample(f.Image, columns)
	if err != nil {
		return nil, services.Wrap(services.ErrFrameDecode, "processing", "sample", "", err)
	}
	glyphs := glyph.Map(grid, cs)
	out, err := renderer.RenderFrame(f, glyphs, cs, width, height)
	if err != nil {
		if errors.Is(err, render.ErrInvalidDimensions) {
			return nil, services.Wrap(services.ErrInvalidDimensions, "processing", "render", "", err)
		}
		return nil, err
	}
	return out, nil
}

func (r *run) reportProgress(ps *logging.ProgressSampler, frames int64) {
	p := Progress{Frame: frames, Expected: r.result.ExpectedFrames, Elapsed: time.Since(r.started)}
	if r.o.opts.OnProgress != nil {
		r.o.opts.OnProgress(p)
	}
	if !ps.ShouldLog(p.Frame, p.Expected) {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_progress"),
		logging.Int64("frames", p.Frame),
		logging.Int64("expected_frames", p.Expected),
	}
	if p.Expected > 0 {
		attrs = append(attrs, logging.Float64(logging.FieldProgressPercent, math.Round(p.Percent())))
	}
	r.logger.Info("transcode progress", logging.Args(attrs...)...)
}

// warnIllegibleCells flags grids whose cells are too small for readable
// glyphs. The run continues; strokes are still drawn.
func (r *run) warnIllegibleCells() {
	cell := render.CellSize(r.result.Width, r.result.Height, r.result.Rows, r.cfg.Columns)
	if render.Legible(cell) {
		return
	}
	r.logger.Warn("glyph cells too small to read",
		logging.String(logging.FieldEventType, "cells_illegible"),
		logging.Int("cell_width", cell.X),
		logging.Int("cell_height", cell.Y),
		logging.Int("min_cell_width", render.MinLegibleCell.X),
		logging.Int("min_cell_height", render.MinLegibleCell.Y),
		logging.String(logging.FieldImpact, "glyphs are drawn as coarse blocks"),
		logging.String(logging.FieldErrorHint, "lower --columns or raise --width/--height"),
		logging.Alert("cell_size"),
	)
}

func (r *run) checkFrameCount() {
	expected := r.result.ExpectedFrames
	if expected <= 0 {
		return
	}
	if diff := r.result.Frames - expected; diff > 1 || diff < -1 {
		logging.WarnWithContext(r.logger, "frame count differs from duration estimate", "frame_count_mismatch",
			logging.Int64("frames", r.result.Frames),
			logging.Int64("expected_frames", expected),
			logging.String(logging.FieldErrorHint, "source duration metadata may be inaccurate"),
			logging.String(logging.FieldImpact, "output length may differ from the source"),
			logging.Alert("frame_count"),
		)
	}
}

// fail classifies err, moves to Failed, and returns the error handed to the
// caller.
func (r *run) fail(err error) error {
	state := r.o.State()
	if r.ctx.Err() != nil && !errors.Is(err, services.ErrCancelled) {
		err = services.Wrap(services.ErrCancelled, state.String(), "", "run interrupted", err)
	}
	var se *services.StageError
	if !errors.As(err, &se) {
		err = &services.StageError{Stage: state.String(), Frame: -1, Err: err}
	}
	if !state.Terminal() {
		r.o.transition(StateFailed)
	}

	attrs := []logging.Attr{
		logging.Error(err),
		logging.Stage(state.String()),
		logging.Int64("frames", r.result.Frames),
	}
	if stage, frameIndex, ok := services.FailedStage(err); ok && frameIndex >= 0 {
		attrs = append(attrs, logging.Frame(frameIndex), logging.String("failed_stage", stage))
	}
	if errors.Is(err, services.ErrCancelled) {
		r.logger.Info("transcode cancelled", logging.Args(attrs...)...)
	} else {
		logging.ErrorWithContext(r.logger, "transcode failed", "run_failed", attrs...)
	}
	return err
}
