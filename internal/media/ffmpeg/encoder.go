package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"asciireel/internal/logging"
	"asciireel/internal/services"
	"asciireel/internal/sink"
)

// EncoderOptions carries the video encoding settings.
type EncoderOptions struct {
	Binary      string
	Codec       string
	Preset      string
	CRF         int
	PixelFormat string
	Tune        string
}

// Encoder encodes rendered frames and muxes the final container.
type Encoder struct {
	opts   EncoderOptions
	logger *slog.Logger
}

// NewEncoder fills empty options with the libx264 defaults.
func NewEncoder(opts EncoderOptions, logger *slog.Logger) *Encoder {
	opts.Binary = binaryOrDefault(opts.Binary, "ffmpeg")
	opts.Codec = binaryOrDefault(opts.Codec, "libx264")
	opts.Preset = binaryOrDefault(opts.Preset, "veryfast")
	opts.PixelFormat = binaryOrDefault(opts.PixelFormat, "yuv420p")
	if opts.CRF <= 0 {
		opts.CRF = 18
	}
	return &Encoder{opts: opts, logger: logging.NewComponentLogger(logger, "encoder")}
}

func (e *Encoder) codecArgs() []string {
	args := []string{"-c:v", e.opts.Codec}
	if e.opts.Preset != "" {
		args = append(args, "-preset", e.opts.Preset)
	}
	args = append(args, "-crf", strconv.Itoa(e.opts.CRF), "-pix_fmt", e.opts.PixelFormat)
	if tune := strings.TrimSpace(e.opts.Tune); tune != "" {
		args = append(args, "-tune", tune)
	}
	return args
}

// Open starts an encode reading width x height grayscale frames from stdin.
// Odd dimensions are padded to even ones.
func (e *Encoder) Open(ctx context.Context, job sink.EncodeJob) (sink.VideoWriter, error) {
	if job.Width <= 0 || job.Height <= 0 {
		return nil, services.Wrap(services.ErrInvalidDimensions, "processing", "encode",
			fmt.Sprintf("output resolution %dx%d", job.Width, job.Height), nil)
	}
	if job.FPS <= 0 {
		return nil, services.Wrap(services.ErrInvalidConfig, "processing", "encode", "output fps must be positive", nil)
	}
	args := []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-s", strconv.Itoa(job.Width) + "x" + strconv.Itoa(job.Height),
		"-framerate", formatRate(job.FPS),
		"-i", "-",
	}
	if w, h := sink.EvenDimensions(job.Width, job.Height); w != job.Width || h != job.Height {
		args = append(args, "-vf", fmt.Sprintf("pad=%d:%d:0:0:black", w, h))
	}
	args = append(args, e.codecArgs()...)
	args = append(args, "-an", job.OutputPath)

	cmd := commandContext(ctx, e.opts.Binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, toolError("processing", e.opts.Binary, err, "")
	}
	e.logger.Debug("encoder started",
		logging.String("output", job.OutputPath),
		logging.Int("width", job.Width),
		logging.Int("height", job.Height),
		logging.Float64("fps", job.FPS),
	)
	return &videoWriter{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		width:  job.Width,
		height: job.Height,
		binary: e.opts.Binary,
	}, nil
}

type videoWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	width  int
	height int
	binary string
	done   bool
}

func (w *videoWriter) WriteFrame(img *image.Gray) error {
	if w.done {
		return services.Wrap(services.ErrExternalTool, "processing", "encode", "writer already closed", nil)
	}
	if img == nil || img.Rect.Dx() != w.width || img.Rect.Dy() != w.height {
		return services.Wrap(services.ErrInvalidDimensions, "processing", "encode", "frame size does not match encoder", nil)
	}
	for y := 0; y < w.height; y++ {
		start := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		if _, err := w.stdin.Write(img.Pix[start : start+w.width]); err != nil {
			return toolError("processing", w.binary, err, w.stderr.String())
		}
	}
	return nil
}

func (w *videoWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	closeErr := w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return toolError("processing", w.binary, err, w.stderr.String())
	}
	if closeErr != nil {
		return toolError("processing", w.binary, closeErr, "")
	}
	return nil
}

func (w *videoWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
}

// Mux writes job.OutputPath from the encoded video plus the source audio
// stream copied as-is. With Compare set, the source video is scaled to the
// ASCII width and stacked above it.
func (e *Encoder) Mux(ctx context.Context, job sink.MuxJob) error {
	args := []string{"-y", "-v", "error", "-i", job.VideoPath}
	needSource := job.Audio != nil || job.Compare
	if needSource {
		src := job.SourcePath
		if src == "" && job.Audio != nil {
			src = job.Audio.SourcePath
		}
		args = append(args, "-i", src)
	}

	if job.Compare {
		width := job.Width
		if width <= 0 {
			return services.Wrap(services.ErrInvalidDimensions, "muxing", "compare", "comparison width must be positive", nil)
		}
		filter := fmt.Sprintf("[1:v:0]scale=%d:-2[src];[src][0:v:0]vstack=inputs=2[v]", width)
		args = append(args, "-filter_complex", filter, "-map", "[v]")
		args = append(args, e.codecArgs()...)
	} else {
		args = append(args, "-map", "0:v:0", "-c:v", "copy")
	}
	if job.Audio != nil {
		args = append(args, "-map", fmt.Sprintf("1:%d", job.Audio.StreamIndex), "-c:a", "copy", "-shortest")
	}
	args = append(args, job.OutputPath)

	cmd := commandContext(ctx, e.opts.Binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "muxing", "ffmpeg", "interrupted", ctx.Err())
		}
		return toolError("muxing", e.opts.Binary, err, strings.TrimSpace(string(output)))
	}
	e.logger.Debug("mux complete",
		logging.String("output", job.OutputPath),
		logging.Bool("audio", job.Audio != nil),
		logging.Bool("compare", job.Compare),
	)
	return nil
}

var _ sink.Encoder = (*Encoder)(nil)
