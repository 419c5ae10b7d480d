package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"time"

	"asciireel/internal/frame"
	"asciireel/internal/logging"
	"asciireel/internal/media/ffprobe"
	"asciireel/internal/services"
	"asciireel/internal/source"
)

var inspectMedia = ffprobe.Inspect

// Decoder probes and decodes sources with ffprobe and ffmpeg.
type Decoder struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewDecoder returns a Decoder using the given binaries, defaulting to
// "ffmpeg" and "ffprobe" on PATH.
func NewDecoder(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Decoder {
	return &Decoder{
		ffmpeg:  binaryOrDefault(ffmpegBinary, "ffmpeg"),
		ffprobe: binaryOrDefault(ffprobeBinary, "ffprobe"),
		logger:  logging.NewComponentLogger(logger, "decoder"),
	}
}

// Probe reads resolution, frame rate, duration, and the first audio stream.
func (d *Decoder) Probe(ctx context.Context, path string) (source.Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return source.Metadata{}, services.Wrap(services.ErrUnreadableSource, "probing", "stat", path, err)
	}
	result, err := inspectMedia(ctx, d.ffprobe, path)
	if err != nil {
		if isMissingBinary(err) {
			return source.Metadata{}, services.Wrap(services.ErrToolUnavailable, "probing", d.ffprobe, "binary not found", err)
		}
		if ctx.Err() != nil {
			return source.Metadata{}, services.Wrap(services.ErrCancelled, "probing", "ffprobe", "interrupted", ctx.Err())
		}
		return source.Metadata{}, services.Wrap(services.ErrUnreadableSource, "probing", "ffprobe", path, err)
	}

	video, ok := result.VideoStream()
	if !ok {
		return source.Metadata{}, services.Wrap(services.ErrUnreadableSource, "probing", "ffprobe", "no video stream", nil)
	}
	fps := video.FrameRate()
	if fps <= 0 {
		return source.Metadata{}, services.Wrap(services.ErrUnreadableSource, "probing", "ffprobe",
			fmt.Sprintf("unparseable frame rate %q", video.RFrameRate), nil)
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		seconds = video.DurationSeconds()
	}
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}

	meta := source.Metadata{
		Width:    video.Width,
		Height:   video.Height,
		FPS:      fps,
		Duration: time.Duration(seconds * float64(time.Second)),
	}
	if audio, ok := result.AudioStream(); ok {
		meta.HasAudio = true
		meta.Audio = &frame.AudioTrack{
			SourcePath:  path,
			StreamIndex: audio.Index,
			Codec:       audio.CodecName,
			Channels:    audio.Channels,
		}
	}

	d.logger.Debug("source probed",
		logging.String("path", path),
		logging.Int("width", meta.Width),
		logging.Int("height", meta.Height),
		logging.Float64("fps", meta.FPS),
		logging.Duration("duration", meta.Duration),
		logging.Bool("has_audio", meta.HasAudio),
	)
	return meta, nil
}

// Decode starts ffmpeg emitting RGBA frames of meta's resolution at fps.
func (d *Decoder) Decode(ctx context.Context, path string, meta source.Metadata, fps float64) (source.Reader, error) {
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, services.Wrap(services.ErrInvalidDimensions, "processing", "decode",
			fmt.Sprintf("source resolution %dx%d", meta.Width, meta.Height), nil)
	}
	args := []string{
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-vf", "fps=" + formatRate(fps),
		"-s", strconv.Itoa(meta.Width) + "x" + strconv.Itoa(meta.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	cmd := commandContext(ctx, d.ffmpeg, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, toolError("processing", d.ffmpeg, err, "")
	}
	d.logger.Debug("decoder started",
		logging.String("path", path),
		logging.Float64("fps", fps),
	)
	frameSize := meta.Width * meta.Height * 4
	return &frameReader{
		ctx:    ctx,
		cmd:    cmd,
		stdout: bufio.NewReaderSize(stdout, frameSize),
		stderr: stderr,
		rect:   image.Rect(0, 0, meta.Width, meta.Height),
	}, nil
}

type frameReader struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *tailBuffer
	rect   image.Rectangle
	done   bool
}

func (r *frameReader) Read() (image.Image, error) {
	if r.done {
		return nil, io.EOF
	}
	img := image.NewRGBA(r.rect)
	_, err := io.ReadFull(r.stdout, img.Pix)
	if err == nil {
		return img, nil
	}

	r.done = true
	waitErr := r.cmd.Wait()
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	switch {
	case errors.Is(err, io.EOF) && waitErr == nil:
		return nil, io.EOF
	case waitErr != nil:
		return nil, toolError("processing", "ffmpeg", waitErr, r.stderr.String())
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errors.New("decoder output ended inside a frame")
	default:
		return nil, err
	}
}

func (r *frameReader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	return nil
}

var _ source.Backend = (*Decoder)(nil)
