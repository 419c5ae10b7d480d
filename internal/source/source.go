// Package source bridges the pipeline to an external decoder/prober.
//
// A Backend reports container metadata and produces raw frames at a requested
// sampling rate. Source wraps a Backend for one input file: Open probes it,
// Metadata returns what was found, and Frames hands out a single Stream that
// numbers frames and stamps timestamps in presentation order.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"asciireel/internal/frame"
	"asciireel/internal/services"
)

// ErrStreamConsumed reports a second call to Frames on the same Source.
var ErrStreamConsumed = errors.New("frame stream already consumed")

// Metadata describes the probed source container.
type Metadata struct {
	Width    int
	Height   int
	FPS      float64
	Duration time.Duration
	HasAudio bool
	Audio    *frame.AudioTrack
}

// ExpectedFrames returns round(duration * fps), the number of frames a
// complete decode at fps should yield.
func (m Metadata) ExpectedFrames(fps float64) int64 {
	if fps <= 0 {
		fps = m.FPS
	}
	if fps <= 0 || m.Duration <= 0 {
		return 0
	}
	return int64(math.Round(m.Duration.Seconds() * fps))
}

// Reader yields decoded rasters in presentation order. Read returns io.EOF
// after the last frame.
type Reader interface {
	Read() (image.Image, error)
	Close() error
}

// Backend is the decoder/prober capability.
type Backend interface {
	Probe(ctx context.Context, path string) (Metadata, error)
	Decode(ctx context.Context, path string, meta Metadata, fps float64) (Reader, error)
}

// Source is one opened input.
type Source struct {
	path     string
	backend  Backend
	meta     Metadata
	consumed atomic.Bool
}

// Open probes path through backend. Failures are reported as
// services.ErrUnreadableSource; a missing tool additionally matches
// services.ErrToolUnavailable.
func Open(ctx context.Context, backend Backend, path string) (*Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrUnreadableSource, "probing", "open", "empty input path", nil)
	}
	if backend == nil {
		return nil, services.Wrap(services.ErrToolUnavailable, "probing", "open", "no decoder configured", nil)
	}
	meta, err := backend.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, services.ErrUnreadableSource) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrUnreadableSource, "probing", "open", path, err)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, services.Wrap(services.ErrUnreadableSource, "probing", "open",
			fmt.Sprintf("invalid resolution %dx%d", meta.Width, meta.Height), nil)
	}
	if meta.FPS <= 0 || math.IsNaN(meta.FPS) || math.IsInf(meta.FPS, 0) {
		return nil, services.Wrap(services.ErrUnreadableSource, "probing", "open",
			fmt.Sprintf("invalid frame rate %v", meta.FPS), nil)
	}
	meta.HasAudio = meta.Audio != nil
	return &Source{path: path, backend: backend, meta: meta}, nil
}

// Path returns the input path.
func (s *Source) Path() string {
	return s.path
}

// Metadata returns the probed container metadata.
func (s *Source) Metadata() Metadata {
	return s.meta
}

// Frames starts decoding at targetFPS, or at the source rate when targetFPS
// is not positive. It may be called once.
func (s *Source) Frames(ctx context.Context, targetFPS float64) (*Stream, error) {
	if !s.consumed.CompareAndSwap(false, true) {
		return nil, ErrStreamConsumed
	}
	fps := targetFPS
	if fps <= 0 {
		fps = s.meta.FPS
	}
	reader, err := s.backend.Decode(ctx, s.path, s.meta, fps)
	if err != nil {
		if errors.Is(err, services.ErrToolUnavailable) || errors.Is(err, services.ErrUnreadableSource) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrUnreadableSource, "processing", "decode", s.path, err)
	}
	return &Stream{reader: reader, fps: fps}, nil
}

// Stream is the finite frame sequence of one decode. It is not safe for
// concurrent use.
type Stream struct {
	reader Reader
	fps    float64
	next   int64
	err    error
	closed bool
}

// FPS returns the rate frames are sampled at.
func (st *Stream) FPS() float64 {
	return st.fps
}

// Next returns the next frame. It returns io.EOF at a clean end of stream and
// a *services.FrameDecodeError when the decoder fails midway. Both are sticky.
func (st *Stream) Next() (frame.Source, error) {
	if st.err != nil {
		return frame.Source{}, st.err
	}
	img, err := st.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			st.err = io.EOF
		} else {
			st.err = &services.FrameDecodeError{LastGoodFrame: st.next - 1, Err: err}
		}
		return frame.Source{}, st.err
	}
	if img == nil || img.Bounds().Empty() {
		st.err = &services.FrameDecodeError{LastGoodFrame: st.next - 1, Err: errors.New("decoder returned an empty frame")}
		return frame.Source{}, st.err
	}
	src := frame.Source{
		Index:     st.next,
		Timestamp: time.Duration(math.Round(float64(st.next) * float64(time.Second) / st.fps)),
		Image:     img,
	}
	st.next++
	return src, nil
}

// Decoded reports how many frames Next has returned.
func (st *Stream) Decoded() int64 {
	return st.next
}

// Close stops the decoder.
func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	return st.reader.Close()
}
