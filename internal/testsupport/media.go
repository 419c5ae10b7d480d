package testsupport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"asciireel/internal/sink"
	"asciireel/internal/source"
)

// FakeBackend is an in-memory source.Backend.
type FakeBackend struct {
	Meta source.Metadata
	// Count is the number of frames to emit; negative means unbounded.
	Count int64
	// Frame builds frame i. Nil yields solid black frames.
	Frame func(int64) image.Image
	// FailAt makes Read fail at that index when non-negative.
	FailAt   int64
	ProbeErr error

	probes atomic.Int64
	reads  atomic.Int64
	mu     sync.Mutex
	fps    float64
}

// NewFakeBackend returns a backend emitting count frames of meta's size.
func NewFakeBackend(meta source.Metadata, count int64) *FakeBackend {
	return &FakeBackend{Meta: meta, Count: count, FailAt: -1}
}

func (b *FakeBackend) Probe(context.Context, string) (source.Metadata, error) {
	b.probes.Add(1)
	if b.ProbeErr != nil {
		return source.Metadata{}, b.ProbeErr
	}
	return b.Meta, nil
}

func (b *FakeBackend) Decode(ctx context.Context, _ string, meta source.Metadata, fps float64) (source.Reader, error) {
	b.mu.Lock()
	b.fps = fps
	b.mu.Unlock()
	return &fakeReader{ctx: ctx, backend: b, width: meta.Width, height: meta.Height}, nil
}

// Probes reports how many times Probe ran.
func (b *FakeBackend) Probes() int64 { return b.probes.Load() }

// Reads reports how many Read calls the decoder served.
func (b *FakeBackend) Reads() int64 { return b.reads.Load() }

// DecodeFPS returns the rate the last decode was started with.
func (b *FakeBackend) DecodeFPS() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fps
}

type fakeReader struct {
	ctx     context.Context
	backend *FakeBackend
	width   int
	height  int
	next    int64
}

func (r *fakeReader) Read() (image.Image, error) {
	b := r.backend
	b.reads.Add(1)
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if b.FailAt >= 0 && r.next == b.FailAt {
		return nil, fmt.Errorf("corrupt packet at frame %d", r.next)
	}
	if b.Count >= 0 && r.next >= b.Count {
		return nil, io.EOF
	}
	i := r.next
	r.next++
	if b.Frame != nil {
		return b.Frame(i), nil
	}
	return SolidGray(r.width, r.height, 0), nil
}

func (r *fakeReader) Close() error { return nil }

// FakeEncoder is an in-memory sink.Encoder. Open and Mux create their output
// files so workspace commits behave as with a real encoder.
type FakeEncoder struct {
	OpenErr  error
	CloseErr error
	MuxErr   error
	// WriteErrAt fails the write of that frame number when non-negative.
	WriteErrAt int64
	// Gate, when set, blocks every write until it is closed.
	Gate chan struct{}

	mu      sync.Mutex
	jobs    []sink.EncodeJob
	muxes   []sink.MuxJob
	frames  []*image.Gray
	aborted bool
	closed  bool
}

// NewFakeEncoder returns an encoder that accepts everything.
func NewFakeEncoder() *FakeEncoder {
	return &FakeEncoder{WriteErrAt: -1}
}

func (e *FakeEncoder) Open(_ context.Context, job sink.EncodeJob) (sink.VideoWriter, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	if err := os.WriteFile(job.OutputPath, nil, 0o644); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	e.mu.Unlock()
	return &fakeWriter{enc: e, path: job.OutputPath}, nil
}

func (e *FakeEncoder) Mux(_ context.Context, job sink.MuxJob) error {
	e.mu.Lock()
	e.muxes = append(e.muxes, job)
	e.mu.Unlock()
	if e.MuxErr != nil {
		return e.MuxErr
	}
	data, err := os.ReadFile(job.VideoPath)
	if err != nil {
		return err
	}
	if job.Audio != nil {
		data = append(data, []byte("+audio")...)
	}
	return os.WriteFile(job.OutputPath, data, 0o644)
}

// Frames returns the rasters written, in write order.
func (e *FakeEncoder) Frames() []*image.Gray {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*image.Gray(nil), e.frames...)
}

// Jobs returns the encode jobs opened.
func (e *FakeEncoder) Jobs() []sink.EncodeJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sink.EncodeJob(nil), e.jobs...)
}

// Muxes returns the mux jobs requested.
func (e *FakeEncoder) Muxes() []sink.MuxJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sink.MuxJob(nil), e.muxes...)
}

// Aborted reports whether a writer was aborted.
func (e *FakeEncoder) Aborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborted
}

// Closed reports whether a writer was closed cleanly.
func (e *FakeEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeWriter struct {
	enc  *FakeEncoder
	path string
	done bool
}

func (w *fakeWriter) WriteFrame(img *image.Gray) error {
	if w.enc.Gate != nil {
		<-w.enc.Gate
	}
	e := w.enc
	e.mu.Lock()
	defer e.mu.Unlock()
	if w.done {
		return errors.New("write after close")
	}
	if e.WriteErrAt >= 0 && int64(len(e.frames)) == e.WriteErrAt {
		return errors.New("encoder pipe closed")
	}
	cp := image.NewGray(img.Rect)
	copy(cp.Pix, img.Pix)
	e.frames = append(e.frames, cp)
	return nil
}

func (w *fakeWriter) Close() error {
	e := w.enc
	e.mu.Lock()
	w.done = true
	count := len(e.frames)
	closeErr := e.CloseErr
	e.closed = closeErr == nil
	e.mu.Unlock()
	if closeErr != nil {
		return closeErr
	}
	return os.WriteFile(w.path, []byte(fmt.Sprintf("frames=%d", count)), 0o644)
}

func (w *fakeWriter) Abort() {
	e := w.enc
	e.mu.Lock()
	w.done = true
	e.aborted = true
	e.mu.Unlock()
}
