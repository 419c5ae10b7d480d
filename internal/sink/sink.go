// Package sink defines the encoder/muxer capability the pipeline writes to.
package sink

import (
	"context"
	"image"

	"asciireel/internal/frame"
)

// EncodeJob describes the video-only stream an Encoder should produce.
type EncodeJob struct {
	OutputPath string
	Width      int
	Height     int
	FPS        float64
}

// MuxJob combines an encoded video stream with passthrough audio, or with
// the source video stacked above it when Compare is set.
type MuxJob struct {
	VideoPath  string
	SourcePath string
	OutputPath string
	Audio      *frame.AudioTrack
	Compare    bool
	Width      int
}

// VideoWriter accepts rasters in presentation order. Close finalizes the
// stream; Abort discards it.
type VideoWriter interface {
	WriteFrame(img *image.Gray) error
	Close() error
	Abort()
}

// Encoder is the encoder/muxer capability.
type Encoder interface {
	Open(ctx context.Context, job EncodeJob) (VideoWriter, error)
	Mux(ctx context.Context, job MuxJob) error
}

// EvenDimensions rounds width and height up to the next even value, as
// required by 4:2:0 chroma subsampling.
func EvenDimensions(width, height int) (int, int) {
	return width + width%2, height + height%2
}
