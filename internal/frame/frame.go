// Package frame defines the per-frame values that flow through the transcode
// pipeline: decoded source frames, luminance and glyph grids, rendered rasters,
// and the passthrough audio reference.
package frame

import (
	"image"
	"time"
)

// Source is one decoded raster. Index increases strictly from 0 in
// presentation order.
type Source struct {
	Index     int64
	Timestamp time.Duration
	Image     image.Image
}

// Width returns the raster width in pixels.
func (s Source) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the raster height in pixels.
func (s Source) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// LuminanceGrid holds Rows x Columns normalized luminance values in row-major
// order.
type LuminanceGrid struct {
	Rows    int
	Columns int
	Values  []float64
}

// NewLuminanceGrid allocates a zeroed grid.
func NewLuminanceGrid(rows, columns int) LuminanceGrid {
	return LuminanceGrid{Rows: rows, Columns: columns, Values: make([]float64, rows*columns)}
}

// At returns the value at row r, column c.
func (g LuminanceGrid) At(r, c int) float64 {
	return g.Values[r*g.Columns+c]
}

// Set stores v at row r, column c.
func (g LuminanceGrid) Set(r, c int, v float64) {
	g.Values[r*g.Columns+c] = v
}

// GlyphGrid holds charset indices with the same shape as the luminance grid
// it was mapped from.
type GlyphGrid struct {
	Rows    int
	Columns int
	Indices []int
}

// NewGlyphGrid allocates a zeroed grid.
func NewGlyphGrid(rows, columns int) GlyphGrid {
	return GlyphGrid{Rows: rows, Columns: columns, Indices: make([]int, rows*columns)}
}

// At returns the glyph index at row r, column c.
func (g GlyphGrid) At(r, c int) int {
	return g.Indices[r*g.Columns+c]
}

// Rendered is an output-resolution raster carrying the index and timestamp of
// the source frame it was drawn from.
type Rendered struct {
	Index     int64
	Timestamp time.Duration
	Image     *image.Gray
}

// AudioTrack references the source audio stream. The pipeline forwards it to
// the muxer untouched and never reads its samples.
type AudioTrack struct {
	SourcePath  string
	StreamIndex int
	Codec       string
	Channels    int
}
