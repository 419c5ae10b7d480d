// Package render rasterizes glyph grids into monochrome frames.
//
// The output canvas is divided into rows x columns cells and each cell gets
// its glyph drawn centered. Cells of at least 8x14 pixels use the Go Mono
// face rasterized through freetype; smaller cells resample the 7x13 bitmap
// face so strokes survive. Coverage is binarized against a fixed threshold,
// and a glyph with any ink always keeps at least one stroke pixel. Strokes
// are a single color unless Options.Shades asks for gray levels.
//
// Glyph masks are cached per cell size and charset, which keeps Render cheap
// and safe to call from many workers.
package render
