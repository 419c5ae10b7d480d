// Package glyph quantizes luminance grids into charset indices.
package glyph

import (
	"math"

	"asciireel/internal/charset"
	"asciireel/internal/frame"
)

// Index maps luminance v in [0,1] onto one of n glyphs with round-to-nearest,
// so 0 selects index 0 and 1 selects n-1. Out-of-range values clamp and NaN
// maps to the darkest glyph.
func Index(v float64, n int) int {
	if n <= 1 || math.IsNaN(v) {
		return 0
	}
	idx := int(math.Floor(v*float64(n-1) + 0.5))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// Map converts every cell of grid to a glyph index into cs.
func Map(grid frame.LuminanceGrid, cs *charset.Charset) frame.GlyphGrid {
	out := frame.NewGlyphGrid(grid.Rows, grid.Columns)
	n := cs.Len()
	for i, v := range grid.Values {
		out.Indices[i] = Index(v, n)
	}
	return out
}

// Text renders the glyph grid as newline-separated rows of glyphs.
func Text(grid frame.GlyphGrid, cs *charset.Charset) string {
	runes := make([]rune, 0, (grid.Columns+1)*grid.Rows)
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Columns; c++ {
			g, err := cs.GlyphAt(grid.At(r, c))
			if err != nil {
				g = '?'
			}
			runes = append(runes, g)
		}
		if r < grid.Rows-1 {
			runes = append(runes, '\n')
		}
	}
	return string(runes)
}
