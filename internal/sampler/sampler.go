// Package sampler downsamples decoded frames into coarse luminance grids.
//
// The grid has a caller-chosen column count; the row count follows from the
// frame aspect ratio and CellAspect so that glyphs drawn in tall character
// cells reproduce the source proportions. Sampling is a pure function of the
// frame and the column count.
package sampler

import (
	"errors"
	"image"
	"image/color"
	"math"

	"asciireel/internal/frame"
)

// CellAspect is the height of one character cell divided by its width.
const CellAspect = 2.0

// Rec. 601 luma weights.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

var (
	ErrInvalidColumns = errors.New("columns must be at least 1")
	ErrEmptyFrame     = errors.New("frame has no pixels")
)

// Rows derives the grid row count for a width x height frame sampled into
// columns bands. The result is never below 1.
func Rows(width, height, columns int) int {
	if width <= 0 || height <= 0 || columns < 1 {
		return 1
	}
	rows := int(math.Round(float64(columns) * float64(height) / float64(width) / CellAspect))
	if rows < 1 {
		return 1
	}
	return rows
}

// Luma converts 8-bit RGB channels to normalized luminance.
func Luma(r, g, b uint8) float64 {
	return (weightR*float64(r) + weightG*float64(g) + weightB*float64(b)) / 255
}

// Sample averages the luminance of every pixel in each band/row cell.
func Sample(img image.Image, columns int) (frame.LuminanceGrid, error) {
	if columns < 1 {
		return frame.LuminanceGrid{}, ErrInvalidColumns
	}
	if img == nil || img.Bounds().Empty() {
		return frame.LuminanceGrid{}, ErrEmptyFrame
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rows := Rows(width, height, columns)

	xs := bands(columns, width)
	ys := bands(rows, height)
	luma := lumaFunc(img)

	grid := frame.NewLuminanceGrid(rows, columns)
	for r := 0; r < rows; r++ {
		y0, y1 := ys[r][0], ys[r][1]
		for c := 0; c < columns; c++ {
			x0, x1 := xs[c][0], xs[c][1]
			var sum float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += luma(bounds.Min.X+x, bounds.Min.Y+y)
				}
			}
			mean := sum / float64((x1-x0)*(y1-y0))
			grid.Set(r, c, clamp01(mean))
		}
	}
	return grid, nil
}

// bands splits size pixels into n contiguous [start,end) ranges. Ranges that
// would be empty (n > size) are widened to the nearest single pixel.
func bands(n, size int) [][2]int {
	out := make([][2]int, n)
	for i := 0; i < n; i++ {
		start := i * size / n
		end := (i + 1) * size / n
		if start > size-1 {
			start = size - 1
		}
		if end <= start {
			end = start + 1
		}
		out[i] = [2]int{start, end}
	}
	return out
}

func lumaFunc(img image.Image) func(x, y int) float64 {
	switch src := img.(type) {
	case *image.Gray:
		return func(x, y int) float64 {
			return float64(src.Pix[src.PixOffset(x, y)]) / 255
		}
	case *image.RGBA:
		return func(x, y int) float64 {
			i := src.PixOffset(x, y)
			return Luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		}
	case *image.NRGBA:
		return func(x, y int) float64 {
			i := src.PixOffset(x, y)
			return Luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		}
	default:
		return func(x, y int) float64 {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			return Luma(c.R, c.G, c.B)
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
