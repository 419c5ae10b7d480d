package sampler

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"asciireel/internal/testsupport"
)

func TestRowsNeverBelowOne(t *testing.T) {
	cases := []struct {
		w, h, cols int
	}{
		{1920, 1080, 1},
		{4000, 10, 80},
		{1, 1, 1},
		{1, 1, 10},
		{0, 0, 10},
	}
	for _, tc := range cases {
		if rows := Rows(tc.w, tc.h, tc.cols); rows < 1 {
			t.Fatalf("Rows(%d,%d,%d) = %d", tc.w, tc.h, tc.cols, rows)
		}
	}
}

func TestRowsPreserveAspectRatio(t *testing.T) {
	sizes := [][2]int{{1920, 1080}, {1080, 1920}, {640, 480}, {300, 300}, {2560, 1080}, {123, 457}}
	for _, size := range sizes {
		for _, cols := range []int{40, 80, 120, 200} {
			w, h := size[0], size[1]
			rows := Rows(w, h, cols)
			source := float64(h) / float64(w)
			effective := float64(rows) * CellAspect / float64(cols)
			tolerance := CellAspect/(2*float64(cols)) + 1e-9
			if math.Abs(effective-source) > tolerance {
				t.Fatalf("%dx%d cols=%d: effective aspect %.4f vs source %.4f (rows=%d)", w, h, cols, effective, source, rows)
			}
		}
	}
}

func TestRowsMatchesFormula(t *testing.T) {
	if got := Rows(1920, 1080, 120); got != 34 {
		t.Fatalf("expected 34 rows for 1080p at 120 columns, got %d", got)
	}
	if got := Rows(1, 1, 10); got != 5 {
		t.Fatalf("expected 5 rows for square 1px frame at 10 columns, got %d", got)
	}
}

func TestSampleExtremes(t *testing.T) {
	black, err := Sample(testsupport.SolidRGBA(1, 1, color.RGBA{A: 255}), 10)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	white, err := Sample(testsupport.SolidRGBA(1, 1, color.RGBA{255, 255, 255, 255}), 10)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if black.Columns != 10 || black.Rows != 5 {
		t.Fatalf("unexpected grid shape %dx%d", black.Rows, black.Columns)
	}
	for i := range black.Values {
		if black.Values[i] != 0 {
			t.Fatalf("expected black cell 0, got %v", black.Values[i])
		}
		if math.Abs(white.Values[i]-1) > 1e-12 {
			t.Fatalf("expected white cell 1, got %v", white.Values[i])
		}
	}
}

func TestSampleAveragesCells(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	// left half 0 and 255 alternating, right half 255
	img.Pix = []byte{
		0, 255, 255, 255,
		255, 0, 255, 255,
	}
	grid, err := Sample(img, 2)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if grid.Rows != 1 {
		t.Fatalf("expected 1 row, got %d", grid.Rows)
	}
	if math.Abs(grid.At(0, 0)-0.5) > 1e-12 {
		t.Fatalf("expected left cell 0.5, got %v", grid.At(0, 0))
	}
	if grid.At(0, 1) != 1 {
		t.Fatalf("expected right cell 1, got %v", grid.At(0, 1))
	}
}

func TestSampleUsesPerceptualWeights(t *testing.T) {
	red, err := Sample(testsupport.SolidRGBA(2, 2, color.RGBA{R: 255, A: 255}), 1)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	green, err := Sample(testsupport.SolidRGBA(2, 2, color.RGBA{G: 255, A: 255}), 1)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	if math.Abs(red.Values[0]-0.299) > 1e-9 || math.Abs(green.Values[0]-0.587) > 1e-9 {
		t.Fatalf("unexpected weights red=%v green=%v", red.Values[0], green.Values[0])
	}
}

func TestSampleGradientDarkensAcrossColumns(t *testing.T) {
	grid, err := Sample(testsupport.HorizontalGradient(64, 32), 8)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for r := 0; r < grid.Rows; r++ {
		for c := 1; c < grid.Columns; c++ {
			if grid.At(r, c) >= grid.At(r, c-1) {
				t.Fatalf("row %d: column %d (%v) not darker than column %d (%v)", r, c, grid.At(r, c), c-1, grid.At(r, c-1))
			}
		}
	}
}

func TestSampleIsDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 97, 53))
	for i := range img.Pix {
		img.Pix[i] = byte((i * 31) % 251)
	}
	first, err := Sample(img, 23)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	second, err := Sample(img, 23)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	for i := range first.Values {
		if math.Float64bits(first.Values[i]) != math.Float64bits(second.Values[i]) {
			t.Fatalf("cell %d differs between runs", i)
		}
	}
}

func TestSampleGenericImageMatchesFastPath(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range rgba.Pix {
		rgba.Pix[i] = byte(i * 7)
		if i%4 == 3 {
			rgba.Pix[i] = 255
		}
	}
	paletted := image.NewPaletted(rgba.Bounds(), nil)
	palette := color.Palette{}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			palette = append(palette, rgba.RGBAAt(x, y))
		}
	}
	paletted.Palette = palette
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			paletted.SetColorIndex(x, y, uint8(y*8+x))
		}
	}
	fast, err := Sample(rgba, 4)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	slow, err := Sample(paletted, 4)
	if err != nil {
		t.Fatalf("Sample returned error: %v", err)
	}
	for i := range fast.Values {
		if math.Abs(fast.Values[i]-slow.Values[i]) > 1e-9 {
			t.Fatalf("cell %d: fast %v generic %v", i, fast.Values[i], slow.Values[i])
		}
	}
}

func TestSampleRejectsBadInput(t *testing.T) {
	if _, err := Sample(image.NewGray(image.Rect(0, 0, 2, 2)), 0); !errors.Is(err, ErrInvalidColumns) {
		t.Fatalf("expected ErrInvalidColumns, got %v", err)
	}
	if _, err := Sample(image.NewGray(image.Rect(0, 0, 0, 0)), 4); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}
