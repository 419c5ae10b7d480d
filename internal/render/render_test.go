package render

import (
	"bytes"
	"errors"
	"image"
	"sync"
	"testing"

	"asciireel/internal/charset"
	"asciireel/internal/frame"
)

func uniformGrid(rows, cols, index int) frame.GlyphGrid {
	grid := frame.NewGlyphGrid(rows, cols)
	for i := range grid.Indices {
		grid.Indices[i] = index
	}
	return grid
}

func newRenderer(t *testing.T, opts Options) *Renderer {
	t.Helper()
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return r
}

func TestRenderRejectsInvalidDimensions(t *testing.T) {
	r := newRenderer(t, Options{})
	cs := charset.MustParse("@ ")
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 5}} {
		if _, err := r.Render(uniformGrid(2, 2, 0), cs, dims[0], dims[1]); !errors.Is(err, ErrInvalidDimensions) {
			t.Fatalf("%v: expected ErrInvalidDimensions, got %v", dims, err)
		}
	}
}

func TestRenderProducesRequestedResolution(t *testing.T) {
	r := newRenderer(t, Options{})
	img, err := r.Render(uniformGrid(9, 40, 1), charset.MustParse(" @"), 641, 361)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if img.Bounds().Dx() != 641 || img.Bounds().Dy() != 361 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
}

func TestRenderIsStrictlyMonochrome(t *testing.T) {
	r := newRenderer(t, Options{})
	cs := charset.MustParse(charset.Default)
	grid := frame.NewGlyphGrid(6, 12)
	for i := range grid.Indices {
		grid.Indices[i] = i % cs.Len()
	}
	img, err := r.Render(grid, cs, 240, 144)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for i, v := range img.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d has intermediate value %d", i, v)
		}
	}
}

func TestRenderBlankGlyphLeavesBackground(t *testing.T) {
	r := newRenderer(t, Options{})
	img, err := r.Render(uniformGrid(4, 8, 0), charset.MustParse(" @"), 160, 80)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for i, v := range img.Pix {
		if v != 0 {
			t.Fatalf("expected dark background at %d, got %d", i, v)
		}
	}
}

func TestRenderDenseGlyphDrawsStrokes(t *testing.T) {
	r := newRenderer(t, Options{})
	img, err := r.Render(uniformGrid(4, 8, 1), charset.MustParse(" @"), 160, 80)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	lit := 0
	for _, v := range img.Pix {
		if v == 255 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("expected glyph strokes on the canvas")
	}
	if lit >= len(img.Pix)/2 {
		t.Fatalf("expected strokes to cover less than half the canvas, got %d of %d", lit, len(img.Pix))
	}
}

func TestRenderDarkOnLightInvertsColors(t *testing.T) {
	r := newRenderer(t, Options{Polarity: DarkOnLight})
	img, err := r.Render(uniformGrid(4, 8, 0), charset.MustParse(" @"), 160, 80)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for i, v := range img.Pix {
		if v != 255 {
			t.Fatalf("expected light background at %d, got %d", i, v)
		}
	}
}

func TestRenderSmallCellsKeepEveryInkedGlyph(t *testing.T) {
	r := newRenderer(t, Options{})
	cs := charset.MustParse(charset.Default)
	cases := []struct {
		width, height, rows, cols int
	}{
		{320, 240, 45, 120},
		{426, 240, 34, 120},
		{640, 360, 34, 120},
		{120, 40, 10, 40},
	}
	for _, tc := range cases {
		for index := 1; index < cs.Len(); index++ {
			img, err := r.Render(uniformGrid(tc.rows, tc.cols, index), cs, tc.width, tc.height)
			if err != nil {
				t.Fatalf("Render returned error: %v", err)
			}
			cell := CellSize(tc.width, tc.height, tc.rows, tc.cols)
			for row := 0; row < tc.rows; row++ {
				for col := 0; col < tc.cols; col++ {
					if !cellHasStroke(img, col*tc.width/tc.cols, row*tc.height/tc.rows, cell) {
						t.Fatalf("%dx%d/%d cols: glyph %q blank at row %d col %d", tc.width, tc.height, tc.cols, cs.Glyphs()[index], row, col)
					}
				}
			}
		}
	}
}

func cellHasStroke(img *image.Gray, x0, y0 int, cell image.Point) bool {
	for y := y0; y < y0+cell.Y; y++ {
		for x := x0; x < x0+cell.X; x++ {
			if img.GrayAt(x, y).Y == 255 {
				return true
			}
		}
	}
	return false
}

func TestRenderSubPixelCellsTakeGlyphUnderPixel(t *testing.T) {
	r := newRenderer(t, Options{})
	cs := charset.MustParse("@ ")

	dense, err := r.Render(uniformGrid(5, 10, 0), cs, 1, 1)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if len(dense.Pix) != 1 || dense.Pix[0] != 255 {
		t.Fatalf("expected dense glyph to light the pixel, got %v", dense.Pix)
	}

	blank, err := r.Render(uniformGrid(5, 10, 1), cs, 1, 1)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if blank.Pix[0] != 0 {
		t.Fatalf("expected blank glyph to keep background, got %v", blank.Pix)
	}

	grid := frame.NewGlyphGrid(1, 10)
	for col := 5; col < 10; col++ {
		grid.Indices[col] = 1
	}
	split, err := r.Render(grid, cs, 4, 1)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := []uint8{255, 255, 0, 0}; !bytes.Equal(split.Pix, want) {
		t.Fatalf("expected %v, got %v", want, split.Pix)
	}
}

func TestLegible(t *testing.T) {
	if Legible(CellSize(320, 240, 45, 120)) {
		t.Fatal("expected 2x5 cells to be reported illegible")
	}
	if !Legible(CellSize(1280, 720, 34, 120)) {
		t.Fatal("expected 10x21 cells to be legible")
	}
	if got := CellSize(100, 100, 0, 10); got != (image.Point{}) {
		t.Fatalf("expected zero cell for empty grid, got %v", got)
	}
}

func TestRenderShadesQuantizeStrokes(t *testing.T) {
	cs := charset.MustParse(" .:-=+*#%@")
	r := newRenderer(t, Options{Shades: 4})
	want := []uint8{0, 0, 85, 85, 85, 170, 170, 170, 255, 255}
	var got []uint8
	for index := 0; index < cs.Len(); index++ {
		img, err := r.Render(uniformGrid(2, 4, index), cs, 64, 64)
		if err != nil {
			t.Fatalf("Render returned error: %v", err)
		}
		got = append(got, maxPixel(img))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected stroke levels %v, got %v", want, got)
	}
}

func TestRenderTwoShadesIsBlackAndWhite(t *testing.T) {
	cs := charset.MustParse("@#:.")
	r := newRenderer(t, Options{Shades: 2, Polarity: DarkOnLight})
	for index, want := range []uint8{0, 0, 255, 255} {
		img, err := r.Render(uniformGrid(2, 4, index), cs, 64, 64)
		if err != nil {
			t.Fatalf("Render returned error: %v", err)
		}
		for _, v := range img.Pix {
			if v != 255 && v != want {
				t.Fatalf("glyph %d: unexpected pixel %d", index, v)
			}
		}
	}
}

func TestNewRejectsShadesOutOfRange(t *testing.T) {
	for _, shades := range []int{-1, MaxShades + 1} {
		if _, err := New(Options{Shades: shades}); err == nil {
			t.Fatalf("expected error for shades %d", shades)
		}
	}
}

func maxPixel(img *image.Gray) uint8 {
	var peak uint8
	for _, v := range img.Pix {
		if v > peak {
			peak = v
		}
	}
	return peak
}

func TestRenderIsDeterministicAcrossGoroutines(t *testing.T) {
	r := newRenderer(t, Options{})
	cs := charset.MustParse(charset.Default)
	grid := frame.NewGlyphGrid(10, 20)
	for i := range grid.Indices {
		grid.Indices[i] = (i * 7) % cs.Len()
	}
	want, err := r.Render(grid, cs, 320, 200)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Render(grid, cs, 320, 200)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got.Pix, want.Pix) {
				errs <- errors.New("render output differs between calls")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestRenderFrameCarriesIndex(t *testing.T) {
	r := newRenderer(t, Options{})
	src := frame.Source{Index: 7, Timestamp: 280}
	out, err := r.RenderFrame(src, uniformGrid(1, 1, 0), charset.MustParse("#"), 8, 16)
	if err != nil {
		t.Fatalf("RenderFrame returned error: %v", err)
	}
	if out.Index != 7 || out.Timestamp != 280 {
		t.Fatalf("unexpected frame identity %d %v", out.Index, out.Timestamp)
	}
}

func TestParsePolarity(t *testing.T) {
	if p, err := ParsePolarity("Dark_On_Light"); err != nil || p != DarkOnLight {
		t.Fatalf("unexpected result %v %v", p, err)
	}
	if p, err := ParsePolarity(""); err != nil || p != LightOnDark {
		t.Fatalf("unexpected default %v %v", p, err)
	}
	if _, err := ParsePolarity("sepia"); err == nil {
		t.Fatal("expected error for unsupported polarity")
	}
}
