package render

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"

	"asciireel/internal/charset"
	"asciireel/internal/frame"
)

// ErrInvalidDimensions reports a non-positive output width or height.
var ErrInvalidDimensions = errors.New("output dimensions must be positive")

// Polarity selects which of background and stroke is dark.
type Polarity int

const (
	// LightOnDark draws white strokes on black.
	LightOnDark Polarity = iota
	// DarkOnLight draws black strokes on white.
	DarkOnLight
)

// ParsePolarity accepts "light_on_dark" and "dark_on_light".
func ParsePolarity(value string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "light_on_dark":
		return LightOnDark, nil
	case "dark_on_light":
		return DarkOnLight, nil
	default:
		return LightOnDark, fmt.Errorf("render polarity: unsupported value %q", value)
	}
}

func (p Polarity) String() string {
	if p == DarkOnLight {
		return "dark_on_light"
	}
	return "light_on_dark"
}

// DefaultThreshold is the coverage level at or above which a pixel is stroke.
const DefaultThreshold uint8 = 128

// MaxShades bounds Options.Shades.
const MaxShades = 256

// MinLegibleCell is the smallest cell, in pixels, whose glyphs stay
// readable. Smaller cells still get ink but lose the letterforms.
var MinLegibleCell = image.Point{X: 6, Y: 13}

// Cells at least this large use the outline font; smaller ones use the
// 7x13 bitmap face resampled into the cell.
var minOutlineCell = image.Point{X: 8, Y: 14}

// Options tunes the renderer.
type Options struct {
	Polarity  Polarity
	Threshold uint8
	// Shades above 1 draws strokes at a gray level quantized from the glyph's
	// position in the charset. 0 and 1 draw monochrome strokes.
	Shades int
}

// CellSize returns the pixel size of one cell when a rows x columns grid is
// drawn on a width x height canvas. Either side may be 0.
func CellSize(width, height, rows, columns int) image.Point {
	if rows < 1 || columns < 1 {
		return image.Point{}
	}
	return image.Point{X: width / columns, Y: height / rows}
}

// Legible reports whether cell is at least MinLegibleCell on both sides.
func Legible(cell image.Point) bool {
	return cell.X >= MinLegibleCell.X && cell.Y >= MinLegibleCell.Y
}

type atlasKey struct {
	width   int
	height  int
	charset string
}

// Renderer draws glyph grids. It is safe for concurrent use.
type Renderer struct {
	font      *truetype.Font
	polarity  Polarity
	threshold uint8
	shades    int

	mu      sync.Mutex
	atlases map[atlasKey]*atlas
}

// New parses the embedded monospace font and returns a Renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Shades < 0 || opts.Shades > MaxShades {
		return nil, fmt.Errorf("render shades: %d outside 0..%d", opts.Shades, MaxShades)
	}
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse glyph font: %w", err)
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Renderer{
		font:      f,
		polarity:  opts.Polarity,
		threshold: threshold,
		shades:    opts.Shades,
		atlases:   make(map[atlasKey]*atlas),
	}, nil
}

// Render draws grid into a width x height raster. Every glyph with ink marks
// at least one pixel of its cell. When cells are narrower or shorter than a
// pixel, each output pixel takes the glyph of the cell under it.
func (r *Renderer) Render(grid frame.GlyphGrid, cs *charset.Charset, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if grid.Rows < 1 || grid.Columns < 1 {
		return nil, fmt.Errorf("%w: glyph grid %dx%d", ErrInvalidDimensions, grid.Columns, grid.Rows)
	}

	bg, _ := r.colors()
	canvas := image.NewGray(image.Rect(0, 0, width, height))
	if bg != 0 {
		for i := range canvas.Pix {
			canvas.Pix[i] = bg
		}
	}

	cell := CellSize(width, height, grid.Rows, grid.Columns)
	if cell.X < 1 || cell.Y < 1 {
		r.renderSubPixel(canvas, grid, cs)
		return canvas, nil
	}
	a := r.atlasFor(cell.X, cell.Y, cs)

	for row := 0; row < grid.Rows; row++ {
		y0 := row * height / grid.Rows
		y1 := (row + 1) * height / grid.Rows
		oy := y0 + (y1-y0-cell.Y)/2
		for col := 0; col < grid.Columns; col++ {
			x0 := col * width / grid.Columns
			x1 := (col + 1) * width / grid.Columns
			ox := x0 + (x1-x0-cell.X)/2
			index := grid.At(row, col)
			mask := a.mask(index)
			if mask == nil {
				continue
			}
			stroke := a.strokes[index]
			for y := 0; y < cell.Y; y++ {
				line := mask[y*cell.X : (y+1)*cell.X]
				offset := canvas.PixOffset(ox, oy+y)
				for x, on := range line {
					if on {
						canvas.Pix[offset+x] = stroke
					}
				}
			}
		}
	}
	return canvas, nil
}

func (r *Renderer) renderSubPixel(canvas *image.Gray, grid frame.GlyphGrid, cs *charset.Charset) {
	a := r.atlasFor(1, 1, cs)
	width, height := canvas.Rect.Dx(), canvas.Rect.Dy()
	for y := 0; y < height; y++ {
		row := (2*y + 1) * grid.Rows / (2 * height)
		for x := 0; x < width; x++ {
			col := (2*x + 1) * grid.Columns / (2 * width)
			index := grid.At(row, col)
			if mask := a.mask(index); mask != nil && mask[0] {
				canvas.Pix[canvas.PixOffset(x, y)] = a.strokes[index]
			}
		}
	}
}

// RenderFrame draws grid and tags the raster with src's index and timestamp.
func (r *Renderer) RenderFrame(src frame.Source, grid frame.GlyphGrid, cs *charset.Charset, width, height int) (*frame.Rendered, error) {
	img, err := r.Render(grid, cs, width, height)
	if err != nil {
		return nil, err
	}
	return &frame.Rendered{Index: src.Index, Timestamp: src.Timestamp, Image: img}, nil
}

func (r *Renderer) colors() (bg, fg uint8) {
	if r.polarity == DarkOnLight {
		return 255, 0
	}
	return 0, 255
}

// strokeLevels returns the stroke value for each of n glyph positions. With
// shading, position i of n sits at brightness i/(n-1), quantized to r.shades
// evenly spaced gray levels.
func (r *Renderer) strokeLevels(n int) []uint8 {
	_, fg := r.colors()
	levels := make([]uint8, n)
	for i := range levels {
		levels[i] = fg
		if r.shades < 2 || n < 2 {
			continue
		}
		steps := float64(r.shades - 1)
		step := math.Round(float64(i) / float64(n-1) * steps)
		levels[i] = uint8(math.Round(step * 255 / steps))
	}
	return levels
}

func (r *Renderer) atlasFor(width, height int, cs *charset.Charset) *atlas {
	key := atlasKey{width: width, height: height, charset: cs.String()}
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.atlases[key]; ok {
		return a
	}
	var a *atlas
	if width >= minOutlineCell.X && height >= minOutlineCell.Y {
		a = buildOutlineAtlas(r.font, cs.Glyphs(), width, height, r.threshold)
	} else {
		a = buildBitmapAtlas(cs.Glyphs(), width, height)
	}
	a.strokes = r.strokeLevels(cs.Len())
	r.atlases[key] = a
	return a
}

type atlas struct {
	masks   [][]bool
	strokes []uint8
}

func (a *atlas) mask(index int) []bool {
	if index < 0 || index >= len(a.masks) {
		return nil
	}
	return a.masks[index]
}

const measureSize = 100.0

func buildOutlineAtlas(f *truetype.Font, glyphs []rune, width, height int, threshold uint8) *atlas {
	face := truetype.NewFace(f, &truetype.Options{
		Size:    fitSize(f, width, height),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()
	baseline := (height-(ascent+descent))/2 + ascent

	a := &atlas{masks: make([][]bool, len(glyphs))}
	for i, g := range glyphs {
		if f.Index(g) == 0 {
			g = '?'
		}
		advance, _ := face.GlyphAdvance(g)
		dst := image.NewGray(image.Rect(0, 0, width, height))
		drawer := font.Drawer{
			Dst:  dst,
			Src:  image.White,
			Face: face,
			Dot:  fixed.P((width-advance.Round())/2, baseline),
		}
		drawer.DrawString(string(g))
		a.masks[i] = binarize(dst.Pix, threshold)
	}
	return a
}

// binarize thresholds coverage. A glyph whose coverage never reaches the
// threshold keeps its strongest pixel.
func binarize(coverage []uint8, threshold uint8) []bool {
	mask := make([]bool, len(coverage))
	peak, peakAt, lit := uint8(0), -1, false
	for p, v := range coverage {
		if v >= threshold {
			mask[p] = true
			lit = true
		}
		if v > peak {
			peak, peakAt = v, p
		}
	}
	if !lit && peakAt >= 0 {
		mask[peakAt] = true
	}
	return mask
}

// buildBitmapAtlas resamples basicfont.Face7x13 glyphs into width x height
// cells. A cell pixel is ink when any bitmap pixel it covers is ink.
func buildBitmapAtlas(glyphs []rune, width, height int) *atlas {
	face := basicfont.Face7x13
	gw, gh := face.Width, face.Ascent+face.Descent

	a := &atlas{masks: make([][]bool, len(glyphs))}
	for i, g := range glyphs {
		if _, ok := face.GlyphAdvance(g); !ok {
			g = '?'
		}
		src := image.NewGray(image.Rect(0, 0, gw, gh))
		drawer := font.Drawer{Dst: src, Src: image.White, Face: face, Dot: fixed.P(0, face.Ascent)}
		drawer.DrawString(string(g))

		mask := make([]bool, width*height)
		for y := 0; y < height; y++ {
			sy0, sy1 := span(y, height, gh)
			for x := 0; x < width; x++ {
				sx0, sx1 := span(x, width, gw)
				mask[y*width+x] = anyInk(src, sx0, sx1, sy0, sy1)
			}
		}
		a.masks[i] = mask
	}
	return a
}

// span maps destination pixel i of n onto the source range it covers in a
// line of size pixels. The range is never empty.
func span(i, n, size int) (int, int) {
	lo := i * size / n
	hi := (i + 1) * size / n
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

func anyInk(src *image.Gray, x0, x1, y0, y1 int) bool {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if src.Pix[src.PixOffset(x, y)] >= 128 {
				return true
			}
		}
	}
	return false
}

// fitSize picks the largest point size at 72 DPI whose advance and line
// height fit inside the cell.
func fitSize(f *truetype.Font, width, height int) float64 {
	probe := truetype.NewFace(f, &truetype.Options{Size: measureSize, DPI: 72})
	defer probe.Close()
	advance, ok := probe.GlyphAdvance('M')
	if !ok || advance <= 0 {
		advance = fixed.I(int(measureSize * 0.6))
	}
	metrics := probe.Metrics()
	lineHeight := metrics.Ascent + metrics.Descent
	if lineHeight <= 0 {
		lineHeight = fixed.I(int(measureSize))
	}
	byWidth := float64(width) * measureSize / (float64(advance) / 64)
	byHeight := float64(height) * measureSize / (float64(lineHeight) / 64)
	size := byWidth
	if byHeight < size {
		size = byHeight
	}
	if size < 1 {
		size = 1
	}
	return size
}
