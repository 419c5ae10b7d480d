package frame

import (
	"image"
	"testing"
)

func TestGridIndexing(t *testing.T) {
	lum := NewLuminanceGrid(2, 3)
	lum.Set(1, 2, 0.75)
	if lum.At(1, 2) != 0.75 {
		t.Fatalf("unexpected value %v", lum.At(1, 2))
	}
	if len(lum.Values) != 6 {
		t.Fatalf("expected 6 cells, got %d", len(lum.Values))
	}

	glyphs := NewGlyphGrid(2, 3)
	glyphs.Indices[4] = 7
	if glyphs.At(1, 1) != 7 {
		t.Fatalf("unexpected glyph index %d", glyphs.At(1, 1))
	}
}

func TestSourceDimensions(t *testing.T) {
	src := Source{Image: image.NewGray(image.Rect(0, 0, 4, 3))}
	if src.Width() != 4 || src.Height() != 3 {
		t.Fatalf("unexpected dimensions %dx%d", src.Width(), src.Height())
	}
	if (Source{}).Width() != 0 {
		t.Fatal("expected zero width without an image")
	}
}
