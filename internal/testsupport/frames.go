package testsupport

import (
	"image"
	"image/color"
)

// SolidGray returns a width x height frame filled with level.
func SolidGray(width, height int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

// SolidRGBA returns a width x height opaque frame filled with c.
func SolidRGBA(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = 255
	}
	return img
}

// HorizontalGradient returns a frame darkening from white on the left to
// black on the right.
func HorizontalGradient(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			level := 255
			if width > 1 {
				level = 255 - x*255/(width-1)
			}
			img.SetGray(x, y, color.Gray{Y: uint8(level)})
		}
	}
	return img
}

// LevelSequence returns a generator whose frame i is a solid frame with a
// level that cycles through steps evenly spaced values.
func LevelSequence(width, height, steps int) func(int64) image.Image {
	if steps < 2 {
		steps = 2
	}
	return func(i int64) image.Image {
		step := int(i % int64(steps))
		return SolidGray(width, height, uint8(step*255/(steps-1)))
	}
}
