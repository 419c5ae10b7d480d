package charset

import (
	"errors"
	"fmt"
)

var (
	// ErrEmpty reports a charset built from zero glyphs.
	ErrEmpty = errors.New("charset is empty")
	// ErrIndexOutOfRange reports a glyph lookup past the end of the charset.
	ErrIndexOutOfRange = errors.New("glyph index out of range")
)

// Default runs from a blank cell to the densest glyph, which suits light
// strokes drawn on a dark background.
const Default = " .:-=+*#%@"

// Charset is an ordered, read-only sequence of glyphs from darkest to lightest.
type Charset struct {
	glyphs []rune
}

// New copies glyphs into a Charset.
func New(glyphs []rune) (*Charset, error) {
	if len(glyphs) == 0 {
		return nil, ErrEmpty
	}
	return &Charset{glyphs: append([]rune(nil), glyphs...)}, nil
}

// Parse builds a Charset from the runes of value, in order.
func Parse(value string) (*Charset, error) {
	return New([]rune(value))
}

// MustParse is Parse for package-level defaults and tests.
func MustParse(value string) *Charset {
	cs, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return cs
}

// Len returns the glyph count.
func (c *Charset) Len() int {
	if c == nil {
		return 0
	}
	return len(c.glyphs)
}

// GlyphAt returns the glyph stored at index.
func (c *Charset) GlyphAt(index int) (rune, error) {
	if index < 0 || index >= c.Len() {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, c.Len())
	}
	return c.glyphs[index], nil
}

// Darkest returns the glyph at index 0.
func (c *Charset) Darkest() rune {
	return c.glyphs[0]
}

// Lightest returns the glyph at the last index.
func (c *Charset) Lightest() rune {
	return c.glyphs[len(c.glyphs)-1]
}

// Glyphs returns a copy of the ordered glyphs.
func (c *Charset) Glyphs() []rune {
	if c == nil {
		return nil
	}
	return append([]rune(nil), c.glyphs...)
}

// String returns the glyphs as a string.
func (c *Charset) String() string {
	if c == nil {
		return ""
	}
	return string(c.glyphs)
}
