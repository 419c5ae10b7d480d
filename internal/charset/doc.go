// Package charset holds the ordered glyph palette used to draw ASCII art.
//
// A Charset is immutable once built: index 0 is the darkest glyph and the last
// index is the lightest. Duplicate glyphs at different positions are allowed
// because only ordering carries meaning. Construction fails with ErrEmpty when
// no glyphs are supplied; lookups past the end fail with ErrIndexOutOfRange.
package charset
