// Package config loads, normalizes, and validates asciireel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the ASCIIREEL_FFMPEG and
// ASCIIREEL_FFPROBE environment fallbacks. Command-line flags are layered on
// top by the CLI; the conversion core never reads this package directly.
package config
