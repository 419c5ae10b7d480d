package pipeline

import (
	"fmt"
	"strings"

	"asciireel/internal/charset"
	"asciireel/internal/render"
	"asciireel/internal/services"
)

// DefaultQueueDepth bounds in-flight frames when Config.QueueDepth is unset.
const DefaultQueueDepth = 32

// Config is the validated input of one run. It is read-only once Run starts.
type Config struct {
	InputPath  string
	OutputPath string
	Columns    int
	// FPS overrides the source frame rate when positive.
	FPS     float64
	Charset string
	// OutputWidth and OutputHeight default to the source resolution.
	OutputWidth  int
	OutputHeight int
	Polarity     render.Polarity
	// Shades above 1 draws strokes in that many gray levels.
	Shades     int
	Workers    int
	QueueDepth int
	Compare    bool
}

// Validate checks the run configuration and returns the parsed charset.
// Every failure matches services.ErrInvalidConfig, except a negative output
// size, which matches services.ErrInvalidDimensions.
func (c Config) Validate() (*charset.Charset, error) {
	if strings.TrimSpace(c.InputPath) == "" {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate", "input path is required", nil)
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate", "output path is required", nil)
	}
	if c.Columns < 1 {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate",
			fmt.Sprintf("columns must be at least 1, got %d", c.Columns), nil)
	}
	if c.FPS < 0 {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate",
			fmt.Sprintf("fps must not be negative, got %v", c.FPS), nil)
	}
	if c.OutputWidth < 0 || c.OutputHeight < 0 {
		return nil, services.Wrap(services.ErrInvalidDimensions, "probing", "validate",
			fmt.Sprintf("output size %dx%d", c.OutputWidth, c.OutputHeight), nil)
	}
	if c.Shades < 0 || c.Shades > render.MaxShades {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate",
			fmt.Sprintf("shades must be between 0 and %d, got %d", render.MaxShades, c.Shades), nil)
	}
	if c.Workers < 0 || c.QueueDepth < 0 {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate", "workers and queue depth must not be negative", nil)
	}
	cs, err := charset.Parse(c.Charset)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidConfig, "probing", "validate", "charset", err)
	}
	return cs, nil
}
