package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizePipeline()
	c.normalizeEncoding()
	c.normalizeTools()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

// The charset is kept verbatim: leading spaces are meaningful glyphs.
func (c *Config) normalizeRender() {
	c.Render.Polarity = strings.ToLower(strings.TrimSpace(c.Render.Polarity))
	if c.Render.Polarity == "" {
		c.Render.Polarity = defaultPolarity
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.QueueDepth == 0 {
		c.Pipeline.QueueDepth = defaultQueueDepth
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Codec = strings.TrimSpace(c.Encoding.Codec)
	if c.Encoding.Codec == "" {
		c.Encoding.Codec = defaultCodec
	}
	c.Encoding.Preset = strings.TrimSpace(c.Encoding.Preset)
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = defaultPreset
	}
	c.Encoding.PixelFormat = strings.TrimSpace(c.Encoding.PixelFormat)
	if c.Encoding.PixelFormat == "" {
		c.Encoding.PixelFormat = defaultPixelFormat
	}
	c.Encoding.Tune = strings.TrimSpace(c.Encoding.Tune)
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if value, ok := os.LookupEnv("ASCIIREEL_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = strings.TrimSpace(value)
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if value, ok := os.LookupEnv("ASCIIREEL_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = strings.TrimSpace(value)
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
