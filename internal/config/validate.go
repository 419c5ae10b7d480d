package config

import (
	"errors"
	"fmt"
	"net/url"

	"asciireel/internal/charset"
	"asciireel/internal/render"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRender() error {
	if c.Render.Columns < 1 {
		return fmt.Errorf("render.columns must be at least 1, got %d", c.Render.Columns)
	}
	if _, err := charset.Parse(c.Render.Charset); err != nil {
		return fmt.Errorf("render.charset: %w", err)
	}
	if c.Render.FPS < 0 {
		return fmt.Errorf("render.fps must not be negative, got %v", c.Render.FPS)
	}
	if c.Render.OutputWidth < 0 || c.Render.OutputHeight < 0 {
		return fmt.Errorf("render.output_width and render.output_height must not be negative")
	}
	if _, err := render.ParsePolarity(c.Render.Polarity); err != nil {
		return fmt.Errorf("render.polarity: %w", err)
	}
	if c.Render.Shades < 0 || c.Render.Shades > render.MaxShades {
		return fmt.Errorf("render.shades must be between 0 and %d, got %d", render.MaxShades, c.Render.Shades)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueDepth < 0 {
		return fmt.Errorf("pipeline.queue_depth must not be negative, got %d", c.Pipeline.QueueDepth)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.CRF < 0 || c.Encoding.CRF > 63 {
		return fmt.Errorf("encoding.crf must be between 0 and 63, got %d", c.Encoding.CRF)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return fmt.Errorf("notifications.request_timeout must not be negative, got %d", c.Notifications.RequestTimeout)
	}
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	u, err := url.Parse(topic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}
