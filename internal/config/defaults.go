package config

import "asciireel/internal/charset"

const (
	defaultConfigPath       = "~/.config/asciireel/config.toml"
	defaultLogDir           = "~/.local/share/asciireel/logs"
	defaultStateDir         = "~/.local/share/asciireel"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultColumns          = 120
	defaultPolarity         = "light_on_dark"
	defaultShades           = 1
	defaultQueueDepth       = 32
	defaultCodec            = "libx264"
	defaultPreset           = "veryfast"
	defaultCRF              = 18
	defaultPixelFormat      = "yuv420p"
	defaultTune             = "stillimage"
	defaultFFmpeg           = "ffmpeg"
	defaultFFprobe          = "ffprobe"
	defaultNtfyTimeout      = 10
	historyFileName         = "history.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Render: Render{
			Columns:  defaultColumns,
			Charset:  charset.Default,
			Polarity: defaultPolarity,
			Shades:   defaultShades,
		},
		Pipeline: Pipeline{
			QueueDepth: defaultQueueDepth,
		},
		Encoding: Encoding{
			Codec:       defaultCodec,
			Preset:      defaultPreset,
			CRF:         defaultCRF,
			PixelFormat: defaultPixelFormat,
			Tune:        defaultTune,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
