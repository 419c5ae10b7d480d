package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"asciireel/internal/charset"
	"asciireel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ASCIIREEL_FFMPEG", "")
	t.Setenv("ASCIIREEL_FFPROBE", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "asciireel", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "asciireel", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "asciireel", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.Render.Columns != 120 {
		t.Fatalf("expected 120 columns, got %d", cfg.Render.Columns)
	}
	if cfg.Render.Charset != charset.Default {
		t.Fatalf("unexpected charset %q", cfg.Render.Charset)
	}
	if cfg.Render.FPS != 0 || cfg.Render.OutputWidth != 0 || cfg.Render.OutputHeight != 0 {
		t.Fatalf("expected source-derived fps and size, got %+v", cfg.Render)
	}
	if cfg.Pipeline.QueueDepth != 32 {
		t.Fatalf("unexpected queue depth %d", cfg.Pipeline.QueueDepth)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected tools %+v", cfg.Tools)
	}
	if cfg.Encoding.Codec != "libx264" || cfg.Encoding.CRF != 18 {
		t.Fatalf("unexpected encoding %+v", cfg.Encoding)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASCIIREEL_FFMPEG", "")
	t.Setenv("ASCIIREEL_FFPROBE", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[render]
columns = 80
charset = "  .oO@"
fps = 12.5
polarity = "Dark_On_Light"
shades = 8

[pipeline]
workers = 3
queue_depth = 0

[encoding]
crf = 28
compare = true

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[paths]
log_dir = "~/logs"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Render.Columns != 80 || cfg.Render.FPS != 12.5 {
		t.Fatalf("unexpected render section %+v", cfg.Render)
	}
	if cfg.Render.Charset != "  .oO@" {
		t.Fatalf("charset should keep leading spaces, got %q", cfg.Render.Charset)
	}
	if cfg.Render.Polarity != "dark_on_light" {
		t.Fatalf("unexpected polarity %q", cfg.Render.Polarity)
	}
	if cfg.Render.Shades != 8 {
		t.Fatalf("unexpected shades %d", cfg.Render.Shades)
	}
	if cfg.Pipeline.Workers != 3 || cfg.Pipeline.QueueDepth != 32 {
		t.Fatalf("unexpected pipeline section %+v", cfg.Pipeline)
	}
	if cfg.Encoding.CRF != 28 || !cfg.Encoding.Compare || cfg.Encoding.Codec != "libx264" {
		t.Fatalf("unexpected encoding section %+v", cfg.Encoding)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected tools %+v", cfg.Tools)
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.LogDir != filepath.Join(home, "logs") {
		t.Fatalf("unexpected log dir %q", cfg.Paths.LogDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging section %+v", cfg.Logging)
	}
}

func TestLoadToolEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASCIIREEL_FFMPEG", " /usr/local/bin/ffmpeg ")
	t.Setenv("ASCIIREEL_FFPROBE", "/usr/local/bin/ffprobe")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FFmpegBinary() != "/usr/local/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "/usr/local/bin/ffprobe" {
		t.Fatalf("unexpected ffprobe %q", cfg.FFprobeBinary())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero columns", "[render]\ncolumns = 0\n", "render.columns"},
		{"empty charset", "[render]\ncharset = \"\"\n", "render.charset"},
		{"negative fps", "[render]\nfps = -1.0\n", "render.fps"},
		{"negative width", "[render]\noutput_width = -2\n", "output_width"},
		{"bad polarity", "[render]\npolarity = \"sepia\"\n", "render.polarity"},
		{"shades above range", "[render]\nshades = 257\n", "render.shades"},
		{"negative shades", "[render]\nshades = -1\n", "render.shades"},
		{"negative workers", "[pipeline]\nworkers = -1\n", "pipeline.workers"},
		{"crf range", "[encoding]\ncrf = 99\n", "encoding.crf"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"ntfy topic not a url", "[notifications]\nntfy_topic = \"my-topic\"\n", "notifications.ntfy_topic"},
		{"negative ntfy timeout", "[notifications]\nrequest_timeout = -5\n", "notifications.request_timeout"},
		{"unknown key", "[render]\ncolumnz = 10\n", "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASCIIREEL_FFMPEG", "")
	t.Setenv("ASCIIREEL_FFPROBE", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	for _, section := range []string{"render", "pipeline", "encoding", "tools", "paths", "logging"} {
		if _, ok := raw[section]; !ok {
			t.Fatalf("sample missing [%s]", section)
		}
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	def := config.Default()
	if cfg.Render.Charset != def.Render.Charset || cfg.Render.Columns != def.Render.Columns {
		t.Fatalf("sample drifted from defaults: %+v", cfg.Render)
	}
}

func TestEncodeRoundTripsThroughLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASCIIREEL_FFMPEG", "")
	t.Setenv("ASCIIREEL_FFPROBE", "")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Render.Columns = 64
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "shown.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reloaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Render.Columns != 64 {
		t.Fatalf("expected 64 columns after reload, got %d", reloaded.Render.Columns)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/videos")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "videos") {
		t.Fatalf("unexpected expansion %q", got)
	}
	if got, _ := config.ExpandPath(""); got != "" {
		t.Fatalf("empty path should stay empty, got %q", got)
	}
}
