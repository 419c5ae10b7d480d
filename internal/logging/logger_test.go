package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"asciireel/internal/config"
	"asciireel/internal/logging"
	"asciireel/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be enabled")
	}

	nilLogger, err := logging.NewFromConfig(nil)
	if err != nil || nilLogger == nil {
		t.Fatalf("NewFromConfig(nil) = %v, %v", nilLogger, err)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.Int("columns", 80))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["msg"] != "json message" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["columns"] != float64(80) {
		t.Fatalf("expected columns attr, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := logging.ParseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("unexpected level %v", got)
	}
	if got := logging.ParseLevel("WARNING"); got != slog.LevelWarn {
		t.Fatalf("unexpected level %v", got)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithRunID(context.Background(), "3f2a")
	ctx = services.WithStage(ctx, "processing")
	ctx = services.WithFrameIndex(ctx, 42)
	logging.WithContext(ctx, base).Info("frame failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldRunID] != "3f2a" {
		t.Fatalf("missing run id: %v", entry)
	}
	if entry[logging.FieldStage] != "processing" {
		t.Fatalf("missing stage: %v", entry)
	}
	if entry[logging.FieldFrameIndex] != float64(42) {
		t.Fatalf("missing frame index: %v", entry)
	}

	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected nop logger for nil base")
	}
}

func TestOpenRunLogWritesJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	runLog, err := logging.OpenRunLog(dir, "run-abc")
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	logger := logging.TeeLogger(logging.NewNop(), runLog.Handler)
	logger.Debug("frame decoded", logging.Int64(logging.FieldFrameIndex, 3))
	if err := runLog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if runLog.Path != filepath.Join(dir, "run-abc.log") {
		t.Fatalf("unexpected path %q", runLog.Path)
	}
	content, err := os.ReadFile(runLog.Path)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(content), `"frame_index":3`) {
		t.Fatalf("expected debug line in run log, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "frame count differs", "frame_count_mismatch")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing %s in %v", key, entry)
		}
	}
}

func TestCleanupOldLogsHonoursExclusions(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	current := filepath.Join(dir, "current.log")
	keep := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, keep} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -10)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{current},
	})
	if len(removed) != 1 || filepath.Base(removed[0]) != "old.log" {
		t.Fatalf("unexpected removed list %v", removed)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be pruned", old)
	}
	for _, path := range []string{current, keep} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(0, 0, -400)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if removed := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir, Pattern: "*.log"}); removed != nil {
		t.Fatalf("expected nothing removed, got %v", removed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to remain: %v", err)
	}
}
