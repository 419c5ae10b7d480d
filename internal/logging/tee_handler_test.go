package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsEachLevel(t *testing.T) {
	var console, file bytes.Buffer
	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(slog.LevelInfo)
	fileLevel := new(slog.LevelVar)
	fileLevel.Set(slog.LevelDebug)

	logger := slog.New(newTeeHandler(
		newConsoleHandler(&console, consoleLevel, false),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: fileLevel}),
	))

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("tee should be enabled when any handler accepts debug")
	}
	logger.Debug("frame rendered", Int64(FieldFrameIndex, 7))
	logger.Info("transcode complete", Int64("frames", 10))

	if strings.Contains(console.String(), "frame rendered") {
		t.Fatalf("console received debug line: %q", console.String())
	}
	if !strings.Contains(console.String(), "transcode complete") {
		t.Fatalf("console missing info line: %q", console.String())
	}
	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected both lines in file handler, got %d: %q", len(lines), file.String())
	}
}

func TestTeeHandlerWithAttrsReachesAllHandlers(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newTeeHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)).With(String(FieldRunID, "run-1")).WithGroup("encoder")

	logger.Info("opened", String("codec", "libx264"))

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if entry[FieldRunID] != "run-1" {
			t.Fatalf("%s: missing run id: %v", name, entry)
		}
		group, ok := entry["encoder"].(map[string]any)
		if !ok || group["codec"] != "libx264" {
			t.Fatalf("%s: missing grouped attr: %v", name, entry)
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var base, extra bytes.Buffer
	logger := TeeLogger(slog.New(slog.NewJSONHandler(&base, nil)), slog.NewJSONHandler(&extra, nil))
	logger.Info("probe")
	if base.Len() == 0 || extra.Len() == 0 {
		t.Fatalf("expected both outputs to receive the record: base=%q extra=%q", base.String(), extra.String())
	}

	var only bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&only, nil)).Info("probe")
	if only.Len() == 0 {
		t.Fatal("expected nil base to fall back to the extra handler")
	}
}
