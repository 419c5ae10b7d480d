package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one line per record for a terminal:
//
//	15:04:05 WARN [pipeline] Run 1b2c3d4e (processing) · frame 42: message (Label: value, ...)
//
// Errors and hints follow on indented lines. Debug records list raw
// key=value pairs instead of labelled fields.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	group     string
	preset    []kv
}

type kv struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]kv(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFlat(fields, h.group, attr)
		return true
	})
	fields = lastValueWins(fields)

	var component string
	var subject runSubject
	rest := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = attrString(f.value)
		case FieldRunID:
			subject.runID = attrString(f.value)
		case FieldStage:
			subject.stage = attrString(f.value)
		case FieldFrameIndex:
			subject.frame = attrString(f.value)
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [" + component + "]")
	}
	if s := subject.String(); s != "" {
		buf.WriteString(" " + s)
	}
	buf.WriteString(": ")
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" <" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + ">")
		}
	}

	if record.Level < slog.LevelInfo {
		for _, f := range rest {
			buf.WriteString(" " + f.key + "=" + formatValue(f.value))
		}
		buf.WriteByte('\n')
	} else {
		writeInfoFields(&buf, selectInfoFields(rest))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// writeInfoFields puts ordinary fields in parentheses after the message and
// gives errors and hints a line each.
func writeInfoFields(buf *bytes.Buffer, fields []infoField) {
	var trailer []infoField
	inline := 0
	for _, f := range fields {
		if f.ownLine {
			trailer = append(trailer, f)
			continue
		}
		if inline == 0 {
			buf.WriteString(" (")
		} else {
			buf.WriteString(", ")
		}
		buf.WriteString(f.label + ": " + f.value)
		inline++
	}
	if inline > 0 {
		buf.WriteByte(')')
	}
	buf.WriteByte('\n')
	for _, f := range trailer {
		buf.WriteString("    " + f.label + ": " + f.value + "\n")
	}
}

// runSubject identifies the run, pipeline state and frame a line belongs to.
type runSubject struct {
	runID string
	stage string
	frame string
}

// String renders "Run 1b2c3d4e (processing) · frame 42". Run IDs are
// shortened to their first UUID group.
func (s runSubject) String() string {
	runID, _, _ := strings.Cut(strings.TrimSpace(s.runID), "-")
	stage := strings.TrimSpace(s.stage)
	var out string
	switch {
	case runID != "" && stage != "":
		out = "Run " + runID + " (" + stage + ")"
	case runID != "":
		out = "Run " + runID
	default:
		out = stage
	}
	if frame := strings.TrimSpace(s.frame); frame != "" {
		if out != "" {
			out += " · "
		}
		out += "frame " + frame
	}
	return out
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = append([]kv(nil), h.preset...)
	for _, attr := range attrs {
		clone.preset = appendFlat(clone.preset, h.group, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

// appendFlat adds attr to dst, expanding groups into dotted keys.
func appendFlat(dst []kv, prefix string, attr slog.Attr) []kv {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	key := joinKey(prefix, attr.Key)
	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			dst = appendFlat(dst, key, member)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	return append(dst, kv{key: key, value: attr.Value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

// lastValueWins keeps the first position of each key with its latest value.
func lastValueWins(fields []kv) []kv {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
