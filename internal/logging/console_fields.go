package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type infoField struct {
	label   string
	value   string
	ownLine bool
}

// infoOrder lists the keys shown first, in this order. Other keys follow in
// the order they were logged.
var infoOrder = []string{
	FieldAlert,
	"input",
	"output",
	FieldProgressPercent,
	"frames",
	"expected_frames",
	"fps",
	"columns",
	"rows",
	"width",
	"height",
	"has_audio",
	"compare",
	"elapsed",
	"output_bytes",
	"reason",
	FieldImpact,
	"error",
	FieldErrorHint,
}

// selectInfoFields formats the fields an info-or-higher line shows. Event
// types, debug-only keys and overlong values are left to the JSON run log.
func selectInfoFields(attrs []kv) []infoField {
	rank := make(map[string]int, len(infoOrder))
	for i, key := range infoOrder {
		rank[key] = i
	}
	ordered := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" || attr.key == FieldEventType || isDebugOnlyKey(attr.key) {
			continue
		}
		ordered = append(ordered, attr)
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		ra, oka := rank[ordered[a].key]
		rb, okb := rank[ordered[b].key]
		switch {
		case oka && okb:
			return ra < rb
		default:
			return oka && !okb
		}
	})

	fields := make([]infoField, 0, len(ordered))
	for _, attr := range ordered {
		value := formatValueForKey(attr.key, attr.value)
		if shouldHideInfoValue(attr.key, value) {
			continue
		}
		fields = append(fields, infoField{
			label:   displayLabel(attr.key),
			value:   value,
			ownLine: attr.key == "error" || attr.key == FieldErrorHint,
		})
	}
	return fields
}

// formatValueForKey applies display formatting based on the key name.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()

	if isByteSizeKey(key) && (v.Kind() == slog.KindInt64 || v.Kind() == slog.KindUint64) {
		if v.Kind() == slog.KindUint64 {
			return humanize.IBytes(v.Uint64())
		}
		if n := v.Int64(); n >= 0 {
			return humanize.IBytes(uint64(n))
		}
	}
	if v.Kind() == slog.KindDuration {
		return formatDurationHuman(v.Duration())
	}
	if key == FieldProgressPercent && v.Kind() == slog.KindFloat64 {
		return fmt.Sprintf("%.0f%%", v.Float64())
	}
	if isCountKey(key) && v.Kind() == slog.KindInt64 {
		return humanize.Comma(v.Int64())
	}
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}

	value := formatValue(v)
	if k := v.Kind(); k == slog.KindString || k == slog.KindAny {
		value = rawValue(v)
	}
	if key == "error" {
		value = truncateErrorValue(value)
	}
	return value
}

func isByteSizeKey(key string) bool {
	return strings.HasSuffix(key, "_bytes") || key == "size"
}

func isCountKey(key string) bool {
	return key == "frames" || key == "expected_frames" || strings.HasSuffix(key, "_frames")
}

func formatDurationHuman(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func truncateErrorValue(value string) string {
	value = strings.TrimSpace(value)
	const maxLen = 240
	if len(value) > maxLen {
		value = value[:maxLen] + "…"
	}
	return value
}

func isDebugOnlyKey(key string) bool {
	if key == "" {
		return true
	}
	switch key {
	case "args", "stderr", "temp_path", "lock_path":
		return true
	}
	return strings.HasPrefix(key, "ffprobe.")
}

func shouldHideInfoValue(key, value string) bool {
	switch key {
	case "error", "input", "output":
		return false
	}
	return len(value) > 120
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldErrorHint:
		return "Hint"
	case FieldProgressPercent:
		return "Progress"
	case "expected_frames":
		return "Expected"
	case "fps":
		return "FPS"
	case "has_audio":
		return "Audio"
	case "output_bytes":
		return "Size"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	if key == "" {
		return ""
	}
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	if len(parts) == 0 {
		return strings.ToUpper(key[:1]) + strings.ToLower(key[1:])
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	switch len(value) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(value)
	default:
		lower := strings.ToLower(value)
		return strings.ToUpper(lower[:1]) + lower[1:]
	}
}
