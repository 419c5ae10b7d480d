package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	stageKey      contextKey = "stage"
	frameIndexKey contextKey = "frame_index"
)

// WithRunID annotates context with the transcode run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithFrameIndex annotates context with the frame being processed.
func WithFrameIndex(ctx context.Context, index int64) context.Context {
	return context.WithValue(ctx, frameIndexKey, index)
}

// FrameIndexFromContext extracts the frame index if present.
func FrameIndexFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(frameIndexKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
