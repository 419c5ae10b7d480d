// Package logging assembles structured slog loggers and formatting helpers used
// across asciireel.
//
// It owns the console and JSON handlers, level and output plumbing, per-run
// JSON log files, and context-aware helpers that tag log lines with the run
// ID, pipeline state, and frame index carried by the context. A no-op logger
// is provided for tests and wiring code that cannot fail.
package logging
