// Package logs locates per-run debug logs and tails them with bounded memory.
//
// Run logs are written by logging.OpenRunLog as "<timestamp>-<run id prefix>.log"
// inside the configured log directory. Tail supports "last N lines" reads and
// a follow mode that polls for appended lines until its wait expires or the
// context is cancelled.
package logs
