// Package history persists a record of every conversion run in SQLite.
//
// The convert command opens a row when a run starts and closes it with the
// final status, frame counts, and failure details; the history command lists
// recent rows. The store applies WAL mode and a busy timeout, and retries
// writes that still collide with another process holding the database.
package history
