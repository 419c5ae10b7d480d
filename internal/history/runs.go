package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"asciireel/internal/services"
)

// timestampLayout keeps a fixed fraction width so stored values sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrNotFound is returned when no run has the requested ID.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run id prefix is ambiguous")
)

// Run is one row of the history table.
type Run struct {
	ID             string
	InputPath      string
	OutputPath     string
	Columns        int
	FPS            float64
	Width          int
	Height         int
	Frames         int64
	ExpectedFrames int64
	OutputBytes    int64
	Status         services.Status
	ErrorMessage   string
	FailedStage    string
	// FailedFrame is -1 unless a single frame caused the failure.
	FailedFrame int64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Elapsed returns the run duration, or zero while it is still running.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Start describes a run about to begin.
type Start struct {
	ID         string
	InputPath  string
	OutputPath string
	Columns    int
}

// Outcome is the terminal record of a run.
type Outcome struct {
	FPS            float64
	Width          int
	Height         int
	Frames         int64
	ExpectedFrames int64
	OutputBytes    int64
	// Err is nil for a successful run.
	Err error
}

const runColumns = "id, input_path, output_path, columns, fps, width, height, frames, expected_frames, output_bytes, status, error_message, failed_stage, failed_frame, started_at, finished_at"

// Begin inserts a running row.
func (s *Store) Begin(ctx context.Context, start Start) error {
	if strings.TrimSpace(start.ID) == "" {
		return errors.New("history: run id is required")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, input_path, output_path, columns, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		start.ID,
		start.InputPath,
		start.OutputPath,
		start.Columns,
		string(services.StatusRunning),
		time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records the outcome of a run. The status is derived from the error.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	status := services.FailureStatus(outcome.Err)
	var (
		message sql.NullString
		stage   sql.NullString
		frame   sql.NullInt64
	)
	if outcome.Err != nil {
		message = sql.NullString{String: outcome.Err.Error(), Valid: true}
		if failedStage, failedFrame, ok := services.FailedStage(outcome.Err); ok {
			stage = sql.NullString{String: failedStage, Valid: failedStage != ""}
			frame = sql.NullInt64{Int64: failedFrame, Valid: failedFrame >= 0}
		}
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET fps = ?, width = ?, height = ?, frames = ?, expected_frames = ?,
            output_bytes = ?, status = ?, error_message = ?, failed_stage = ?, failed_frame = ?,
            finished_at = ?
         WHERE id = ?`,
		outcome.FPS,
		outcome.Width,
		outcome.Height,
		outcome.Frames,
		outcome.ExpectedFrames,
		outcome.OutputBytes,
		string(status),
		message,
		stage,
		frame,
		time.Now().UTC().Format(timestampLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get fetches one run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// Find resolves a full run ID or a unique prefix of one.
func (s *Store) Find(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, fmt.Errorf("find run: %w", ErrNotFound)
	}
	if run, err := s.Get(ctx, idOrPrefix); err == nil || !errors.Is(err, ErrNotFound) {
		return run, err
	}

	pattern := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(idOrPrefix) + "%"
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+runColumns+" FROM runs WHERE id LIKE ? ESCAPE '\\' LIMIT 2", pattern)
	if err != nil {
		return nil, fmt.Errorf("find run %s: %w", idOrPrefix, err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find run %s: %w", idOrPrefix, err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("find run %s: %w", idOrPrefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("find run %s: %w", idOrPrefix, ErrAmbiguousID)
	}
}

// List returns the most recent runs first. A limit of zero or less returns all rows.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// MarkAbandoned fails rows still marked running that started before cutoff.
// A process killed mid-run never records its outcome.
func (s *Store) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ?
         WHERE status = ? AND started_at < ?`,
		string(services.StatusFailed),
		"run abandoned before recording an outcome",
		time.Now().UTC().Format(timestampLayout),
		string(services.StatusRunning),
		cutoff.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return n, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		status     string
		message    sql.NullString
		stage      sql.NullString
		frame      sql.NullInt64
		startedRaw string
		finishRaw  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.InputPath,
		&run.OutputPath,
		&run.Columns,
		&run.FPS,
		&run.Width,
		&run.Height,
		&run.Frames,
		&run.ExpectedFrames,
		&run.OutputBytes,
		&status,
		&message,
		&stage,
		&frame,
		&startedRaw,
		&finishRaw,
	); err != nil {
		return nil, err
	}
	run.Status = services.Status(status)
	run.ErrorMessage = message.String
	run.FailedStage = stage.String
	run.FailedFrame = -1
	if frame.Valid {
		run.FailedFrame = frame.Int64
	}
	run.StartedAt = parseTimestamp(startedRaw)
	if finishRaw.Valid {
		run.FinishedAt = parseTimestamp(finishRaw.String)
	}
	return &run, nil
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
