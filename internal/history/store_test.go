package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"asciireel/internal/history"
	"asciireel/internal/services"
	"asciireel/internal/testsupport"
)

func TestBeginFinishSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	testsupport.BeginRun(t, store, "run-1", "/in/clip.mp4", "/in/clip_ascii.mp4")
	run, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != services.StatusRunning {
		t.Fatalf("expected running, got %q", run.Status)
	}
	if run.Elapsed() != 0 {
		t.Fatalf("running row should have no elapsed time, got %v", run.Elapsed())
	}

	err = store.Finish(ctx, "run-1", history.Outcome{
		FPS: 25, Width: 640, Height: 360, Frames: 250, ExpectedFrames: 250, OutputBytes: 4096,
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	run, err = store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != services.StatusDone {
		t.Fatalf("expected done, got %q", run.Status)
	}
	if run.Frames != 250 || run.Width != 640 || run.FPS != 25 || run.OutputBytes != 4096 {
		t.Fatalf("unexpected outcome %+v", run)
	}
	if run.ErrorMessage != "" || run.FailedStage != "" || run.FailedFrame != -1 {
		t.Fatalf("success should carry no failure detail: %+v", run)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Fatalf("finished %v before started %v", run.FinishedAt, run.StartedAt)
	}
}

func TestFinishRecordsStageAndFrame(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	testsupport.BeginRun(t, store, "run-2", "in.mp4", "out.mp4")
	cause := &services.FrameDecodeError{LastGoodFrame: 41, Err: errors.New("truncated")}
	failure := &services.StageError{Stage: "processing", Frame: 42, Err: cause}
	if err := store.Finish(ctx, "run-2", history.Outcome{Frames: 42, Err: failure}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	run, err := store.Get(ctx, "run-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != services.StatusFailed {
		t.Fatalf("expected failed, got %q", run.Status)
	}
	if run.FailedStage != "processing" || run.FailedFrame != 42 {
		t.Fatalf("unexpected failure location %q/%d", run.FailedStage, run.FailedFrame)
	}
	if run.ErrorMessage == "" {
		t.Fatal("expected error message")
	}
}

func TestFinishCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	testsupport.BeginRun(t, store, "run-3", "in.mp4", "out.mp4")
	cancelled := services.Wrap(services.ErrCancelled, "processing", "", "run interrupted", context.Canceled)
	if err := store.Finish(ctx, "run-3", history.Outcome{Err: cancelled}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	run, err := store.Get(ctx, "run-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != services.StatusCancelled {
		t.Fatalf("expected cancelled, got %q", run.Status)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	err := store.Finish(context.Background(), "missing", history.Outcome{})
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestBeginRejectsDuplicateAndEmptyID(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if err := store.Begin(context.Background(), history.Start{}); err == nil {
		t.Fatal("expected error for empty id")
	}
	testsupport.BeginRun(t, store, "dup", "a", "b")
	if err := store.Begin(context.Background(), history.Start{ID: "dup", InputPath: "a", OutputPath: "b"}); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestFindByPrefix(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.BeginRun(t, store, "1b2c3d4e-aaaa", "a.mp4", "a_ascii.mp4")
	testsupport.BeginRun(t, store, "1b2c9999-bbbb", "b.mp4", "b_ascii.mp4")
	testsupport.BeginRun(t, store, "1_literal", "c.mp4", "c_ascii.mp4")

	run, err := store.Find(ctx, "1b2c3d")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if run.ID != "1b2c3d4e-aaaa" {
		t.Fatalf("unexpected run %q", run.ID)
	}
	if run, err := store.Find(ctx, "1b2c9999-bbbb"); err != nil || run.ID != "1b2c9999-bbbb" {
		t.Fatalf("exact id: run=%v err=%v", run, err)
	}
	if _, err := store.Find(ctx, "1b2c"); !errors.Is(err, history.ErrAmbiguousID) {
		t.Fatalf("expected ErrAmbiguousID, got %v", err)
	}
	// "_" matches literally, not as a single-character wildcard.
	if run, err := store.Find(ctx, "1_"); err != nil || run.ID != "1_literal" {
		t.Fatalf("literal underscore: run=%v err=%v", run, err)
	}
	if _, err := store.Find(ctx, "zz"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	for _, id := range []string{"a", "b", "c"} {
		testsupport.BeginRun(t, store, id, id+".mp4", id+"_ascii.mp4")
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	all, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestMarkAbandoned(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.BeginRun(t, store, "stale", "in", "out")
	testsupport.BeginRun(t, store, "done", "in", "out")
	if err := store.Finish(ctx, "done", history.Outcome{}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	n, err := store.MarkAbandoned(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("MarkAbandoned: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 abandoned run, got %d", n)
	}
	run, err := store.Get(ctx, "stale")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != services.StatusFailed {
		t.Fatalf("expected failed, got %q", run.Status)
	}
}

func TestReopenKeepsRowsAndRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.BeginRun(t, store, "persisted", "in", "out")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	if _, err := reopened.Get(context.Background(), "persisted"); err != nil {
		t.Fatalf("row lost across reopen: %v", err)
	}
	reopened.Close()

	db, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
