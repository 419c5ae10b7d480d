package testsupport

import (
	"context"
	"testing"

	"asciireel/internal/config"
	"asciireel/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a running row for tests using the provided store.
func BeginRun(t testing.TB, store *history.Store, id, input, output string) {
	t.Helper()

	if err := store.Begin(context.Background(), history.Start{ID: id, InputPath: input, OutputPath: output, Columns: 80}); err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
}
