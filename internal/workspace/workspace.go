// Package workspace manages the files one transcode run writes beside its
// output: per-run temporary artifacts, an advisory lock on the output path,
// and the final rename that publishes the result.
//
// Nothing is written at the output path itself until Commit, so a failed or
// cancelled run never leaves a partial file there.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"asciireel/internal/logging"
	"asciireel/internal/services"
)

// TempPrefix marks every temporary artifact so stale ones can be found later.
const TempPrefix = ".asciireel-"

// Workspace is owned by a single run.
type Workspace struct {
	output string
	dir    string
	ext    string
	token  string
	lock   *flock.Flock
	logger *slog.Logger

	mu        sync.Mutex
	temps     []string
	committed bool
	released  bool
}

// Acquire locks output for this process and prepares its directory.
// services.ErrOutputLocked is returned when another run holds the lock.
func Acquire(output string, logger *slog.Logger) (*Workspace, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, services.Wrap(services.ErrInvalidConfig, "workspace", "acquire", "output path is empty", nil)
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lockPath := filepath.Join(dir, "."+filepath.Base(abs)+".lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrOutputLocked, "workspace", "acquire", abs, nil)
	}

	return &Workspace{
		output: abs,
		dir:    dir,
		ext:    filepath.Ext(abs),
		token:  uuid.NewString(),
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "workspace"),
	}, nil
}

// Output returns the absolute output path.
func (w *Workspace) Output() string {
	return w.output
}

// TempPath reserves a temporary file name for label. The file keeps the
// output's extension so tools infer the same container.
func (w *Workspace) TempPath(label string) string {
	label = strings.Trim(strings.TrimSpace(label), ".")
	if label == "" {
		label = "tmp"
	}
	path := filepath.Join(w.dir, TempPrefix+w.token+"-"+label+w.ext)
	w.mu.Lock()
	w.temps = append(w.temps, path)
	w.mu.Unlock()
	return path
}

// Commit renames tempPath onto the output path.
func (w *Workspace) Commit(tempPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return errors.New("workspace already committed")
	}
	if err := os.Rename(tempPath, w.output); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	w.committed = true
	kept := w.temps[:0]
	for _, p := range w.temps {
		if p != tempPath {
			kept = append(kept, p)
		}
	}
	w.temps = kept
	return nil
}

// Committed reports whether the output was published.
func (w *Workspace) Committed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed
}

// Cleanup removes every temporary artifact still on disk.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	temps := w.temps
	w.temps = nil
	w.mu.Unlock()

	var errs []error
	for _, path := range temps {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			w.logger.Warn("failed to remove temporary artifact",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}
	return errors.Join(errs...)
}

// Release removes leftovers and drops the output lock.
func (w *Workspace) Release() error {
	cleanupErr := w.Cleanup()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return cleanupErr
	}
	w.released = true
	if err := w.lock.Unlock(); err != nil {
		return errors.Join(cleanupErr, fmt.Errorf("release output lock: %w", err))
	}
	return cleanupErr
}
