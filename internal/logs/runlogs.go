package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoRunLog is returned when no log file matches the request.
var ErrNoRunLog = errors.New("no run log found")

const runLogExt = ".log"

// RunLogName builds the file stem for a run log.
func RunLogName(runID string, started time.Time) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return started.Format("20060102-150405") + "-" + short
}

// FindRunLog returns the log written for runID, given the full ID or a
// prefix of it.
func FindRunLog(dir, runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", fmt.Errorf("%w: empty run id", ErrNoRunLog)
	}
	want := runID
	if len(want) > 8 {
		want = want[:8]
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != runLogExt {
			continue
		}
		stem := strings.TrimSuffix(name, runLogExt)
		idx := strings.LastIndexByte(stem, '-')
		if idx < 0 {
			continue
		}
		if strings.HasPrefix(stem[idx+1:], want) {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w for run %s in %s", ErrNoRunLog, runID, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run id %s matches %d log files; use a longer prefix", runID, len(matches))
	}
}

// LatestRunLog returns the most recently modified run log in dir.
func LatestRunLog(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w in %s", ErrNoRunLog, dir)
	}
	if err != nil {
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != runLogExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoRunLog, dir)
	}
	return latest, nil
}
