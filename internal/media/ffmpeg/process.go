package ffmpeg

import (
	"errors"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"asciireel/internal/services"
)

var commandContext = exec.CommandContext

const stderrTailLimit = 4096

// tailBuffer keeps the last bytes a child process wrote to stderr.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTailLimit {
		t.buf = append([]byte(nil), t.buf[len(t.buf)-stderrTailLimit:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

func isMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// toolError classifies a failure to start or run binary.
func toolError(stage, binary string, err error, stderr string) error {
	if isMissingBinary(err) {
		return services.Wrap(services.ErrToolUnavailable, stage, binary, "binary not found", err)
	}
	message := "command failed"
	if stderr != "" {
		message = stderr
	}
	return services.Wrap(services.ErrExternalTool, stage, binary, message, err)
}

func formatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', 6, 64)
}

func binaryOrDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
