package preflight

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const encoderListTimeout = 10 * time.Second

var commandContext = exec.CommandContext

// CheckEncoder reports whether ffmpeg lists codec among its video encoders.
// An empty codec yields a zero Result, which RunAll skips.
func CheckEncoder(ctx context.Context, ffmpegBinary, codec string) Result {
	codec = strings.TrimSpace(codec)
	if codec == "" {
		return Result{}
	}
	name := "Encoder " + codec
	binary := strings.TrimSpace(ffmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Result{Name: name, Detail: "ffmpeg unavailable"}
	}

	ctx, cancel := context.WithTimeout(ctx, encoderListTimeout)
	defer cancel()
	output, err := commandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list encoders failed (%v)", err)}
	}
	if !listsVideoEncoder(output, codec) {
		return Result{Name: name, Detail: "not built into this ffmpeg"}
	}
	return Result{Name: name, Passed: true, Detail: "available"}
}

// listsVideoEncoder scans "ffmpeg -encoders" output, whose rows look like
// " V....D libx264              libx264 H.264 / AVC".
func listsVideoEncoder(output []byte, codec string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		flags := fields[0]
		if len(flags) != 6 || flags[0] != 'V' {
			continue
		}
		if fields[1] == codec {
			return true
		}
	}
	return false
}
