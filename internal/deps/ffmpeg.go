package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobePath returns the ffprobe binary that pairs with ffmpegCommand.
//
// An explicitly configured ffprobe wins. When ffprobe is left at its bare
// default and cannot be found on PATH, an ffprobe sitting next to a
// configured ffmpeg is used instead, since static ffmpeg builds ship the two
// together.
func ResolveFFprobePath(ffprobeCommand, ffmpegCommand string) string {
	ffprobe := strings.TrimSpace(ffprobeCommand)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if ffprobe != "ffprobe" {
		return ffprobe
	}
	if resolved, err := exec.LookPath(ffprobe); err == nil {
		return resolved
	}
	ffmpeg := strings.TrimSpace(ffmpegCommand)
	if ffmpeg == "" {
		return ffprobe
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return ffprobe
	}
	if candidate, ok := siblingCandidate(resolved, "ffprobe"); ok {
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate
		}
	}
	return ffprobe
}

func siblingCandidate(binaryPath, name string) (string, bool) {
	if binaryPath == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(binaryPath), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
