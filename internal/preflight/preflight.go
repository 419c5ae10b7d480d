package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"asciireel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Optional results never count as failures.
	Optional bool
	Detail   string
}

// RunAll executes every preflight check for the given config. outputPath is
// optional; when set, its parent directory must be writable.
func RunAll(ctx context.Context, cfg *config.Config, outputPath string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Detail
		if status.Available {
			detail = status.Command
			if status.Version != "" {
				detail += " (" + status.Version + ")"
			}
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   detail,
		})
	}
	if status := CheckEncoder(ctx, cfg.FFmpegBinary(), cfg.Encoding.Codec); status.Name != "" {
		results = append(results, status)
	}

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if strings.TrimSpace(outputPath) != "" {
		results = append(results, CheckDirectoryAccess("Output directory", filepath.Dir(outputPath)))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
