package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"asciireel/internal/pipeline"
)

// progressReporter drives a terminal progress bar from pipeline callbacks.
// A disabled reporter is a no-op so non-interactive runs rely on logs alone.
type progressReporter struct {
	out     io.Writer
	enabled bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int64
}

func newProgressReporter(out io.Writer, enabled bool) *progressReporter {
	return &progressReporter{out: out, enabled: enabled}
}

// Update is safe to call from the pipeline writer goroutine.
func (p *progressReporter) Update(progress pipeline.Progress) {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	total := progress.Expected
	if total <= 0 {
		total = -1
	}
	if p.bar == nil {
		p.bar = newBar(p.out, total)
		p.max = total
	} else if total != p.max {
		p.bar.ChangeMax64(total)
		p.max = total
	}
	_ = p.bar.Set64(progress.Frame)
}

// Finish completes the bar on success and clears it otherwise.
func (p *progressReporter) Finish(success bool) {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	if success {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Exit()
	}
	io.WriteString(p.out, "\n")
	p.bar = nil
}

func newBar(out io.Writer, total int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("rendering"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(true),
	)
}
