package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"asciireel/internal/config"
)

const userAgent = "asciireel/0.1"

// Service publishes run milestones.
type Service interface {
	NotifyRunCompleted(ctx context.Context, run RunSummary) error
	NotifyRunFailed(ctx context.Context, input string, err error) error
	TestNotification(ctx context.Context) error
}

// RunSummary describes a finished conversion.
type RunSummary struct {
	OutputPath  string
	Frames      int64
	OutputBytes int64
	Elapsed     time.Duration
}

// NewService builds an ntfy-backed service, or a no-op one without a topic.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, run RunSummary) error {
	message := fmt.Sprintf("Rendered %s: %s frames in %s",
		filepath.Base(run.OutputPath), humanize.Comma(run.Frames), run.Elapsed.Round(time.Second))
	if run.OutputBytes > 0 {
		message += fmt.Sprintf(" (%s)", humanize.IBytes(uint64(run.OutputBytes)))
	}
	return n.send(ctx, payload{
		title:   "asciireel - Done",
		message: message,
		tags:    []string{"asciireel", "run", "completed"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, input string, err error) error {
	var builder strings.Builder
	builder.WriteString("Conversion failed")
	if input = strings.TrimSpace(input); input != "" {
		builder.WriteString(" for ")
		builder.WriteString(filepath.Base(input))
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "asciireel - Failed",
		message:  builder.String(),
		tags:     []string{"asciireel", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "asciireel - Test",
		message:  "Notification test",
		tags:     []string{"asciireel", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
