package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrToolUnavailable   = errors.New("external tool unavailable")
	ErrUnreadableSource  = errors.New("unreadable source")
	ErrFrameDecode       = errors.New("frame decode error")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrCancelled         = errors.New("cancelled")
	ErrExternalTool      = errors.New("external tool error")
	ErrOutputLocked      = errors.New("output locked by another run")
	ErrTransient         = errors.New("transient failure")
)

// Status is the terminal state recorded for a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a run error to the status persisted in history.
func FailureStatus(err error) Status {
	switch {
	case err == nil:
		return StatusDone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// FrameDecodeError reports a decoder failure in the middle of a frame stream.
// LastGoodFrame is -1 when no frame was decoded.
type FrameDecodeError struct {
	LastGoodFrame int64
	Err           error
}

func (e *FrameDecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("frame decode failed after frame %d", e.LastGoodFrame)
	}
	return fmt.Sprintf("frame decode failed after frame %d: %v", e.LastGoodFrame, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFrameDecode) match.
func (e *FrameDecodeError) Is(target error) bool {
	return target == ErrFrameDecode
}

// StageError identifies the pipeline stage, and the frame where one applies,
// at which a run failed. Frame is -1 when the failure is not tied to a frame.
type StageError struct {
	Stage string
	Frame int64
	Err   error
}

func (e *StageError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s (frame %d): %v", e.Stage, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage and frame recorded on err, if any.
func FailedStage(err error) (stage string, frame int64, ok bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, se.Frame, true
	}
	return "", -1, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
