package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	RFrameRate string `json:"r_frame_rate"`
	AvgRate    string `json:"avg_frame_rate"`
	NBFrames   string `json:"nb_frames"`
	PixFmt     string `json:"pix_fmt"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("ffprobe inspect: %w", ctx.Err())
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, skipping attached pictures
// such as cover art.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") && !strings.EqualFold(stream.CodecName, "mjpeg") && !strings.EqualFold(stream.CodecName, "png") {
			return stream, true
		}
	}
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStream returns the first audio stream.
func (r Result) AudioStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// FrameRate returns the stream's base frame rate, falling back to the
// average rate, or 0 when neither parses.
func (s Stream) FrameRate() float64 {
	if rate, ok := ParseRational(s.RFrameRate); ok && rate > 0 {
		return rate
	}
	if rate, ok := ParseRational(s.AvgRate); ok && rate > 0 {
		return rate
	}
	return 0
}

// DurationSeconds returns the stream duration in seconds: 0 when unset, NaN when unparsable.
func (s Stream) DurationSeconds() float64 {
	return parseFloat(s.Duration)
}

// ParseRational parses ffprobe rates such as "30000/1001" or "25".
func ParseRational(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	num, den, found := strings.Cut(value, "/")
	numerator, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if !found {
		return numerator, true
	}
	denominator, err := strconv.ParseFloat(den, 64)
	if err != nil || denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}

// DurationSeconds returns the container duration in seconds: 0 when unset, NaN when unparsable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
