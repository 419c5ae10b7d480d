// Package ffmpeg drives the ffmpeg and ffprobe binaries as the decoder and
// encoder behind the transcode pipeline.
//
// Decoder implements source.Backend: Probe reads container metadata through
// ffprobe and Decode streams raw RGBA frames from ffmpeg's stdout at the
// requested rate. Encoder implements sink.Encoder: Open pipes grayscale
// rasters into an H.264 encode, and Mux attaches passthrough audio (or the
// stacked comparison view) without re-encoding the audio.
//
// A binary that cannot be located is reported as services.ErrToolUnavailable.
package ffmpeg
