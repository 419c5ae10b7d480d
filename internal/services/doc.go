// Package services defines shared utilities consumed by the transcode stages
// and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and frame indices for
//     logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into a consistent run status (failed vs cancelled).
//   - FrameDecodeError and StageError, which carry the frame index and stage
//     at which a run stopped.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
