// Package pipeline orchestrates one transcode run.
//
// Orchestrator.Run walks the state machine Idle -> Probing -> Processing ->
// Muxing -> Done, with Failed reachable from every non-terminal state. During
// Processing a decoder goroutine feeds a pool of workers that sample, map,
// and render frames; a reorder buffer hands the results to a single writer
// goroutine in strict index order. A token channel sized to the queue depth
// bounds the number of frames in flight, so a slow encoder stalls the
// decoder instead of growing memory.
//
// The run writes only temporary files until it reaches Done; any failure or
// cancellation removes them and leaves the output path untouched.
package pipeline
