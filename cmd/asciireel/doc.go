// Package main hosts the asciireel CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, layers command-line flags
// on top, and hands a validated pipeline.Config to the conversion core. It also
// owns the terminal experience: progress bars, colored preflight output, and
// the run history table.
package main
