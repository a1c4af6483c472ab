// Package pipeline runs the cleaning stages for each input file.
//
// An Orchestrator executes an ordered list of stages strictly in sequence.
// Every stage reads an artifact from disk and, unless it is diagnostic,
// writes a new one. The orchestrator skips a stage whose input is an
// artifact the stage produced before (see Memo), substitutes the previous artifact when an external
// tool fails, and stops the file when a declared artifact is missing.
//
// FileProcessor builds the default stage list for one PDF inside a scratch
// directory and hands every run the same Memo, and BatchProcessor spreads
// many files over a bounded number of goroutines with errgroup.
package pipeline
