package model

import (
	"fmt"
	"time"
)

// StageState is the state of one pipeline stage for one file.
type StageState int

const (
	// StagePending means the stage has not started.
	StagePending StageState = iota
	// StageRunning means the stage action is executing.
	StageRunning
	// StageCompleted means the action succeeded and its output exists.
	StageCompleted
	// StageSkipped means the stage input was already processed by this stage
	// and the input was carried forward unchanged.
	StageSkipped
	// StageFailedRecovered means the action failed and a previous artifact
	// was substituted for the output.
	StageFailedRecovered
	// StageFailedFatal means the stage failed and processing of the file
	// stopped.
	StageFailedFatal
)

var stageStateNames = map[StageState]string{
	StagePending:         "pending",
	StageRunning:         "running",
	StageCompleted:       "completed",
	StageSkipped:         "skipped",
	StageFailedRecovered: "failed_recovered",
	StageFailedFatal:     "failed_fatal",
}

// String returns the snake_case name of the state.
func (s StageState) String() string {
	if name, ok := stageStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow.
func (s StageState) Terminal() bool {
	switch s {
	case StageCompleted, StageSkipped, StageFailedRecovered, StageFailedFatal:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s StageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *StageState) UnmarshalText(b []byte) error {
	for state, name := range stageStateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown stage state %q", b)
}

// StageResult records how one stage ended.
type StageResult struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	State    StageState    `json:"state"`
	Duration time.Duration `json:"duration_ns"` //nolint:tagliatelle // unit suffix

	// Fingerprint is the BLAKE2b digest of the stage input.
	Fingerprint string `json:"fingerprint,omitempty"`

	Error string `json:"error,omitempty"`
}

// Removal is one risk key deleted by the sanitizer.
type Removal struct {
	Location Location `json:"location"`
	Key      string   `json:"key"`
}

// String formats the removal as "location: key".
func (r Removal) String() string {
	return r.Location.String() + ": " + r.Key
}

// RebuildStats describes one document reconstruction.
type RebuildStats struct {
	Pages         int `json:"pages"`
	ObjectsCopied int `json:"objects_copied"`

	// Fallbacks counts nodes copied verbatim after a copy failure.
	Fallbacks int `json:"fallbacks"`

	// CoercedContents counts page contents rebuilt from dictionaries.
	CoercedContents int `json:"coerced_contents"`

	// EmptySubstitutes counts page contents replaced by an empty stream.
	EmptySubstitutes int `json:"empty_substitutes"`
}

// FileStatus is the terminal outcome of one input file.
type FileStatus string

const (
	// StatusCleaned means the sanitized file was published.
	StatusCleaned FileStatus = "cleaned"
	// StatusFailed means a stage failed fatally and nothing was published.
	StatusFailed FileStatus = "failed"
	// StatusInvalid means the input was rejected before processing.
	StatusInvalid FileStatus = "invalid"
	// StatusScanned marks a scan-only report; nothing was written.
	StatusScanned FileStatus = "scanned"
)

// FileReport is the per-file result of a clean run.
type FileReport struct {
	RunID  string     `json:"run_id"`
	Input  string     `json:"input"`
	Output string     `json:"output,omitempty"`
	Status FileStatus `json:"status"`

	// Fingerprint is the BLAKE2b digest of the input file.
	Fingerprint string `json:"fingerprint,omitempty"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Stages []StageResult `json:"stages,omitempty"`

	// Before and After are the scans of the input and the published file.
	Before *ScanResult `json:"before,omitempty"`
	After  *ScanResult `json:"after,omitempty"`

	Removals       []Removal     `json:"removals,omitempty"`
	StreamsEmptied int           `json:"streams_emptied"`
	Rebuild        *RebuildStats `json:"rebuild,omitempty"`

	Error string `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r *FileReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Stage returns the result of the named stage.
func (r *FileReport) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// RiskBefore returns the input score, or -1 when the input was not scanned.
func (r *FileReport) RiskBefore() int {
	if r.Before == nil {
		return -1
	}
	return r.Before.Score
}

// RiskAfter returns the output score, or -1 when the output was not scanned.
func (r *FileReport) RiskAfter() int {
	if r.After == nil {
		return -1
	}
	return r.After.Score
}

// BatchSummary totals a batch of file reports.
type BatchSummary struct {
	Total   int `json:"total"`
	Cleaned int `json:"cleaned"`
	Failed  int `json:"failed"`
	Invalid int `json:"invalid"`

	// Removals is the number of risk keys removed across all files.
	Removals int `json:"removals"`

	Duration time.Duration `json:"duration_ns"` //nolint:tagliatelle // unit suffix
}

// Summarize builds a BatchSummary from reports.
func Summarize(reports []*FileReport, elapsed time.Duration) BatchSummary {
	s := BatchSummary{Total: len(reports), Duration: elapsed}
	for _, r := range reports {
		if r == nil {
			continue
		}
		switch r.Status {
		case StatusCleaned:
			s.Cleaned++
		case StatusFailed:
			s.Failed++
		case StatusInvalid:
			s.Invalid++
		}
		s.Removals += len(r.Removals)
	}
	return s
}
