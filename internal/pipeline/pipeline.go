package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/pdfscrub/internal/model"
)

// Kind tells the orchestrator how to react when a stage action fails.
type Kind int

const (
	// KindInternal stages run in-process code. A failure ends the file.
	KindInternal Kind = iota
	// KindExternal stages drive external tools. A failure is recovered by
	// carrying the previous artifact forward.
	KindExternal
	// KindDiagnostic stages only observe the artifact. A failure is
	// logged and ignored.
	KindDiagnostic
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindExternal:
		return "external"
	case KindDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// Action performs the work of one stage. output is empty for stages that
// do not produce an artifact.
type Action func(ctx context.Context, input, output string) error

// Stage is one step of a file's run.
type Stage struct {
	Name string
	Kind Kind

	// Input is the artifact the stage reads.
	Input string

	// Output is the artifact the stage must produce, or empty.
	Output string

	Action Action
}

// Observer is notified of stage and file outcomes. It is used for metrics.
type Observer interface {
	StageFinished(stage string, state model.StageState, elapsed time.Duration)
	FileFinished(status model.FileStatus, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StageFinished(string, model.StageState, time.Duration) {}
func (nopObserver) FileFinished(model.FileStatus, time.Duration)          {}

// Orchestrator runs stages in order and consults a memo of the artifacts
// each stage has produced. An Orchestrator is not safe for concurrent Run
// calls; batch processing uses one per file and shares the memo.
type Orchestrator struct {
	// stages contains the ordered list of stages to execute.
	stages []Stage

	// memo records the artifacts each stage has produced.
	memo *Memo

	logger   *slog.Logger
	observer Observer
}

// Option is a function that configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithObserver sets the observer notified after every stage.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithMemo makes the orchestrator use m instead of a private memo.
func WithMemo(m *Memo) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.memo = m
		}
	}
}

// New creates an Orchestrator with an empty memo unless WithMemo is given.
// Stages are added with AddStage after creation.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:   make([]Stage, 0),
		memo:     NewMemo(),
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// AddStage appends a stage. Stages are executed in the order they are added.
func (o *Orchestrator) AddStage(stage Stage) {
	o.stages = append(o.stages, stage)
}

// AddStages appends multiple stages.
func (o *Orchestrator) AddStages(stages ...Stage) {
	o.stages = append(o.stages, stages...)
}

// StageCount returns the number of stages.
func (o *Orchestrator) StageCount() int {
	return len(o.stages)
}

// StageNames returns the names of all stages in execution order.
func (o *Orchestrator) StageNames() []string {
	names := make([]string, len(o.stages))
	for i, stage := range o.stages {
		names[i] = stage.Name
	}
	return names
}

// Memo returns the memo of produced artifacts.
func (o *Orchestrator) Memo() *Memo {
	return o.memo
}

// Run executes every stage in order and returns one result per stage.
// Stages after a fatal failure stay Pending. The returned error is the
// cause of the fatal failure, or nil.
//
// Run is not interrupted by ctx: a started run always reaches a terminal
// state for the file. ctx is handed to the stage actions.
func (o *Orchestrator) Run(ctx context.Context) ([]model.StageResult, error) {
	results := make([]model.StageResult, len(o.stages))
	for i, stage := range o.stages {
		results[i] = model.StageResult{Name: stage.Name, Kind: stage.Kind.String(), State: model.StagePending}
	}

	// previous is the most recent artifact written by an earlier stage.
	previous := ""
	for i, stage := range o.stages {
		res := &results[i]
		start := time.Now()
		res.State = model.StageRunning
		o.logger.Debug("stage started", "stage", stage.Name, "input", stage.Input)

		err := o.runStage(ctx, stage, res, previous)
		res.Duration = time.Since(start)
		o.observer.StageFinished(stage.Name, res.State, res.Duration)

		if err != nil {
			res.Error = err.Error()
		}
		switch res.State {
		case model.StageFailedFatal:
			o.logger.Error("stage failed, file abandoned", "stage", stage.Name, "error", err)
			return results, fmt.Errorf("stage %s: %w", stage.Name, err)
		case model.StageFailedRecovered:
			o.logger.Warn("stage failed, continuing with previous artifact", "stage", stage.Name, "error", err)
		case model.StageSkipped:
			o.logger.Info("stage skipped, input already processed", "stage", stage.Name)
		default:
			o.logger.Info("stage completed", "stage", stage.Name, "duration", res.Duration)
		}

		if stage.Output != "" {
			previous = stage.Output
		}
	}
	return results, nil
}

// runStage drives one stage to a terminal state and returns the error
// behind a failure state.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, res *model.StageResult, previous string) error {
	fingerprint := ""
	if stage.Output != "" {
		fp, err := FingerprintFile(stage.Input)
		if err != nil {
			res.State = model.StageFailedFatal
			return fmt.Errorf("fingerprint input: %w", err)
		}
		fingerprint = fp
		res.Fingerprint = fp

		if o.memo.Seen(stage.Name, fp) {
			if err := copyFile(stage.Input, stage.Output); err != nil {
				res.State = model.StageFailedFatal
				return err
			}
			res.State = model.StageSkipped
			o.logger.Debug("stage input matches an earlier output", "stage", stage.Name, "fingerprint", fp)
			return nil
		}
	}

	actionErr := stage.Action(ctx, stage.Input, stage.Output)
	if actionErr != nil {
		switch stage.Kind {
		case KindDiagnostic:
			res.State = model.StageFailedRecovered
			return actionErr
		case KindExternal:
			if previous == "" || stage.Output == "" {
				res.State = model.StageFailedFatal
				return fmt.Errorf("no previous artifact to fall back to: %w", actionErr)
			}
			if err := copyFile(previous, stage.Output); err != nil {
				res.State = model.StageFailedFatal
				return errors.Join(actionErr, err)
			}
			res.State = model.StageFailedRecovered
		default:
			res.State = model.StageFailedFatal
			return actionErr
		}
	}

	if stage.Output != "" {
		if _, err := os.Stat(stage.Output); err != nil {
			res.State = model.StageFailedFatal
			return fmt.Errorf("%w: %s", ErrOutputMissing, stage.Output)
		}
	}
	if actionErr != nil {
		return actionErr
	}

	res.State = model.StageCompleted
	if fingerprint != "" {
		produced, err := FingerprintFile(stage.Output)
		if err != nil {
			o.logger.Warn("stage output not memoized", "stage", stage.Name, "error", err)
			return nil
		}
		o.memo.Record(stage.Name, produced)
	}
	return nil
}
