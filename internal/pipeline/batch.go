package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pdfscrub/internal/model"
)

// BatchProcessor handles concurrent processing of multiple input files.
// It uses errgroup to manage goroutines and respect the concurrency limit.
// Files share the output directory and whatever the factory hands every
// processor, such as a stage memo. Inputs are expected to be screened
// with Screen before they are queued.
type BatchProcessor struct {
	// processorFactory creates a processor for each file, so that no
	// run state leaks between files.
	processorFactory func() Processor

	// concurrency is the maximum number of files processed at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of files processed at once.
// Default is runtime.NumCPU().
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. processorFactory is
// called once per file.
func NewBatchProcessor(processorFactory func() Processor, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		processorFactory: processorFactory,
		concurrency:      runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Concurrency returns the configured limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatch cleans every input and returns the reports in input order.
// A file that has started always finishes. Cancelling ctx only stops
// files that have not started yet; their slots are nil and ctx.Err() is
// returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, inputs []string) ([]*model.FileReport, error) {
	results := make([]*model.FileReport, len(inputs))
	var mu sync.Mutex

	err := bp.ProcessBatchWithCallback(ctx, inputs, func(report *model.FileReport, index int) {
		mu.Lock()
		results[index] = report
		mu.Unlock()
	})
	return results, err
}

// ProcessBatchWithCallback cleans every input and calls callback for each
// finished file. The callback runs on the goroutine that processed the
// file, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	inputs []string,
	callback func(report *model.FileReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_files", len(inputs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	var launchErr error
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			bp.logger.Warn("batch cancelled, remaining files not started",
				"remaining", len(inputs)-i,
				"reason", err,
			)
			launchErr = err
			break
		}

		g.Go(func() error {
			bp.logger.Debug("processing file",
				"file", input,
				"index", i+1,
				"total", len(inputs),
			)

			report := bp.processorFactory().Process(ctx, input)
			callback(report, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Info("batch processing complete",
		"total_files", len(inputs),
		"elapsed", time.Since(startTime),
	)
	return launchErr
}
