package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nao1215/pdfscrub/internal/config"
	"github.com/nao1215/pdfscrub/internal/database"
	"github.com/nao1215/pdfscrub/internal/external"
	"github.com/nao1215/pdfscrub/internal/log"
	"github.com/nao1215/pdfscrub/internal/metrics"
	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pipeline"
	"github.com/nao1215/pdfscrub/internal/report"
)

// defaultSettle is how long a file must stay unchanged before it is cleaned.
const defaultSettle = time.Second

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Clean PDF files as they appear in a directory",
		Long: `Watch cleans every PDF file created or copied into a directory until
interrupted.

A file is cleaned once no write to it has been seen for the settle time,
so files that are still being copied are not picked up half written.
Files that arrive together are cleaned as one batch. Cleaned copies
(*_limpio.pdf) and subdirectories are ignored.

The environment is checked once at startup, exactly like clean.

Examples:
  # Clean everything dropped into ./inbox
  pdfscrub watch inbox

  # Also clean the PDF files already in the directory
  pdfscrub watch --existing -o /srv/clean inbox`,
		Args: cobra.ExactArgs(1),
		RunE: runWatchCmd,
	}

	addRunFlags(cmd)
	cmd.Flags().Duration("settle", defaultSettle,
		"Time a file must stay unchanged before it is cleaned")
	cmd.Flags().Bool("existing", false,
		"Clean the PDF files already in the directory at startup")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	settle, err := cmd.Flags().GetDuration("settle")
	if err != nil {
		return err
	}
	if settle <= 0 {
		return errors.New("invalid settle time: must be positive")
	}
	existing, err := cmd.Flags().GetBool("existing")
	if err != nil {
		return err
	}

	dir := args[0]
	if info, err := os.Stat(dir); err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", dir)
	}

	logger, closeLog, err := log.New(cmd.OutOrStdout(), cfg.LogFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }() //nolint:errcheck // nothing left to report to

	tools, err := checkEnvironment(cfg, logger)
	if err != nil {
		log.Fatal(logger, "environment check failed", "error", err)
		return err
	}

	output, closeOutput, err := openReportOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }() //nolint:errcheck // reports are written as files finish

	w, err := newDirWatcher(cfg, logger, tools, output, settle)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if existing {
		files, err := existingPDFs(dir)
		if err != nil {
			return err
		}
		w.process(ctx, files)
	}

	return w.Watch(ctx, dir)
}

// dirWatcher feeds settled PDF files from fsnotify events to a batch
// processor.
type dirWatcher struct {
	cfg      *config.Config
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	batch    *pipeline.BatchProcessor
	recorder *metrics.Recorder
	history  *database.HistoryDB

	// writer is nil when no report is requested.
	writer report.Writer

	settle time.Duration

	// pending maps a path to the time of its last event.
	pending map[string]time.Time
}

func newDirWatcher(cfg *config.Config, logger *slog.Logger, tools *external.Adapter, output io.Writer, settle time.Duration) (*dirWatcher, error) {
	var writer report.Writer
	if cfg.ReportFormat != config.ReportNone {
		var err error
		writer, err = newReportWriter(cfg, output)
		if err != nil {
			return nil, err
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	recorder := metrics.NewRecorder()
	return &dirWatcher{
		cfg:     cfg,
		logger:  logger,
		watcher: fsw,
		batch: pipeline.NewBatchProcessor(
			processorFactory(cfg, logger, tools, recorder, pipeline.NewMemo()),
			pipeline.WithConcurrency(cfg.Concurrency),
			pipeline.WithBatchLogger(logger),
		),
		recorder: recorder,
		history:  openHistory(cfg, logger),
		writer:   writer,
		settle:   settle,
		pending:  make(map[string]time.Time),
	}, nil
}

// Close stops the file watcher and closes the history database.
func (w *dirWatcher) Close() {
	_ = w.watcher.Close() //nolint:errcheck // shutting down
	if w.history != nil {
		_ = w.history.Close() //nolint:errcheck // shutting down
	}
}

// Watch blocks until ctx is cancelled, cleaning every settled PDF file
// that appears in dir. Files still settling at cancellation are dropped.
func (w *dirWatcher) Watch(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir, "output_dir", w.cfg.OutputDir, "settle", w.settle)

	timer := time.NewTimer(w.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(w.pending) > 0 {
				w.logger.Warn("watch stopped, unsettled files not cleaned", "pending", len(w.pending))
			}
			w.logger.Info("watch stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.observe(event, time.Now()) {
				timer.Reset(w.settle)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case now := <-timer.C:
			w.process(ctx, w.ready(now))
			if len(w.pending) > 0 {
				timer.Reset(w.settle)
			}
		}
	}
}

// observe records event when it concerns a candidate input and reports
// whether it did.
func (w *dirWatcher) observe(event fsnotify.Event, now time.Time) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if !isCandidate(event.Name) {
		return false
	}
	w.logger.Debug("file event", "file", event.Name, "op", event.Op.String())
	w.pending[event.Name] = now
	return true
}

// ready removes and returns the pending files whose last event is at
// least one settle time before now, in path order.
func (w *dirWatcher) ready(now time.Time) []string {
	var files []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			files = append(files, path)
			delete(w.pending, path)
		}
	}
	slices.Sort(files)
	return files
}

// process cleans files as one batch and publishes the results.
func (w *dirWatcher) process(ctx context.Context, files []string) {
	if len(files) == 0 {
		return
	}

	results := make([]*model.FileReport, len(files))
	queued, positions := screenInputs(files, w.cfg.OutputDir, w.logger, func(r *model.FileReport, index int) {
		results[index] = r
	})
	cleaned, err := w.batch.ProcessBatch(ctx, queued)
	if err != nil {
		w.logger.Warn("batch interrupted", "error", err)
	}
	for i, r := range cleaned {
		results[positions[i]] = r
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		w.recorder.RecordReport(r)
		if w.history != nil {
			if err := w.history.SaveRun(context.WithoutCancel(ctx), r); err != nil {
				w.logger.Error("failed to save run", "file", r.Input, "error", err)
			}
		}
		if w.writer != nil {
			if _, err := w.writer.Write(r); err != nil {
				w.logger.Error("report failed", "file", r.Input, "error", err)
			}
		}
	}

	counts := statusCounts(results)
	w.logger.Info("watch batch finished",
		"cleaned", counts[model.StatusCleaned],
		"failed", counts[model.StatusFailed],
		"invalid", counts[model.StatusInvalid],
	)

	if w.cfg.MetricsFile != "" {
		if err := w.recorder.WriteTextfile(w.cfg.MetricsFile); err != nil {
			w.logger.Error("failed to write metrics", "path", w.cfg.MetricsFile, "error", err)
		}
	}
}

// isCandidate reports whether path may be an input: a .pdf file that is
// neither a cleaned copy nor hidden. Subdirectories are not watched, so
// only an output directory equal to the watched one can produce events
// for cleaned copies.
func isCandidate(path string) bool {
	ext := filepath.Ext(path)
	if !strings.EqualFold(ext, ".pdf") {
		return false
	}
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return !strings.HasSuffix(stem, pipeline.OutputSuffix) && !strings.HasPrefix(stem, ".")
}

// existingPDFs lists the candidate inputs already in dir, in name order.
func existingPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isCandidate(e.Name()) {
			files = append(files, path)
		}
	}
	return files, nil
}

// statusCounts totals reports by status.
func statusCounts(reports []*model.FileReport) map[model.FileStatus]int {
	counts := make(map[model.FileStatus]int)
	for _, r := range reports {
		if r != nil {
			counts[r.Status]++
		}
	}
	return counts
}
