package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pdfscrub/internal/external"
	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/rebuild"
	"github.com/nao1215/pdfscrub/internal/risk"
	"github.com/nao1215/pdfscrub/internal/sanitize"
)

// Stage names of the default run.
const (
	StageAnalyze      = "analyze"
	StageIngest       = "ingest"
	StageExternalPre  = "external_pre"
	StageSanitize     = "sanitize"
	StageRebuild      = "rebuild"
	StageExternalPost = "external_post"
	StageVerify       = "verify"
	StagePublish      = "publish"
)

// Processor cleans one input file. It never returns a nil report.
type Processor interface {
	Process(ctx context.Context, input string) *model.FileReport
}

// FileProcessor runs the default stage list for one file at a time.
type FileProcessor struct {
	outputDir string
	scanner   *risk.Scanner
	sanitizer *sanitize.Sanitizer
	rebuilder *rebuild.Rebuilder

	// tools drives the external stages. Nil removes them from the run.
	tools *external.Adapter

	// memo is shared by every run of this processor.
	memo *Memo

	logger   *slog.Logger
	observer Observer
}

// FileOption configures a FileProcessor.
type FileOption func(*FileProcessor)

// WithFileLogger sets the logger shared by every component of the run.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(p *FileProcessor) {
		p.logger = logger
	}
}

// WithScanner sets the risk scanner used by the analyze and verify stages.
func WithScanner(s *risk.Scanner) FileOption {
	return func(p *FileProcessor) {
		p.scanner = s
	}
}

// WithSanitizer sets the sanitizer.
func WithSanitizer(s *sanitize.Sanitizer) FileOption {
	return func(p *FileProcessor) {
		p.sanitizer = s
	}
}

// WithRebuilder sets the rebuilder.
func WithRebuilder(r *rebuild.Rebuilder) FileOption {
	return func(p *FileProcessor) {
		p.rebuilder = r
	}
}

// WithTools enables the external stages with the given adapter.
func WithTools(a *external.Adapter) FileOption {
	return func(p *FileProcessor) {
		p.tools = a
	}
}

// WithFileObserver sets the observer for stage and file outcomes.
func WithFileObserver(obs Observer) FileOption {
	return func(p *FileProcessor) {
		if obs != nil {
			p.observer = obs
		}
	}
}

// WithFileMemo sets the memo consulted by every run. Processors created
// for the files of one batch share it this way.
func WithFileMemo(m *Memo) FileOption {
	return func(p *FileProcessor) {
		p.memo = m
	}
}

// NewFileProcessor returns a FileProcessor publishing into outputDir.
// Components not given as options are built with the processor's logger.
func NewFileProcessor(outputDir string, opts ...FileOption) *FileProcessor {
	p := &FileProcessor{
		outputDir: outputDir,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.scanner == nil {
		p.scanner = risk.New(risk.WithLogger(p.logger))
	}
	if p.sanitizer == nil {
		p.sanitizer = sanitize.New(sanitize.WithLogger(p.logger))
	}
	if p.rebuilder == nil {
		p.rebuilder = rebuild.New(rebuild.WithLogger(p.logger))
	}
	if p.memo == nil {
		p.memo = NewMemo()
	}
	return p
}

// fileRun is the state shared by the stages of one run.
type fileRun struct {
	p      *FileProcessor
	report *model.FileReport
	logger *slog.Logger

	// objectStreams is the write option for the rest of the run. The
	// sanitize stage turns it off.
	objectStreams bool
}

// Process checks input, runs every stage in a scratch directory inside
// the output directory and publishes the result as <stem>_limpio.pdf.
// The scratch directory is removed on every path.
func (p *FileProcessor) Process(ctx context.Context, input string) *model.FileReport {
	report := &model.FileReport{
		RunID:   uuid.NewString(),
		Input:   input,
		Started: time.Now(),
	}
	logger := p.logger.With("file", input, "run_id", report.RunID)
	defer func() {
		report.Finished = time.Now()
		p.observer.FileFinished(report.Status, report.Duration())
	}()

	// Batches screen inputs before queuing; the file may have changed
	// since.
	if err := ValidateInput(input); err != nil {
		logger.Error("input rejected", "error", err)
		report.Status = model.StatusInvalid
		report.Error = err.Error()
		return report
	}
	if fp, err := FingerprintFile(input); err == nil {
		report.Fingerprint = fp
	}

	if err := PrepareOutputDir(p.outputDir); err != nil {
		return p.fail(logger, report, err)
	}
	scratch, err := os.MkdirTemp(p.outputDir, ".pdfscrub-"+report.RunID+"-")
	if err != nil {
		return p.fail(logger, report, fmt.Errorf("create scratch directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("scratch directory not removed", "dir", scratch, "error", err)
		}
	}()

	run := &fileRun{p: p, report: report, logger: logger, objectStreams: true}
	output := OutputPath(p.outputDir, input)
	orch := New(WithLogger(logger), WithObserver(p.observer), WithMemo(p.memo))
	orch.AddStages(run.stages(input, scratch, output)...)

	logger.Info("processing file")
	results, err := orch.Run(context.WithoutCancel(ctx))
	report.Stages = results
	if err != nil {
		return p.fail(logger, report, err)
	}

	report.Status = model.StatusCleaned
	report.Output = output
	logger.Info("file cleaned", "output", output, "risk_before", report.RiskBefore(), "risk_after", report.RiskAfter())
	return report
}

func (p *FileProcessor) fail(logger *slog.Logger, report *model.FileReport, err error) *model.FileReport {
	logger.Error("file failed", "error", err)
	report.Status = model.StatusFailed
	report.Error = err.Error()
	return report
}

// stages returns the default stage list. Artifacts are numbered files in
// scratch; the last stage writes output.
func (r *fileRun) stages(input, scratch, output string) []Stage {
	artifact := func(n int, name string) string {
		return filepath.Join(scratch, fmt.Sprintf("%02d-%s.pdf", n, name))
	}

	stages := []Stage{
		{Name: StageAnalyze, Kind: KindDiagnostic, Input: input, Action: r.analyze},
	}
	current := input
	add := func(name string, kind Kind, action Action) {
		out := artifact(len(stages), name)
		stages = append(stages, Stage{Name: name, Kind: kind, Input: current, Output: out, Action: action})
		current = out
	}

	add(StageIngest, KindInternal, ingest)
	if r.p.tools != nil {
		add(StageExternalPre, KindExternal, r.p.tools.Clean)
	}
	add(StageSanitize, KindInternal, r.sanitize)
	add(StageRebuild, KindInternal, r.rebuild)
	if r.p.tools != nil {
		add(StageExternalPost, KindExternal, r.p.tools.Clean)
	}
	stages = append(stages,
		Stage{Name: StageVerify, Kind: KindDiagnostic, Input: current, Action: r.verify},
		Stage{Name: StagePublish, Kind: KindInternal, Input: current, Output: output, Action: publish},
	)
	return stages
}

func (r *fileRun) open(path string) (*pdf.Document, error) {
	return pdf.Open(path, pdf.WithLogger(r.logger))
}

func (r *fileRun) scan(path string) (*model.ScanResult, error) {
	doc, err := r.open(path)
	if err != nil {
		return nil, err
	}
	result := r.p.scanner.Scan(doc)
	return &result, nil
}

func (r *fileRun) analyze(_ context.Context, input, _ string) error {
	result, err := r.scan(input)
	if err != nil {
		return err
	}
	r.report.Before = result
	r.logger.Info("risk analysis", "score", result.Score, "highest", result.Highest().String())
	for _, f := range result.Findings {
		r.logger.Debug("finding", "location", f.Location.String(), "key", f.Key, "severity", f.Severity.String())
	}
	return nil
}

func ingest(_ context.Context, input, output string) error {
	return copyFile(input, output)
}

func (r *fileRun) sanitize(_ context.Context, input, output string) error {
	doc, err := r.open(input)
	if err != nil {
		return err
	}
	res := r.p.sanitizer.Sanitize(doc)
	r.report.Removals = res.Removals
	r.report.StreamsEmptied = res.StreamsEmptied
	r.objectStreams = res.ObjectStreams
	return pdf.WriteFile(output, doc, pdf.WriteOptions{ObjectStreams: r.objectStreams})
}

func (r *fileRun) rebuild(_ context.Context, input, output string) error {
	doc, err := r.open(input)
	if err != nil {
		return err
	}
	rebuilt, stats := r.p.rebuilder.Rebuild(doc)
	r.report.Rebuild = &stats
	return pdf.WriteFile(output, rebuilt, pdf.WriteOptions{ObjectStreams: r.objectStreams})
}

func (r *fileRun) verify(_ context.Context, input, _ string) error {
	result, err := r.scan(input)
	if err != nil {
		return err
	}
	r.report.After = result
	if result.Score > 0 {
		r.logger.Warn("findings remain after cleaning", "score", result.Score)
	}
	return nil
}

func publish(_ context.Context, input, output string) error {
	return copyFile(input, output)
}
