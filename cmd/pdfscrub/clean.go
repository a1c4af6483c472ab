package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/pdfscrub/internal/config"
	"github.com/nao1215/pdfscrub/internal/database"
	"github.com/nao1215/pdfscrub/internal/external"
	"github.com/nao1215/pdfscrub/internal/log"
	"github.com/nao1215/pdfscrub/internal/metrics"
	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pipeline"
	"github.com/nao1215/pdfscrub/internal/rebuild"
	"github.com/nao1215/pdfscrub/internal/report"
	"github.com/nao1215/pdfscrub/internal/risk"
	"github.com/nao1215/pdfscrub/internal/sanitize"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean <file.pdf>...",
		Short: "Remove active content from PDF files",
		Long: `Clean writes a copy of every input without active content.

Each file goes through the same stages:
- analyze: scan the input and record its risk findings
- external_pre: normalize the file with the external tool chain
- sanitize: remove scripts, automatic actions, the name tree and forms
- rebuild: copy the reachable objects into a fresh document
- external_post: run the external tool chain over the rebuilt file
- verify: scan the result again
- publish: write <stem>_limpio.pdf into the output directory

When an external tool fails, the file produced by the previous stage is
carried forward and the run continues. Inputs are never modified.

Before any file is processed, the output directory must be writable and
every required external tool must be installed; otherwise the command
exits with status 1. Files that fail to clean are reported and do not
change the exit status.

Examples:
  # Clean one file into ./PDFs_limpios
  pdfscrub clean invoice.pdf

  # Clean several files, four at a time, into another directory
  pdfscrub clean -j 4 -o /tmp/clean *.pdf

  # Skip qpdf, pdftk and Ghostscript
  pdfscrub clean --no-external invoice.pdf

  # Write a Markdown report and record the runs
  pdfscrub clean --report markdown --report-file report.md --history *.pdf`,
		Args: cobra.ArbitraryArgs,
		RunE: runCleanCmd,
	}

	addRunFlags(cmd)
	return cmd
}

// addRunFlags registers the flags shared by the commands that clean files.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory that receives the cleaned files")
	f.IntP("concurrency", "j", runtime.NumCPU(),
		"Number of files cleaned at the same time")
	f.Bool("keep-annotations", false,
		"Keep page annotations (their actions are still removed)")
	f.Bool("no-external", false,
		"Skip the external tool stages")
	f.Duration("tool-timeout", config.DefaultToolTimeout,
		"Upper bound for one external tool invocation (0 means no limit)")
	f.Bool("history", false,
		"Record every run in "+database.FileName+" inside the output directory")
	f.String("metrics-file", "",
		"Write run metrics in the Prometheus text format to this file")
	addCommonFlags(cmd)
}

// addCommonFlags registers the configuration, logging and report flags.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" in current, XDG config or home directory)")
	f.String("log-file", "",
		"Append log lines to this file as well")
	f.StringP("report", "r", config.DefaultReportFormat,
		"Report format: text, json, markdown or none")
	f.String("report-file", "",
		"Write the report to this file instead of stdout (creates directories if needed)")
}

// runCleanCmd executes the clean command.
func runCleanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(cfg.Inputs) == 0 {
		return config.ErrNoInput
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog, err := log.New(cmd.OutOrStdout(), cfg.LogFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }() //nolint:errcheck // nothing left to report to
	if cfg.ConfigFilePath != "" {
		logger.Debug("configuration loaded", "path", cfg.ConfigFilePath)
	}

	tools, err := checkEnvironment(cfg, logger)
	if err != nil {
		log.Fatal(logger, "environment check failed", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cleanFiles(ctx, cmd, cfg, logger, tools)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the defaults, the configuration file
// and the cobra command flags, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	loaded, err := config.Load(cfg, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ConfigFilePath = loaded

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Inputs = args

	return cfg, nil
}

// applyFlags copies the flags set on the command line into cfg. Flags left
// at their default keep the value from the configuration file. Flags the
// command does not define are never Changed.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("output-dir", func() (e error) { cfg.OutputDir, e = flags.GetString("output-dir"); return })
	set("log-file", func() (e error) { cfg.LogFile, e = flags.GetString("log-file"); return })
	set("concurrency", func() (e error) { cfg.Concurrency, e = flags.GetInt("concurrency"); return })
	set("keep-annotations", func() (e error) { cfg.KeepAnnotations, e = flags.GetBool("keep-annotations"); return })
	set("no-external", func() (e error) { cfg.NoExternal, e = flags.GetBool("no-external"); return })
	set("tool-timeout", func() (e error) { cfg.ToolTimeout, e = flags.GetDuration("tool-timeout"); return })
	set("history", func() (e error) { cfg.History, e = flags.GetBool("history"); return })
	set("metrics-file", func() (e error) { cfg.MetricsFile, e = flags.GetString("metrics-file"); return })
	set("report", func() (e error) { cfg.ReportFormat, e = flags.GetString("report"); return })
	set("report-file", func() (e error) { cfg.ReportFile, e = flags.GetString("report-file"); return })

	return err
}

// checkEnvironment verifies that the output directory is writable and
// that every required external tool is installed. It returns the tool
// adapter, or nil when the external stages are disabled. Errors wrap
// model.ErrEnvironment.
func checkEnvironment(cfg *config.Config, logger *slog.Logger) (*external.Adapter, error) {
	if err := pipeline.PrepareOutputDir(cfg.OutputDir); err != nil {
		return nil, err
	}

	tools := cfg.ExternalTools()
	if len(tools) == 0 {
		logger.Info("external tool stages disabled")
		return nil, nil //nolint:nilnil // no adapter without tools
	}

	adapter := external.NewAdapter(tools,
		external.WithLogger(logger),
		external.WithRunner(external.ExecRunner{Timeout: cfg.ToolTimeout}),
	)
	if err := adapter.Check(); err != nil {
		return nil, err
	}
	return adapter, nil
}

// newScanner builds the risk scanner from the configuration.
func newScanner(cfg *config.Config, logger *slog.Logger) *risk.Scanner {
	return risk.New(
		risk.WithLogger(logger),
		risk.WithScriptAnalysis(cfg.Scanner.ScriptAnalysis),
		risk.WithEXIF(cfg.Scanner.EXIF),
		risk.WithMetadata(cfg.Scanner.Metadata),
	)
}

// processorFactory returns a factory of file processors configured from
// cfg. Every file gets fresh components; the tool adapter, the observer
// and the stage memo are shared.
func processorFactory(cfg *config.Config, logger *slog.Logger, tools *external.Adapter, obs pipeline.Observer, memo *pipeline.Memo) func() pipeline.Processor {
	return func() pipeline.Processor {
		opts := []pipeline.FileOption{
			pipeline.WithFileLogger(logger),
			pipeline.WithScanner(newScanner(cfg, logger)),
			pipeline.WithSanitizer(sanitize.New(
				sanitize.WithLogger(logger),
				sanitize.WithKeepAnnotations(cfg.KeepAnnotations),
			)),
			pipeline.WithRebuilder(rebuild.New(rebuild.WithLogger(logger))),
			pipeline.WithFileObserver(obs),
			pipeline.WithFileMemo(memo),
		}
		if tools != nil {
			opts = append(opts, pipeline.WithTools(tools))
		}
		return pipeline.NewFileProcessor(cfg.OutputDir, opts...)
	}
}

// cleanFiles processes cfg.Inputs concurrently and writes the report,
// history and metrics. Per-file failures are part of the report, not
// errors.
func cleanFiles(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, tools *external.Adapter) error {
	recorder := metrics.NewRecorder()
	history := openHistory(cfg, logger)
	if history != nil {
		defer history.Close()
	}

	bp := pipeline.NewBatchProcessor(
		processorFactory(cfg, logger, tools, recorder, pipeline.NewMemo()),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	reports := make([]*model.FileReport, len(cfg.Inputs))
	progress := cmd.ErrOrStderr()

	var (
		mu   sync.Mutex
		done int
	)
	record := func(r *model.FileReport, index int) {
		recorder.RecordReport(r)

		mu.Lock()
		defer mu.Unlock()
		reports[index] = r
		done++
		fmt.Fprintf(progress, "[%d/%d] %s: %s\n", done, len(cfg.Inputs), r.Status, r.Input)
	}

	queued, positions := screenInputs(cfg.Inputs, cfg.OutputDir, logger, record)
	err := bp.ProcessBatchWithCallback(ctx, queued, func(r *model.FileReport, index int) {
		record(r, positions[index])
	})
	if err != nil {
		logger.Warn("batch interrupted", "error", err)
	}

	batch := report.NewBatch(getVersion(), reports, time.Since(startTime))
	logger.Info("batch finished",
		"total", batch.Summary.Total,
		"cleaned", batch.Summary.Cleaned,
		"failed", batch.Summary.Failed,
		"invalid", batch.Summary.Invalid,
		"elapsed", batch.Summary.Duration,
	)

	// Persisting results is not subject to the interrupt.
	if history != nil {
		if err := history.SaveRuns(context.WithoutCancel(ctx), reports); err != nil {
			logger.Error("failed to save run history", "error", err)
		} else {
			logger.Debug("run history saved", "path", history.Path())
		}
	}
	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	if err := outputBatch(cmd, cfg, batch); err != nil {
		logger.Error("report failed", "error", err)
	}

	return nil
}

// screenInputs rejects inputs that cannot be processed before anything is
// queued. Rejected inputs are passed to reject with their position in
// inputs. It returns the inputs to queue and, for each, its position in
// inputs.
func screenInputs(inputs []string, outputDir string, logger *slog.Logger, reject func(*model.FileReport, int)) ([]string, []int) {
	accepted, rejected := pipeline.Screen(inputs, outputDir)
	for i, input := range inputs {
		if err, ok := rejected[i]; ok {
			logger.Warn("input rejected", "file", input, "error", err)
			reject(pipeline.InvalidReport(input, err), i)
		}
	}

	queued := make([]string, len(accepted))
	for i, pos := range accepted {
		queued[i] = inputs[pos]
	}
	return queued, accepted
}

// openHistory opens the run database in the output directory when history
// is enabled. A database that cannot be opened disables history for this
// run.
func openHistory(cfg *config.Config, logger *slog.Logger) *database.HistoryDB {
	if !cfg.History {
		return nil
	}
	db, err := database.Open(cfg.OutputDir, database.DefaultOptions())
	if err != nil {
		logger.Error("run history disabled", "error", err)
		return nil
	}
	return db
}

// outputBatch writes the batch report in the configured format. A batch
// of one file is written as a single file report.
func outputBatch(cmd *cobra.Command, cfg *config.Config, batch *report.Batch) error {
	if cfg.ReportFormat == config.ReportNone {
		return nil
	}

	output, closeOutput, err := openReportOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }() //nolint:errcheck // write errors are returned below

	w, err := newReportWriter(cfg, output)
	if err != nil {
		return err
	}
	if len(batch.Files) == 1 {
		_, err = w.Write(batch.Files[0])
		return err
	}
	_, err = w.WriteBatch(batch)
	return err
}

// newReportWriter returns the writer for cfg.ReportFormat. The text
// writer lists stages in verbose mode.
func newReportWriter(cfg *config.Config, output io.Writer) (report.Writer, error) {
	if cfg.ReportFormat == config.ReportText {
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose)), nil
	}
	return report.NewWriter(cfg.ReportFormat, output, getVersion())
}

// openReportOutput returns stdout, or the report file created with owner-only
// permissions.
func openReportOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}
