package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/pdfscrub/internal/config"
	"github.com/nao1215/pdfscrub/internal/log"
	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/pipeline"
	"github.com/nao1215/pdfscrub/internal/risk"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file.pdf>...",
		Short: "Report active content without cleaning",
		Long: `Scan runs the risk scanner over every input and reports what it finds.
No file is written.

The scanner looks for:
- JavaScript in the catalog, pages, annotations and name trees
- Automatic actions (OpenAction, AA) and launch actions
- Embedded files and interactive forms
- Metadata and EXIF data that identify the author

Examples:
  # Scan one file
  pdfscrub scan invoice.pdf

  # Scan several files and print JSON
  pdfscrub scan --report json *.pdf`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	addCommonFlags(cmd)
	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
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

	scanner := newScanner(cfg, logger)
	reports := make([]*model.SimpleReport, 0, len(cfg.Inputs))
	for _, input := range cfg.Inputs {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		reports = append(reports, scanFile(scanner, input, logger))
	}

	return outputScanReports(cmd, cfg, reports)
}

// scanFile scans one input. Inputs that cannot be read produce a report
// with the error instead of findings.
func scanFile(scanner *risk.Scanner, input string, logger *slog.Logger) *model.SimpleReport {
	logger = logger.With("file", input)

	if err := pipeline.ValidateInput(input); err != nil {
		logger.Error("input rejected", "error", err)
		return model.NewSimpleReport(&model.FileReport{
			Input:  input,
			Status: model.StatusInvalid,
			Error:  err.Error(),
		})
	}

	doc, err := pdf.Open(input, pdf.WithLogger(logger))
	if err != nil {
		logger.Error("file could not be parsed", "error", err)
		return model.NewSimpleReport(&model.FileReport{
			Input:  input,
			Status: model.StatusFailed,
			Error:  err.Error(),
		})
	}

	result := scanner.Scan(doc)
	logger.Info("file scanned", "risk", result.Score)
	return model.NewSimpleScanReport(input, result)
}

// outputScanReports writes one report per scanned file.
func outputScanReports(cmd *cobra.Command, cfg *config.Config, reports []*model.SimpleReport) error {
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
	for _, r := range reports {
		if _, err := w.WriteSimple(r); err != nil {
			return err
		}
	}
	return nil
}
