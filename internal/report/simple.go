package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/pdfscrub/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Plain ASCII is used so the output can be piped to files unchanged.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report of one file in human-readable format.
func (w *SimpleWriter) Write(report *model.FileReport) (int, error) {
	return w.WriteSimple(model.NewSimpleReport(report))
}

// WriteSimple outputs the simple report in human-readable format.
func (w *SimpleWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	var sb strings.Builder
	w.writeFile(&sb, report)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs every file of the batch and the batch summary.
func (w *SimpleWriter) WriteBatch(batch *Batch) (int, error) {
	var sb strings.Builder
	for _, f := range batch.Files {
		w.writeFile(&sb, model.NewSimpleReport(f))
	}
	w.writeBatchSummary(&sb, batch.Summary)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeFile(sb *strings.Builder, report *model.SimpleReport) {
	w.writeHeader(sb, report)
	w.writeSummary(sb, report)
	w.writeStages(sb, report)
	w.writeRemoved(sb, report)
	w.writeFindings(sb, report)
	w.writeRemaining(sb, report)
}

// writeHeader writes the report header with file information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SimpleReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          PDFSCRUB REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Input:          %s\n", report.Input)
	if report.Output != "" {
		fmt.Fprintf(sb, "Output:         %s\n", report.Output)
	}
	if !report.DateCleaned.IsZero() {
		fmt.Fprintf(sb, "Date:           %s\n", report.DateCleaned.Format("2006-01-02 15:04:05 MST"))
	}

	switch {
	case report.Error != "":
		fmt.Fprintf(sb, "Status:         %s - %s\n", strings.ToUpper(string(report.Status)), report.Error)
	default:
		fmt.Fprintf(sb, "Status:         %s\n", strings.ToUpper(string(report.Status)))
	}

	if report.Status == model.StatusScanned {
		fmt.Fprintf(sb, "Risk score:     %s\n", riskText(report.RiskBefore))
	} else {
		fmt.Fprintf(sb, "Risk score:     %s -> %s\n", riskText(report.RiskBefore), riskText(report.RiskAfter))
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.SimpleReport) {
	if !report.HasFindings() && !w.showEmpty {
		return
	}
	section(sb, "SEVERITY SUMMARY")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", report.CriticalCount)
	fmt.Fprintf(sb, "  HIGH:     %d\n", report.HighCount)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", report.MediumCount)
	fmt.Fprintf(sb, "  LOW:      %d\n", report.LowCount)
	fmt.Fprintf(sb, "  INFO:     %d\n", report.InfoCount)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n\n", report.TotalFindings())
}

// writeStages lists the pipeline stages and their final state.
func (w *SimpleWriter) writeStages(sb *strings.Builder, report *model.SimpleReport) {
	if len(report.Stages) == 0 || (!w.verbose && report.Error == "") {
		return
	}
	section(sb, "STAGES")
	for _, s := range report.Stages {
		fmt.Fprintf(sb, "  %s\n", s)
	}
	sb.WriteString("\n")
}

// writeRemoved lists the keys deleted by the sanitizer.
func (w *SimpleWriter) writeRemoved(sb *strings.Builder, report *model.SimpleReport) {
	if len(report.Removed) == 0 && !w.showEmpty {
		return
	}
	section(sb, "REMOVED")
	if len(report.Removed) == 0 {
		sb.WriteString("  Nothing removed\n\n")
		return
	}
	for _, r := range report.Removed {
		fmt.Fprintf(sb, "  [-] %s\n", r)
	}
	sb.WriteString("\n")
}

// writeFindings writes all findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.SimpleReport) {
	if !report.HasFindings() && !w.showEmpty {
		return
	}
	section(sb, "FINDINGS")

	severities := []model.Severity{
		model.SeverityCritical,
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
		model.SeverityInfo,
	}

	for _, severity := range severities {
		findings := report.FindingsBySeverity(severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}

		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.SimpleFinding) {
	fmt.Fprintf(sb, "[%s] %s\n", w.getSeverityIndicator(severity), severity.String())

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, finding := range findings {
		fmt.Fprintf(sb, "  * %s\n", finding.Key)
		fmt.Fprintf(sb, "    Location: %s\n", finding.Location)
		if finding.Detail != "" {
			fmt.Fprintf(sb, "    Detail: %s\n", finding.Detail)
		}
		if w.verbose && finding.Impact != "" {
			fmt.Fprintf(sb, "    Impact: %s\n", finding.Impact)
		}
	}
	sb.WriteString("\n")
}

// writeRemaining lists findings still present after cleaning.
func (w *SimpleWriter) writeRemaining(sb *strings.Builder, report *model.SimpleReport) {
	if len(report.Remaining) == 0 {
		return
	}
	section(sb, "REMAINING AFTER CLEANING")
	for _, f := range report.Remaining {
		fmt.Fprintf(sb, "  [%s] %s: %s\n", w.getSeverityIndicator(f.Severity), f.Location, f.Key)
	}
	sb.WriteString("\n")
}

// writeBatchSummary writes the totals of a batch.
func (w *SimpleWriter) writeBatchSummary(sb *strings.Builder, summary model.BatchSummary) {
	section(sb, "BATCH SUMMARY")
	fmt.Fprintf(sb, "  Files:    %d\n", summary.Total)
	fmt.Fprintf(sb, "  Cleaned:  %d\n", summary.Cleaned)
	fmt.Fprintf(sb, "  Failed:   %d\n", summary.Failed)
	fmt.Fprintf(sb, "  Invalid:  %d\n", summary.Invalid)
	fmt.Fprintf(sb, "  Removals: %d\n", summary.Removals)
	fmt.Fprintf(sb, "  Duration: %s\n\n", summary.Duration.Round(time.Millisecond))
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *SimpleWriter) getSeverityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pdfscrub\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
