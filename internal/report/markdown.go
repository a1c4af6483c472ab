package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/pdfscrub/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report of one file in Markdown format.
func (w *MarkdownWriter) Write(report *model.FileReport) (int, error) {
	return w.WriteSimple(model.NewSimpleReport(report))
}

// WriteSimple outputs the simple report in Markdown format.
func (w *MarkdownWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("pdfscrub Report")
	md.PlainText("")
	w.writeFile(md, report, false)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs the batch summary followed by one section per file.
func (w *MarkdownWriter) WriteBatch(batch *Batch) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("pdfscrub Report")
	md.PlainText("")
	w.writeBatchSummary(md, batch)

	for _, f := range batch.Files {
		w.writeFile(md, model.NewSimpleReport(f), true)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFile(md *markdown.Markdown, report *model.SimpleReport, nested bool) {
	if nested {
		md.H2("`" + report.Input + "`")
		md.PlainText("")
	}
	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeRemoved(md, report)
	w.writeFindings(md, report)
}

// writeHeader writes the file information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SimpleReport) {
	rows := [][]string{
		{"Input", "`" + report.Input + "`"},
	}
	if report.Output != "" {
		rows = append(rows, []string{"Output", "`" + report.Output + "`"})
	}
	if !report.DateCleaned.IsZero() {
		rows = append(rows, []string{"Date", report.DateCleaned.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows,
		[]string{"Status", w.getStatusText(report)},
		[]string{"Risk score", riskLine(report)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func riskLine(report *model.SimpleReport) string {
	if report.Status == model.StatusScanned {
		return riskText(report.RiskBefore)
	}
	return riskText(report.RiskBefore) + " → " + riskText(report.RiskAfter)
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.SimpleReport) string {
	switch report.Status {
	case model.StatusCleaned:
		return "✅ Cleaned"
	case model.StatusScanned:
		return "🔍 Scanned"
	case model.StatusInvalid:
		return "⚠️ Invalid input - " + report.Error
	default:
		return "❌ Failed - " + report.Error
	}
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SimpleReport) {
	md.H3("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(report.CriticalCount)},
			{"🟠 High", strconv.Itoa(report.HighCount)},
			{"🟡 Medium", strconv.Itoa(report.MediumCount)},
			{"🔵 Low", strconv.Itoa(report.LowCount)},
			{"⚪ Info", strconv.Itoa(report.InfoCount)},
			{"**Total**", "**" + strconv.Itoa(report.TotalFindings()) + "**"},
		},
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SimpleReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	if report.CriticalCount > 0 {
		chart.LabelAndIntValue("Critical", uint64(report.CriticalCount))
	}
	if report.HighCount > 0 {
		chart.LabelAndIntValue("High", uint64(report.HighCount))
	}
	if report.MediumCount > 0 {
		chart.LabelAndIntValue("Medium", uint64(report.MediumCount))
	}
	if report.LowCount > 0 {
		chart.LabelAndIntValue("Low", uint64(report.LowCount))
	}
	if report.InfoCount > 0 {
		chart.LabelAndIntValue("Info", uint64(report.InfoCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the outcome of the file.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SimpleReport) {
	switch {
	case report.Status == model.StatusFailed:
		md.Cautionf("The file could not be cleaned and no output was written: %s", report.Error)
	case report.Status == model.StatusCleaned && len(report.Remaining) > 0:
		md.Warningf("%d finding(s) remain after cleaning. Review the output before opening it.", len(report.Remaining))
	case report.CriticalCount > 0:
		md.Cautionf("Executable script detected! %d critical finding(s).", report.CriticalCount)
	case report.HighCount > 0:
		md.Warningf("Automatic actions detected. %d high severity finding(s).", report.HighCount)
	case report.MediumCount > 0:
		md.Importantf("Interactive structures found. %d medium severity finding(s).", report.MediumCount)
	case report.TotalFindings() > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No active content detected.")
	}
	md.PlainText("")
}

// writeRemoved lists the removed keys.
func (w *MarkdownWriter) writeRemoved(md *markdown.Markdown, report *model.SimpleReport) {
	if len(report.Removed) == 0 {
		return
	}
	md.H3("Removed")
	md.PlainText("")
	md.BulletList(report.Removed...)
	md.PlainText("")
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.SimpleReport) {
	md.H3("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No active content found.")
		md.PlainText("")
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityCritical, "#### 🔴 Critical"},
		{model.SeverityHigh, "#### 🟠 High"},
		{model.SeverityMedium, "#### 🟡 Medium"},
		{model.SeverityLow, "#### 🔵 Low"},
		{model.SeverityInfo, "#### ⚪ Info"},
	}

	for _, sev := range severities {
		findings := report.FindingsBySeverity(sev.level)
		if len(findings) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.SimpleFinding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			"`" + f.Key + "`",
			f.Location,
			orDash(truncateString(f.Detail, 50)),
			orDash(truncateString(f.Recommendation, 60)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Key", "Location", "Detail", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	seen := make(map[string]bool)
	for _, f := range findings {
		if f.Impact != "" && !seen[f.Key] {
			seen[f.Key] = true
			md.Details(f.Key, f.Impact)
		}
	}
	md.PlainText("")
}

// writeBatchSummary writes the outcome totals of a batch.
func (w *MarkdownWriter) writeBatchSummary(md *markdown.Markdown, batch *Batch) {
	s := batch.Summary
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Files"},
		Rows: [][]string{
			{"✅ Cleaned", strconv.Itoa(s.Cleaned)},
			{"❌ Failed", strconv.Itoa(s.Failed)},
			{"⚠️ Invalid", strconv.Itoa(s.Invalid)},
			{"**Total**", "**" + strconv.Itoa(s.Total) + "**"},
		},
	})
	md.PlainText("")
	md.PlainTextf("%d key(s) removed in %s.", s.Removals, s.Duration.Round(time.Millisecond))
	md.PlainText("")

	if s.Failed > 0 {
		var failed []string
		for _, f := range batch.Files {
			if f.Status == model.StatusFailed {
				failed = append(failed, "`"+f.Input+"`: "+f.Error)
			}
		}
		md.Warningf("%d file(s) failed:\n%s", s.Failed, strings.Join(failed, "\n"))
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pdfscrub](https://github.com/nao1215/pdfscrub)*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
