package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/pdfscrub/internal/model"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Batch is the result of one clean invocation over many files.
type Batch struct {
	// Version is the pdfscrub version that produced the batch.
	Version string `json:"version"`

	// Generated is when the batch finished.
	Generated time.Time `json:"generated"`

	// Summary counts the terminal outcomes.
	Summary model.BatchSummary `json:"summary"`

	// Files holds one report per processed input, in input order.
	Files []*model.FileReport `json:"files"`
}

// NewBatch builds a Batch from the processor results. Files that never
// started are left out of Files but still counted in the summary total.
func NewBatch(version string, reports []*model.FileReport, elapsed time.Duration) *Batch {
	files := make([]*model.FileReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			files = append(files, r)
		}
	}
	return &Batch{
		Version:   version,
		Generated: time.Now(),
		Summary:   model.Summarize(reports, elapsed),
		Files:     files,
	}
}

// Writer defines the interface for report output.
// Implementations write results in various formats.
type Writer interface {
	// Write outputs the report of one file.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.FileReport) (int, error)

	// WriteSimple outputs only the simple report portion.
	WriteSimple(report *model.SimpleReport) (int, error)

	// WriteBatch outputs every file of a batch followed by its summary.
	WriteBatch(batch *Batch) (int, error)
}

// NewWriter returns the writer for a format name: text, json or markdown.
// The format "none" returns a nil Writer and no error.
func NewWriter(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case "text", "":
		return NewSimpleWriter(output), nil
	case "json":
		return NewFullJSONWriter(output, version, WithPrettyPrint()), nil
	case "markdown":
		return NewMarkdownWriter(output), nil
	case "none":
		return nil, nil //nolint:nilnil // no report requested
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.FileReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(report) })
}

// WriteSimple outputs the simple report to all configured Writers.
func (m *MultiWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSimple(report) })
}

// WriteBatch outputs the batch to all configured Writers.
func (m *MultiWriter) WriteBatch(batch *Batch) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteBatch(batch) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// riskText formats a risk score, with -1 meaning not measured.
func riskText(score int) string {
	if score < 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d", score)
}
