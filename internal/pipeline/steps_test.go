package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/pdfscrub/internal/external"
	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/pdf/pdftest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func stageNames(report *model.FileReport) []string {
	names := make([]string, len(report.Stages))
	for i, s := range report.Stages {
		names[i] = s.Name
	}
	return names
}

func assertNoScratch(t *testing.T, outDir string) {
	t.Helper()

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("scratch entry %s left in the output directory", e.Name())
		}
	}
}

func fakeTools(runner external.Runner) *external.Adapter {
	return external.NewAdapter([]external.Tool{
		{Name: "normalize", Command: "normalize", Args: []string{external.InputPlaceholder, external.OutputPlaceholder}},
	}, external.WithRunner(runner), external.WithLogger(quietLogger()))
}

// TestFileProcessorProcess tests the default stage list end to end.
func TestFileProcessorProcess(t *testing.T) {
	t.Parallel()

	t.Run("cleans a risky document without external tools", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := filepath.Join(t.TempDir(), "PDFs_limpios")
		input := pdftest.WriteFile(t, inDir, "invoice.pdf", pdftest.Risky(t))

		obs := &recordingObserver{}
		p := NewFileProcessor(outDir, WithFileLogger(quietLogger()), WithFileObserver(obs))
		report := p.Process(context.Background(), input)

		if report.Status != model.StatusCleaned {
			t.Fatalf("expected cleaned, got %s (%s)", report.Status, report.Error)
		}
		if report.Output != filepath.Join(outDir, "invoice_limpio.pdf") {
			t.Errorf("unexpected output %s", report.Output)
		}
		want := []string{StageAnalyze, StageIngest, StageSanitize, StageRebuild, StageVerify, StagePublish}
		if got := stageNames(report); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected stages %v, got %v", want, got)
		}
		for _, s := range report.Stages {
			if s.State != model.StageCompleted {
				t.Errorf("stage %s ended %s: %s", s.Name, s.State, s.Error)
			}
		}

		if report.RiskBefore() == 0 {
			t.Error("expected findings before cleaning")
		}
		if report.RiskAfter() != 0 {
			t.Errorf("expected no findings after cleaning, got %d", report.RiskAfter())
		}
		if len(report.Removals) == 0 || report.Rebuild == nil || report.Rebuild.Pages != 2 {
			t.Errorf("unexpected sanitize/rebuild results: %+v %+v", report.Removals, report.Rebuild)
		}
		if report.RunID == "" || report.Fingerprint == "" {
			t.Error("expected run id and fingerprint")
		}

		doc, err := pdf.Open(report.Output)
		if err != nil {
			t.Fatalf("published file does not parse: %v", err)
		}
		if doc.PageCount() != 2 {
			t.Errorf("expected 2 pages, got %d", doc.PageCount())
		}
		assertNoScratch(t, outDir)

		if len(obs.files) != 1 || obs.files[0] != model.StatusCleaned {
			t.Errorf("unexpected file notifications %v", obs.files)
		}
	})

	t.Run("runs external stages through the adapter", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := t.TempDir()
		input := pdftest.WriteFile(t, inDir, "a.pdf", pdftest.Document(t, 1))
		runner := &external.FakeRunner{}

		p := NewFileProcessor(outDir, WithFileLogger(quietLogger()), WithTools(fakeTools(runner)))
		report := p.Process(context.Background(), input)

		if report.Status != model.StatusCleaned {
			t.Fatalf("expected cleaned, got %s (%s)", report.Status, report.Error)
		}
		if _, ok := report.Stage(StageExternalPre); !ok {
			t.Error("expected an external_pre stage")
		}
		if _, ok := report.Stage(StageExternalPost); !ok {
			t.Error("expected an external_post stage")
		}
		if n := len(runner.Calls()); n != 2 {
			t.Errorf("expected 2 tool runs, got %d", n)
		}
		assertNoScratch(t, outDir)
	})

	t.Run("failing tool degrades instead of failing the file", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := t.TempDir()
		input := pdftest.WriteFile(t, inDir, "b.pdf", pdftest.Risky(t))
		runner := &external.FakeRunner{Outcomes: map[string]external.FakeOutcome{
			"normalize": {Result: external.Result{ExitCode: 1, Stderr: "damaged"}},
		}}

		p := NewFileProcessor(outDir, WithFileLogger(quietLogger()), WithTools(fakeTools(runner)))
		report := p.Process(context.Background(), input)

		if report.Status != model.StatusCleaned {
			t.Fatalf("expected cleaned, got %s (%s)", report.Status, report.Error)
		}
		for _, name := range []string{StageExternalPre, StageExternalPost} {
			s, _ := report.Stage(name)
			if s.State != model.StageFailedRecovered {
				t.Errorf("stage %s: expected failed_recovered, got %s", name, s.State)
			}
		}
		if report.RiskAfter() != 0 {
			t.Errorf("expected a clean result, got risk %d", report.RiskAfter())
		}
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		input := writeArtifact(t, dir, "notes.pdf", []byte("plain text"))
		p := NewFileProcessor(t.TempDir(), WithFileLogger(quietLogger()))
		report := p.Process(context.Background(), input)

		if report.Status != model.StatusInvalid {
			t.Errorf("expected invalid, got %s", report.Status)
		}
		if !strings.Contains(report.Error, ErrInputMagic.Error()) {
			t.Errorf("unexpected error %q", report.Error)
		}
		if len(report.Stages) != 0 {
			t.Error("no stage may run for an invalid input")
		}
	})

	t.Run("unparsable document fails the file only", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		outDir := t.TempDir()
		input := writeArtifact(t, dir, "broken.pdf", []byte("%PDF-1.7\nthis is not a document\n"))
		p := NewFileProcessor(outDir, WithFileLogger(quietLogger()))
		report := p.Process(context.Background(), input)

		if report.Status != model.StatusFailed {
			t.Fatalf("expected failed, got %s", report.Status)
		}
		analyze, _ := report.Stage(StageAnalyze)
		if analyze.State != model.StageFailedRecovered {
			t.Errorf("analyze: expected failed_recovered, got %s", analyze.State)
		}
		sanitize, _ := report.Stage(StageSanitize)
		if sanitize.State != model.StageFailedFatal {
			t.Errorf("sanitize: expected failed_fatal, got %s", sanitize.State)
		}
		publish, _ := report.Stage(StagePublish)
		if publish.State != model.StagePending {
			t.Errorf("publish: expected pending, got %s", publish.State)
		}
		if _, err := os.Stat(OutputPath(outDir, input)); !os.IsNotExist(err) {
			t.Error("nothing may be published for a failed file")
		}
		assertNoScratch(t, outDir)
	})
}

// TestFileProcessorMemo tests that runs of one processor share its memo.
func TestFileProcessorMemo(t *testing.T) {
	t.Parallel()

	skipped := func(report *model.FileReport) []string {
		var names []string
		for _, s := range report.Stages {
			if s.State == model.StageSkipped {
				names = append(names, s.Name)
			}
		}
		return names
	}

	t.Run("second run of the same input skips stages and tools", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := t.TempDir()
		input := pdftest.WriteFile(t, inDir, "a.pdf", pdftest.Risky(t))
		runner := &external.FakeRunner{}
		p := NewFileProcessor(outDir, WithFileLogger(quietLogger()), WithTools(fakeTools(runner)))

		first := p.Process(context.Background(), input)
		if first.Status != model.StatusCleaned {
			t.Fatalf("first run: expected cleaned, got %s (%s)", first.Status, first.Error)
		}
		if got := skipped(first); len(got) != 0 {
			t.Errorf("first run skipped %v", got)
		}
		firstCalls := len(runner.Calls())

		second := p.Process(context.Background(), input)
		if second.Status != model.StatusCleaned {
			t.Fatalf("second run: expected cleaned, got %s (%s)", second.Status, second.Error)
		}
		got := skipped(second)
		if !slices.Contains(got, StageIngest) || !slices.Contains(got, StageExternalPre) {
			t.Errorf("expected ingest and external_pre to be skipped, got %v", got)
		}
		if slices.Contains(got, StageSanitize) {
			t.Error("the raw input must still be sanitized")
		}
		if secondCalls := len(runner.Calls()) - firstCalls; secondCalls >= firstCalls {
			t.Errorf("expected fewer tool runs on the second pass, got %d then %d", firstCalls, secondCalls)
		}
		if second.RiskAfter() != 0 {
			t.Errorf("expected a clean result, got risk %d", second.RiskAfter())
		}
		assertNoScratch(t, outDir)
	})

	t.Run("injected memo is shared between processors", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		input := pdftest.WriteFile(t, inDir, "a.pdf", pdftest.Document(t, 1))
		memo := NewMemo()

		a := NewFileProcessor(t.TempDir(), WithFileLogger(quietLogger()), WithFileMemo(memo))
		if r := a.Process(context.Background(), input); r.Status != model.StatusCleaned {
			t.Fatalf("expected cleaned, got %s (%s)", r.Status, r.Error)
		}
		if memo.Len() == 0 {
			t.Fatal("expected the injected memo to be filled")
		}

		b := NewFileProcessor(t.TempDir(), WithFileLogger(quietLogger()), WithFileMemo(memo))
		r := b.Process(context.Background(), input)
		if !slices.Contains(skipped(r), StageIngest) {
			t.Errorf("expected ingest to be skipped through the shared memo, got %v", skipped(r))
		}
	})
}
