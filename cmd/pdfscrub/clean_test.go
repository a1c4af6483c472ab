package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/pdfscrub/internal/config"
	"github.com/nao1215/pdfscrub/internal/database"
	"github.com/nao1215/pdfscrub/internal/model"
	"github.com/nao1215/pdfscrub/internal/pdf"
	"github.com/nao1215/pdfscrub/internal/pdf/pdftest"
	"github.com/nao1215/pdfscrub/internal/report"
)

// TestNewCleanCmd tests the clean command flags.
func TestNewCleanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCleanCmd()

	flagsWithShort := map[string]string{
		"output-dir":  "o",
		"concurrency": "j",
		"config":      "c",
		"report":      "r",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}

	for _, flag := range []string{"log-file", "keep-annotations", "no-external", "tool-timeout", "history", "metrics-file", "report-file"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}

	if f := cmd.Flags().Lookup("output-dir"); f != nil && f.DefValue != config.DefaultOutputDir {
		t.Errorf("expected default output dir %q, got %q", config.DefaultOutputDir, f.DefValue)
	}
}

// TestRunCleanCmd tests cleaning files end to end without external tools.
func TestRunCleanCmd(t *testing.T) {
	t.Parallel()

	t.Run("cleans a risky file", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := filepath.Join(t.TempDir(), "PDFs_limpios")
		input := pdftest.WriteFile(t, inDir, "invoice.pdf", pdftest.Risky(t))
		before, err := os.ReadFile(input)
		if err != nil {
			t.Fatal(err)
		}

		out, stderr, err := executeCmd(t, "clean", "--config", writeConfig(t, ""),
			"--no-external", "-o", outDir, input)
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, out)
		}

		output := filepath.Join(outDir, "invoice_limpio.pdf")
		doc, err := pdf.Open(output)
		if err != nil {
			t.Fatalf("cleaned file does not parse: %v", err)
		}
		if doc.PageCount() != 2 {
			t.Errorf("expected 2 pages, got %d", doc.PageCount())
		}

		after, err := os.ReadFile(input)
		if err != nil {
			t.Fatal(err)
		}
		if string(before) != string(after) {
			t.Error("input file was modified")
		}

		if !strings.Contains(out, "PDFSCRUB REPORT") || !strings.Contains(out, "CLEANED") {
			t.Errorf("expected a text report on stdout, got:\n%s", out)
		}
		if !strings.Contains(out, "INFO: file cleaned") {
			t.Errorf("expected log lines on stdout, got:\n%s", out)
		}
		if !strings.Contains(stderr, "[1/1] cleaned: "+input) {
			t.Errorf("expected progress on stderr, got:\n%s", stderr)
		}
	})

	t.Run("no input is a usage error", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "clean", "--config", writeConfig(t, ""), "--no-external")
		if !errors.Is(err, config.ErrNoInput) {
			t.Errorf("expected ErrNoInput, got %v", err)
		}
	})

	t.Run("invalid configuration is an error", func(t *testing.T) {
		t.Parallel()

		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Document(t, 1))
		_, _, err := executeCmd(t, "clean", "--config", writeConfig(t, ""),
			"--no-external", "--report", "pdf", input)
		if !errors.Is(err, config.ErrInvalidReportFormat) {
			t.Errorf("expected ErrInvalidReportFormat, got %v", err)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Document(t, 1))
		_, _, err := executeCmd(t, "clean", "--config", filepath.Join(t.TempDir(), "none.yaml"), input)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid inputs are reported, not fatal", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := t.TempDir()
		good := pdftest.WriteFile(t, inDir, "good.pdf", pdftest.Document(t, 1))
		bad := filepath.Join(inDir, "notes.txt")
		if err := os.WriteFile(bad, []byte("plain text"), 0600); err != nil {
			t.Fatal(err)
		}

		_, stderr, err := executeCmd(t, "clean", "--config", writeConfig(t, ""),
			"--no-external", "--report", "none", "-o", outDir, good, bad, filepath.Join(inDir, "missing.pdf"))
		if err != nil {
			t.Fatalf("expected exit status 0, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(outDir, "good_limpio.pdf")); err != nil {
			t.Errorf("expected the valid file to be cleaned: %v", err)
		}
		if strings.Count(stderr, "invalid: ") != 2 {
			t.Errorf("expected two invalid inputs in the progress, got:\n%s", stderr)
		}
	})

	t.Run("same name from two directories is reported as invalid", func(t *testing.T) {
		t.Parallel()

		outDir := t.TempDir()
		reportPath := filepath.Join(t.TempDir(), "batch.json")
		first := pdftest.WriteFile(t, t.TempDir(), "scan.pdf", pdftest.Document(t, 1))
		second := pdftest.WriteFile(t, t.TempDir(), "scan.pdf", pdftest.Document(t, 3))

		_, stderr, err := executeCmd(t, "clean", "--config", writeConfig(t, ""), "--no-external",
			"-o", outDir, "--report", "json", "--report-file", reportPath, first, second)
		if err != nil {
			t.Fatalf("expected exit status 0, got %v", err)
		}
		if !strings.Contains(stderr, "[1/2] invalid: "+second) {
			t.Errorf("expected the second file rejected before cleaning, got:\n%s", stderr)
		}

		doc, err := pdf.Open(filepath.Join(outDir, "scan_limpio.pdf"))
		if err != nil {
			t.Fatalf("cleaned file does not parse: %v", err)
		}
		if doc.PageCount() != 1 {
			t.Errorf("expected the first file's single page, got %d pages", doc.PageCount())
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		var batch report.Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			t.Fatal(err)
		}
		if len(batch.Files) != 2 {
			t.Fatalf("expected two files in the report, got %d", len(batch.Files))
		}
		if batch.Files[0].Status != model.StatusCleaned {
			t.Errorf("expected the first file cleaned, got %s", batch.Files[0].Status)
		}
		if batch.Files[1].Status != model.StatusInvalid || !strings.Contains(batch.Files[1].Error, "output name already used") {
			t.Errorf("expected a collision for the second file, got %+v", batch.Files[1])
		}
	})

	t.Run("missing required tool is an environment error", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfig(t, `
tools:
  - name: missing
    command: pdfscrub-test-tool-that-does-not-exist
    args: ["{input}", "{output}"]
`)
		outDir := t.TempDir()
		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Document(t, 1))

		out, _, err := executeCmd(t, "clean", "--config", cfgPath, "-o", outDir, input)
		if !errors.Is(err, model.ErrEnvironment) {
			t.Fatalf("expected an environment error, got %v", err)
		}
		if !strings.Contains(out, "FATAL: environment check failed") {
			t.Errorf("expected a fatal log line, got:\n%s", out)
		}
		if _, err := os.Stat(filepath.Join(outDir, "a_limpio.pdf")); !os.IsNotExist(err) {
			t.Error("no file should be processed after an environment error")
		}
	})

	t.Run("missing optional tool is skipped", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfig(t, `
tools:
  - name: missing
    command: pdfscrub-test-tool-that-does-not-exist
    optional: true
    args: ["{input}", "{output}"]
`)
		outDir := t.TempDir()
		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Document(t, 1))

		if _, stderr, err := executeCmd(t, "clean", "--config", cfgPath, "--report", "none", "-o", outDir, input); err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, stderr)
		}
		if _, err := os.Stat(filepath.Join(outDir, "a_limpio.pdf")); err != nil {
			t.Errorf("expected the file to be cleaned: %v", err)
		}
	})

	t.Run("unwritable output directory is an environment error", func(t *testing.T) {
		t.Parallel()

		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0600); err != nil {
			t.Fatal(err)
		}
		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Document(t, 1))

		_, _, err := executeCmd(t, "clean", "--config", writeConfig(t, ""),
			"--no-external", "-o", filepath.Join(blocker, "out"), input)
		if !errors.Is(err, model.ErrEnvironment) {
			t.Errorf("expected an environment error, got %v", err)
		}
	})

	t.Run("writes a JSON batch report to a file", func(t *testing.T) {
		t.Parallel()

		inDir := t.TempDir()
		outDir := t.TempDir()
		reportPath := filepath.Join(t.TempDir(), "reports", "batch.json")
		a := pdftest.WriteFile(t, inDir, "a.pdf", pdftest.Risky(t))
		b := pdftest.WriteFile(t, inDir, "b.pdf", pdftest.Document(t, 3))

		out, _, err := executeCmd(t, "clean", "--config", writeConfig(t, ""), "--no-external",
			"-j", "2", "-o", outDir, "--report", "json", "--report-file", reportPath, a, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out, "PDFSCRUB REPORT") || strings.Contains(out, `"summary"`) {
			t.Errorf("expected the report only in the file, got:\n%s", out)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		var batch report.Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			t.Fatalf("report is not valid JSON: %v", err)
		}
		if batch.Summary.Total != 2 || batch.Summary.Cleaned != 2 {
			t.Errorf("unexpected summary %+v", batch.Summary)
		}
		if len(batch.Files) != 2 || batch.Files[0].Input != a || batch.Files[1].Input != b {
			t.Errorf("expected files in input order, got %+v", batch.Files)
		}
		if batch.Version == "" {
			t.Error("expected the version in the report")
		}
	})

	t.Run("records history and metrics", func(t *testing.T) {
		t.Parallel()

		outDir := t.TempDir()
		metricsPath := filepath.Join(t.TempDir(), "pdfscrub.prom")
		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Risky(t))

		_, _, err := executeCmd(t, "clean", "--config", writeConfig(t, ""), "--no-external",
			"-o", outDir, "--report", "none", "--history", "--metrics-file", metricsPath, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		db, err := database.Open(outDir, database.ReadOnlyOptions())
		if err != nil {
			t.Fatalf("history database not created: %v", err)
		}
		defer db.Close()
		runs, err := db.RunsForInput(t.Context(), input)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].Status != model.StatusCleaned || runs[0].Removals == 0 {
			t.Errorf("unexpected history %+v", runs)
		}

		data, err := os.ReadFile(metricsPath)
		if err != nil {
			t.Fatalf("metrics file not written: %v", err)
		}
		if !strings.Contains(string(data), `pdfscrub_file_total{status="cleaned"} 1`) {
			t.Errorf("expected the cleaned file counter, got:\n%s", data)
		}
	})

	t.Run("log file receives the log lines", func(t *testing.T) {
		t.Parallel()

		logPath := filepath.Join(t.TempDir(), "logs", "pdfscrub.log")
		input := pdftest.WriteFile(t, t.TempDir(), "a.pdf", pdftest.Document(t, 1))

		_, _, err := executeCmd(t, "clean", "--config", writeConfig(t, ""), "--no-external",
			"-o", t.TempDir(), "--report", "none", "--log-file", logPath, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("log file not written: %v", err)
		}
		if !strings.Contains(string(data), "file cleaned") {
			t.Errorf("expected the cleaned message in the log file, got:\n%s", data)
		}
	})
}

// TestBuildConfig tests the precedence of defaults, file and flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `
output_dir: from-file
concurrency: 3
report: markdown
keep_annotations: true
`)

	tests := []struct {
		name            string
		args            []string
		wantOutputDir   string
		wantConcurrency int
		wantReport      string
		wantKeep        bool
	}{
		{
			name:            "file overrides defaults",
			args:            []string{"--config", cfgPath},
			wantOutputDir:   "from-file",
			wantConcurrency: 3,
			wantReport:      config.ReportMarkdown,
			wantKeep:        true,
		},
		{
			name:            "flags override the file",
			args:            []string{"--config", cfgPath, "-o", "from-flag", "-j", "5", "--report", "json", "--keep-annotations=false"},
			wantOutputDir:   "from-flag",
			wantConcurrency: 5,
			wantReport:      config.ReportJSON,
			wantKeep:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewCleanCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			cfg, err := buildConfig(cmd, []string{"a.pdf"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.OutputDir != tt.wantOutputDir {
				t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, tt.wantOutputDir)
			}
			if cfg.Concurrency != tt.wantConcurrency {
				t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, tt.wantConcurrency)
			}
			if cfg.ReportFormat != tt.wantReport {
				t.Errorf("ReportFormat = %q, want %q", cfg.ReportFormat, tt.wantReport)
			}
			if cfg.KeepAnnotations != tt.wantKeep {
				t.Errorf("KeepAnnotations = %v, want %v", cfg.KeepAnnotations, tt.wantKeep)
			}
			if cfg.ConfigFilePath != cfgPath {
				t.Errorf("ConfigFilePath = %q, want %q", cfg.ConfigFilePath, cfgPath)
			}
			if len(cfg.Inputs) != 1 {
				t.Errorf("expected the inputs to be kept, got %v", cfg.Inputs)
			}
		})
	}
}
