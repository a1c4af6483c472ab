package log

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// linePattern matches the fixed part of every line.
var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] (DEBUG|INFO|WARN|ERROR|FATAL): `)

// TestLineHandler_Format tests the line layout.
func TestLineHandler_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, slog.LevelDebug))
	logger.Info("stream emptied", "object", "12 0", "count", 3)

	line := buf.String()
	if !linePattern.MatchString(line) {
		t.Fatalf("unexpected line format: %q", line)
	}
	if !strings.HasSuffix(line, "INFO: stream emptied object=\"12 0\" count=3\n") {
		t.Errorf("unexpected line: %q", line)
	}
}

// TestLineHandler_Levels tests level tags and filtering.
func TestLineHandler_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		log     func(*slog.Logger)
		want    string
	}{
		{name: "debug hidden by default", verbose: false, log: func(l *slog.Logger) { l.Debug("d") }, want: ""},
		{name: "debug shown when verbose", verbose: true, log: func(l *slog.Logger) { l.Debug("d") }, want: "DEBUG: d"},
		{name: "info", log: func(l *slog.Logger) { l.Info("i") }, want: "INFO: i"},
		{name: "warn", log: func(l *slog.Logger) { l.Warn("w") }, want: "WARN: w"},
		{name: "error", log: func(l *slog.Logger) { l.Error("e") }, want: "ERROR: e"},
		{name: "fatal", log: func(l *slog.Logger) { Fatal(l, "f") }, want: "FATAL: f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.log(NewLogger(&buf, tt.verbose))

			if tt.want == "" {
				if buf.Len() != 0 {
					t.Errorf("expected no output, got %q", buf.String())
				}
				return
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, buf.String())
			}
		})
	}
}

// TestLineHandler_WithAttrsAndGroup tests attributes added ahead of time.
func TestLineHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewLineHandler(&buf, slog.LevelInfo)).With("file", "a.pdf").WithGroup("stage")
	logger.Info("done", "name", "sanitize", slog.Group("stats", "removed", 2))

	want := `INFO: done file=a.pdf stage.name=sanitize stage.stats.removed=2`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q in %q", want, buf.String())
	}
}

// TestSafeHandler_Escapes tests escaping of hostile values.
func TestSafeHandler_Escapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "newline injection", value: "x\n[2024-01-01 00:00:00] INFO: forged", want: `\n[2024-01-01`},
		{name: "terminal escape", value: "\x1b[31mred", want: `\u001b[31mred`},
		{name: "invalid utf8", value: "a\xffb", want: `a\xffb`},
		{name: "error value", value: errors.New("bad\rvalue"), want: `bad\rvalue`},
		{name: "byte slice", value: []byte("js\x00"), want: `js\u0000`},
		{name: "printable text unchanged", value: "app.alert(1)", want: "app.alert(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			NewLogger(&buf, false).Info("value", "v", tt.value)

			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in %q", tt.want, out)
			}
			if strings.Count(out, "\n") != 1 {
				t.Errorf("expected exactly one line, got %q", out)
			}
		})
	}
}

// TestSafeHandler_Truncates tests the length limit.
func TestSafeHandler_Truncates(t *testing.T) {
	t.Parallel()

	h := NewSafeHandler(nil, 10)
	got := h.Escape(strings.Repeat("a", 50))
	if got != strings.Repeat("a", 10)+truncationMark {
		t.Errorf("unexpected truncation: %q", got)
	}

	// A multi-byte rune on the boundary is not split.
	got = h.Escape("aaaaaaaaa" + "é" + "zzz")
	if got != "aaaaaaaaa"+truncationMark {
		t.Errorf("unexpected truncation: %q", got)
	}

	if got := h.Escape("short"); got != "short" {
		t.Errorf("short value changed: %q", got)
	}
}

// TestSafeHandler_WithAttrs tests that pre-bound attributes are escaped.
func TestSafeHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, false).With("file", "evil\nname.pdf")
	logger.Info("processing")

	if !strings.Contains(buf.String(), `evil\nname.pdf`) {
		t.Errorf("expected escaped attribute, got %q", buf.String())
	}
}

// TestNew tests the logger with a log file.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("writes to both outputs", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		path := filepath.Join(t.TempDir(), "logs", "run.log")
		logger, closeLog, err := New(&out, path, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Warn("hello")
		if err := closeLog(); err != nil {
			t.Fatal(err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "WARN: hello") || !strings.Contains(out.String(), "WARN: hello") {
			t.Errorf("expected the line in both outputs: file=%q out=%q", data, out.String())
		}
	})

	t.Run("without log file", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		logger, closeLog, err := New(&out, "", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Debug("x")
		if err := closeLog(); err != nil {
			t.Errorf("unexpected close error: %v", err)
		}
		if !strings.Contains(out.String(), "DEBUG: x") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("unwritable log file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if _, _, err := New(&bytes.Buffer{}, dir, false); err == nil {
			t.Error("expected an error when the log file is a directory")
		}
	})
}
