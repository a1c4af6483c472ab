package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/pdfscrub/internal/model"
)

// TestValidateInput tests input checks performed before queuing.
func TestValidateInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeArtifact(t, dir, "good.pdf", []byte("%PDF-1.7\n"))
	upper := writeArtifact(t, dir, "UPPER.PDF", []byte("%PDF-1.4\n"))
	wrongExt := writeArtifact(t, dir, "doc.txt", []byte("%PDF-1.7\n"))
	wrongMagic := writeArtifact(t, dir, "fake.pdf", []byte("<html>"))
	short := writeArtifact(t, dir, "short.pdf", []byte("%P"))
	subdir := filepath.Join(dir, "folder.pdf")
	if err := os.Mkdir(subdir, 0o750); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "valid file", path: good},
		{name: "upper-case extension", path: upper},
		{name: "missing file", path: filepath.Join(dir, "absent.pdf"), want: ErrInputMissing},
		{name: "directory", path: subdir, want: ErrInputNotRegular},
		{name: "wrong extension", path: wrongExt, want: ErrInputExtension},
		{name: "wrong magic", path: wrongMagic, want: ErrInputMagic},
		{name: "truncated header", path: short, want: ErrInputMagic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateInput(tt.path)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestOutputPath tests the published file name.
func TestOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", filepath.Join("out", "report_limpio.pdf")},
		{filepath.Join("a", "b", "Scan.PDF"), filepath.Join("out", "Scan_limpio.pdf")},
		{"archive.v2.pdf", filepath.Join("out", "archive.v2_limpio.pdf")},
	}
	for _, tt := range tests {
		if got := OutputPath("out", tt.input); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestPrepareOutputDir tests output directory creation.
func TestPrepareOutputDir(t *testing.T) {
	t.Parallel()

	t.Run("creates nested directories concurrently", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "a", "b")
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = PrepareOutputDir(dir)
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("temporary files left behind: %d", len(entries))
		}
	})

	t.Run("path that is a file is an environment error", func(t *testing.T) {
		t.Parallel()

		file := writeArtifact(t, t.TempDir(), "occupied", []byte("x"))
		err := PrepareOutputDir(file)
		if !errors.Is(err, ErrOutputNotWritable) {
			t.Errorf("expected ErrOutputNotWritable, got %v", err)
		}
		if !errors.Is(err, model.ErrEnvironment) {
			t.Errorf("expected an environment error, got %v", err)
		}
	})
}

// TestFingerprint tests content fingerprints.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeArtifact(t, dir, "f", []byte("hello"))

	fromFile, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fromFile != Fingerprint([]byte("hello")) {
		t.Error("file and byte fingerprints differ")
	}
	if len(fromFile) != 64 {
		t.Errorf("expected 64 hex digits, got %d", len(fromFile))
	}
	if Fingerprint([]byte("hello!")) == fromFile {
		t.Error("different content must give a different fingerprint")
	}
	if _, err := FingerprintFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// TestScreen tests the checks run on a batch before queuing.
func TestScreen(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid inputs and keeps order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		a := writeArtifact(t, dir, "a.pdf", []byte("%PDF-1.7\n"))
		bad := writeArtifact(t, dir, "bad.pdf", []byte("nope"))
		b := writeArtifact(t, dir, "b.pdf", []byte("%PDF-1.7\n"))

		accepted, rejected := Screen([]string{a, bad, b}, t.TempDir())
		if len(accepted) != 2 || accepted[0] != 0 || accepted[1] != 2 {
			t.Errorf("expected indexes [0 2], got %v", accepted)
		}
		if !errors.Is(rejected[1], ErrInputMagic) {
			t.Errorf("expected a magic error for index 1, got %v", rejected[1])
		}
	})

	t.Run("same stem from different directories collides", func(t *testing.T) {
		t.Parallel()

		first := writeArtifact(t, t.TempDir(), "report.pdf", []byte("%PDF-1.7\n"))
		second := writeArtifact(t, t.TempDir(), "report.pdf", []byte("%PDF-1.4\n"))
		other := writeArtifact(t, t.TempDir(), "other.pdf", []byte("%PDF-1.4\n"))

		accepted, rejected := Screen([]string{first, second, other}, t.TempDir())
		if len(accepted) != 2 || accepted[0] != 0 || accepted[1] != 2 {
			t.Errorf("expected indexes [0 2], got %v", accepted)
		}
		err := rejected[1]
		if !errors.Is(err, ErrOutputCollision) {
			t.Fatalf("expected a collision for the second file, got %v", err)
		}
		if !strings.Contains(err.Error(), "report_limpio.pdf") {
			t.Errorf("error should name the output, got %q", err)
		}
	})

	t.Run("invalid report", func(t *testing.T) {
		t.Parallel()

		r := InvalidReport("x.pdf", ErrInputMissing)
		if r.Status != model.StatusInvalid || r.Error != ErrInputMissing.Error() || r.RunID == "" {
			t.Errorf("unexpected report %+v", r)
		}
	})
}

// TestMemo tests the processed-input memo.
func TestMemo(t *testing.T) {
	t.Parallel()

	m := NewMemo()
	if m.Seen("sanitize", "abc") {
		t.Error("empty memo must not report entries")
	}
	m.Record("sanitize", "abc")
	if !m.Seen("sanitize", "abc") {
		t.Error("recorded entry not found")
	}
	if m.Seen("rebuild", "abc") {
		t.Error("entries are per stage")
	}
	m.Record("sanitize", "abc")
	if m.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", m.Len())
	}
}
