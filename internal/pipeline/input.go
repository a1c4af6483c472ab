package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/pdfscrub/internal/model"
)

// OutputSuffix is appended to the stem of every published file.
const OutputSuffix = "_limpio"

// pdfMagic is the header every accepted input starts with.
var pdfMagic = []byte("%PDF")

// ValidateInput checks that path is an existing regular readable file with
// a .pdf extension and the %PDF magic bytes.
func ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return fmt.Errorf("%w: %s: %w", ErrInputUnreadable, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrInputNotRegular, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%w: %s", ErrInputExtension, path)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInputUnreadable, path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return fmt.Errorf("%w: %s", ErrInputMagic, path)
	}
	return nil
}

// OutputPath returns the published path for input inside dir:
// "<dir>/<stem>_limpio.pdf".
func OutputPath(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+OutputSuffix+".pdf")
}

// Screen checks inputs before they are queued for outputDir. It returns
// the indexes of the accepted inputs in order and the rejection of every
// other index. Two inputs with the same stem would publish to the same
// file; the later one is rejected with ErrOutputCollision.
func Screen(inputs []string, outputDir string) ([]int, map[int]error) {
	accepted := make([]int, 0, len(inputs))
	rejected := make(map[int]error)
	claimed := make(map[string]string, len(inputs))

	for i, input := range inputs {
		if err := ValidateInput(input); err != nil {
			rejected[i] = err
			continue
		}
		out := OutputPath(outputDir, input)
		if first, ok := claimed[out]; ok {
			rejected[i] = fmt.Errorf("%w: %s and %s both publish to %s", ErrOutputCollision, first, input, filepath.Base(out))
			continue
		}
		claimed[out] = input
		accepted = append(accepted, i)
	}
	return accepted, rejected
}

// InvalidReport returns the report of an input rejected before queuing.
func InvalidReport(input string, err error) *model.FileReport {
	now := time.Now()
	return &model.FileReport{
		RunID:    uuid.NewString(),
		Input:    input,
		Status:   model.StatusInvalid,
		Error:    err.Error(),
		Started:  now,
		Finished: now,
	}
}

// PrepareOutputDir creates dir when needed and checks that files can be
// created in it. Concurrent calls for the same directory are safe.
func PrepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputNotWritable, dir, err)
	}
	name := tmp.Name()
	_ = tmp.Close()     //nolint:errcheck // empty file
	_ = os.Remove(name) //nolint:errcheck // best-effort cleanup
	return nil
}
