package pipeline

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Memo records, per stage name, the fingerprints of the artifacts the
// stage has produced. An input carrying one of them is already in the
// state the stage leaves a file in, so the stage is skipped and the input
// copied through. A Memo is safe for concurrent use and is shared by the
// files of a batch or a watch session.
type Memo struct {
	mu   sync.Mutex
	seen map[memoKey]struct{}
}

type memoKey struct {
	stage       string
	fingerprint string
}

// NewMemo returns an empty memo.
func NewMemo() *Memo {
	return &Memo{seen: make(map[memoKey]struct{})}
}

// Seen reports whether stage has produced an artifact with this fingerprint.
func (m *Memo) Seen(stage, fingerprint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[memoKey{stage, fingerprint}]
	return ok
}

// Record notes that stage produced an artifact with this fingerprint.
func (m *Memo) Record(stage, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[memoKey{stage, fingerprint}] = struct{}{}
}

// Len returns the number of recorded entries.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// FingerprintFile returns the hex BLAKE2b-256 digest of a file.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("blake2b: %w", err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// copyFile copies src to dst through a temporary file in dst's directory,
// so dst is either absent or complete.
func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()           //nolint:errcheck // copy error wins
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return err
	}
	return nil
}
