package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Level returns the minimum level for the given verbosity: Debug when
// verbose, Info otherwise.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewLogger returns a logger writing escaped single-line records to w.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSafeHandler(NewLineHandler(w, Level(verbose)), DefaultMaxValueLen))
}

// New returns a logger writing to out and, when logFile is not empty, to
// that file as well. The file is opened for appending and closed by the
// returned function.
func New(out io.Writer, logFile string, verbose bool) (*slog.Logger, func() error, error) {
	if logFile == "" {
		return NewLogger(out, verbose), func() error { return nil }, nil
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLogger(io.MultiWriter(out, f), verbose), f.Close, nil
}

// Fatal logs msg at LevelFatal. It does not exit; the caller decides how
// the process ends.
func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFatal, msg, args...)
}
