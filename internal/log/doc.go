// Package log builds the loggers used by pdfscrub, on top of log/slog.
//
// LineHandler writes one human-readable line per record:
//
//	[2006-01-02 15:04:05] WARN: stream could not be decoded object="12 0"
//
// SafeHandler wraps any handler and neutralizes attribute values before
// they reach it. Values often come straight out of hostile documents
// (script snippets, metadata strings), so control characters and invalid
// UTF-8 are escaped and long values are cut.
//
// # Usage
//
//	logger, closeLog, err := log.New(os.Stdout, "run.log", verbose)
//	if err != nil {
//	    return err
//	}
//	defer closeLog()
//	logger.Info("processing file", "file", path)
package log
