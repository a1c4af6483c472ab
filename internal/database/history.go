package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pdfscrub/internal/model"
)

// FileName is the name of the database file inside the output directory.
const FileName = "pdfscrub.db"

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB stores one row per processed file.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ReadOnlyOptions opens an existing database without creating it.
func ReadOnlyOptions() Options {
	return Options{EnableWAL: true}
}

// Open opens or creates the HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		input TEXT NOT NULL,
		output TEXT,
		fingerprint TEXT,
		status TEXT NOT NULL,
		risk_before INTEGER,
		risk_after INTEGER,
		removals INTEGER DEFAULT 0,
		report_json TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the summary row of one stored run.
type RunRecord struct {
	ID          int64            `json:"id"`
	RunID       string           `json:"run_id"`
	Input       string           `json:"input"`
	Output      string           `json:"output,omitempty"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Status      model.FileStatus `json:"status"`
	RiskBefore  int              `json:"risk_before"`
	RiskAfter   int              `json:"risk_after"`
	Removals    int              `json:"removals"`
	Timestamp   time.Time        `json:"timestamp"`
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertRun = `
	INSERT INTO runs (run_id, input, output, fingerprint, status, risk_before, risk_after, removals, report_json, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		output = excluded.output,
		status = excluded.status,
		risk_before = excluded.risk_before,
		risk_after = excluded.risk_after,
		removals = excluded.removals,
		report_json = excluded.report_json,
		timestamp = excluded.timestamp
`

// SaveRun stores the report of one file under its absolute input path.
// Saving the same run ID twice replaces the earlier row.
func (hdb *HistoryDB) SaveRun(ctx context.Context, report *model.FileReport) error {
	return saveRun(ctx, hdb.db, report)
}

// SaveRuns stores several reports in one transaction. Nil entries are
// skipped.
func (hdb *HistoryDB) SaveRuns(ctx context.Context, reports []*model.FileReport) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, r := range reports {
		if r == nil {
			continue
		}
		if err := saveRun(ctx, tx, r); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func saveRun(ctx context.Context, db execer, report *model.FileReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	ts := report.Finished
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = db.ExecContext(ctx, upsertRun,
		report.RunID,
		absPath(report.Input),
		report.Output,
		report.Fingerprint,
		string(report.Status),
		report.RiskBefore(),
		report.RiskAfter(),
		len(report.Removals),
		string(reportJSON),
		ts.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const selectRecord = `
	SELECT id, run_id, input, output, fingerprint, status, risk_before, risk_after, removals, timestamp
	FROM runs
`

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (hdb *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := selectRecord + ` ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return hdb.queryRecords(ctx, query, args...)
}

// RunsForInput returns the runs of one input path, most recent first.
// Relative paths are resolved against the working directory, as they are
// when runs are saved.
func (hdb *HistoryDB) RunsForInput(ctx context.Context, input string) ([]RunRecord, error) {
	return hdb.queryRecords(ctx, selectRecord+` WHERE input = ? ORDER BY timestamp DESC, id DESC`, absPath(input))
}

// absPath returns the absolute form of path, or path itself when it
// cannot be resolved.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// RunsForFingerprint returns the runs of inputs with the given content
// fingerprint, most recent first. Renamed copies of a file share it.
func (hdb *HistoryDB) RunsForFingerprint(ctx context.Context, fingerprint string) ([]RunRecord, error) {
	return hdb.queryRecords(ctx, selectRecord+` WHERE fingerprint = ? ORDER BY timestamp DESC, id DESC`, fingerprint)
}

// GetRun returns the full report stored for runID.
func (hdb *HistoryDB) GetRun(ctx context.Context, runID string) (*model.FileReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.FileReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}
	return &report, nil
}

func (hdb *HistoryDB) queryRecords(ctx context.Context, query string, args ...any) ([]RunRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			output    sql.NullString
			fp        sql.NullString
			status    string
			timestamp string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Input,
			&output,
			&fp,
			&status,
			&rec.RiskBefore,
			&rec.RiskAfter,
			&rec.Removals,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Output = output.String
		rec.Fingerprint = fp.String
		rec.Status = model.FileStatus(status)
		rec.Timestamp = parseTimestamp(timestamp)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timeFormat is the fixed-width layout of stored timestamps, so text
// ordering in SQL matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
