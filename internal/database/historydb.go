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

	"github.com/nao1215/tbrscan/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "tbrscan.db"

// HistoryDB provides SQLite-based storage for finished scans and the
// results of their points.
//
// Design decision: We use a single database file for every scan rather
// than one file per scan. Looking up earlier results for a parameter set
// then is a single indexed query.
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

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
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

	db.SetMaxOpenConns(1) // SQLite only supports one writer
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

// Path returns the path of the database file.
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
	-- One row per scan
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		tally TEXT NOT NULL,
		template TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at);

	-- One row per scan point; mean and std_dev are NULL for failed points
	CREATE TABLE IF NOT EXISTS scan_points (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		point_index INTEGER NOT NULL,
		params_key TEXT NOT NULL,
		params_json TEXT NOT NULL,
		state TEXT NOT NULL,
		tally TEXT NOT NULL,
		mean REAL,
		std_dev REAL,
		workdir TEXT,
		error TEXT,
		cancelled INTEGER NOT NULL DEFAULT 0,
		started_at TEXT,
		finished_at TEXT,
		UNIQUE(scan_id, point_index)
	);

	CREATE INDEX IF NOT EXISTS idx_points_scan ON scan_points(scan_id);
	CREATE INDEX IF NOT EXISTS idx_points_params ON scan_points(params_key);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// ScanRecord is the stored metadata of one scan.
type ScanRecord struct {
	ID         string    `json:"id"`
	Tally      string    `json:"tally"`
	Template   string    `json:"template"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// Total returns the number of points of the scan.
func (r ScanRecord) Total() int {
	return r.Succeeded + r.Failed
}

// PointRecord is the stored outcome of one scan point.
type PointRecord struct {
	ID         string               `json:"id"`
	ScanID     string               `json:"scan_id"`
	Index      int                  `json:"index"`
	Parameters model.ScanParameters `json:"parameters"`
	State      model.ScanState      `json:"state"`
	Tally      string               `json:"tally"`

	// Value is nil when the point produced no result.
	Value *model.TallyValue `json:"value,omitempty"`

	WorkDir    string    `json:"work_dir,omitempty"`
	Error      string    `json:"error,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SaveScan stores a finished scan and all of its points in one transaction.
func (hdb *HistoryDB) SaveScan(ctx context.Context, summary *model.ScanSummary) (err error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO scans (id, tally, template, started_at, finished_at, succeeded, failed)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		summary.ID.String(),
		summary.Tally,
		summary.Template,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		summary.SucceededCount,
		summary.FailedCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO scan_points (id, scan_id, point_index, params_key, params_json, state, tally,
		mean, std_dev, workdir, error, cancelled, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range summary.Reports {
		if r == nil {
			continue
		}
		paramsJSON, jerr := json.Marshal(r.Parameters)
		if jerr != nil {
			return fmt.Errorf("failed to serialize parameters: %w", jerr)
		}

		var mean, stdDev sql.NullFloat64
		if v, ok := r.Value(summary.Tally); ok {
			mean = sql.NullFloat64{Float64: v.Mean, Valid: true}
			stdDev = sql.NullFloat64{Float64: v.StdDev, Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			r.ID.String(),
			summary.ID.String(),
			r.Index,
			r.Parameters.Key(),
			string(paramsJSON),
			r.State.String(),
			summary.Tally,
			mean,
			stdDev,
			r.WorkDir,
			r.ErrorMessage,
			r.Cancelled,
			formatTimestamp(r.StartedAt),
			formatTimestamp(r.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save scan point %d: %w", r.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}
	return nil
}

// ListScans returns every stored scan, newest first.
func (hdb *HistoryDB) ListScans(ctx context.Context) ([]ScanRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, tally, template, started_at, finished_at, succeeded, failed
	FROM scans
	ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *rec)
	}
	return scans, rows.Err()
}

// GetScan retrieves one scan by ID. It returns nil, nil when no scan has
// that ID. A unique ID prefix is accepted in place of the full ID.
func (hdb *HistoryDB) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	if id == "" {
		return nil, nil
	}
	// The prefix is compared literally; LIKE would treat _ and % as wildcards.
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, tally, template, started_at, finished_at, succeeded, failed
	FROM scans
	WHERE substr(id, 1, length(?)) = ?
	LIMIT 2
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	defer rows.Close()

	var found []*ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		for _, rec := range found {
			if rec.ID == id {
				return rec, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, id)
	}
}

// ErrAmbiguousID is returned by GetScan when a prefix matches several scans.
var ErrAmbiguousID = errors.New("scan id prefix is ambiguous")

// GetScanPoints returns the points of a scan in point order.
func (hdb *HistoryDB) GetScanPoints(ctx context.Context, scanID string) ([]PointRecord, error) {
	return hdb.queryPoints(ctx, `
	SELECT id, scan_id, point_index, params_json, state, tally, mean, std_dev,
		workdir, error, cancelled, started_at, finished_at
	FROM scan_points
	WHERE scan_id = ?
	ORDER BY point_index
	`, scanID)
}

// FindResults returns every stored point evaluated at exactly params,
// newest first, regardless of the scan it belonged to.
func (hdb *HistoryDB) FindResults(ctx context.Context, params model.ScanParameters) ([]PointRecord, error) {
	return hdb.queryPoints(ctx, `
	SELECT p.id, p.scan_id, p.point_index, p.params_json, p.state, p.tally, p.mean, p.std_dev,
		p.workdir, p.error, p.cancelled, p.started_at, p.finished_at
	FROM scan_points p
	JOIN scans s ON s.id = p.scan_id
	WHERE p.params_key = ?
	ORDER BY s.started_at DESC, p.point_index
	`, params.Key())
}

func (hdb *HistoryDB) queryPoints(ctx context.Context, query string, args ...any) ([]PointRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan points: %w", err)
	}
	defer rows.Close()

	var points []PointRecord
	for rows.Next() {
		var (
			rec        PointRecord
			paramsJSON string
			state      string
			mean, std  sql.NullFloat64
			workdir    sql.NullString
			errMsg     sql.NullString
			startedAt  sql.NullString
			finishedAt sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.ScanID,
			&rec.Index,
			&paramsJSON,
			&state,
			&rec.Tally,
			&mean,
			&std,
			&workdir,
			&errMsg,
			&rec.Cancelled,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}

		if err := json.Unmarshal([]byte(paramsJSON), &rec.Parameters); err != nil {
			return nil, fmt.Errorf("failed to parse parameters of point %s: %w", rec.ID, err)
		}
		if rec.State, err = model.ParseScanState(state); err != nil {
			return nil, fmt.Errorf("failed to parse state of point %s: %w", rec.ID, err)
		}
		if mean.Valid && std.Valid {
			rec.Value = &model.TallyValue{Mean: mean.Float64, StdDev: std.Float64}
		}
		rec.WorkDir = workdir.String
		rec.Error = errMsg.String
		rec.StartedAt = parseTimestamp(startedAt.String)
		rec.FinishedAt = parseTimestamp(finishedAt.String)

		points = append(points, rec)
	}
	return points, rows.Err()
}

func scanRecord(rows *sql.Rows) (*ScanRecord, error) {
	var rec ScanRecord
	var startedAt, finishedAt string
	err := rows.Scan(
		&rec.ID,
		&rec.Tally,
		&rec.Template,
		&startedAt,
		&finishedAt,
		&rec.Succeeded,
		&rec.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scan record: %w", err)
	}
	rec.StartedAt = parseTimestamp(startedAt)
	rec.FinishedAt = parseTimestamp(finishedAt)
	return &rec, nil
}

// timestampLayout is fixed width so stored times sort lexically in time
// order. RFC3339Nano trims trailing zeros and would put .1 after .12.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores times in UTC using timestampLayout.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,           // Written by formatTimestamp
	time.RFC3339Nano,          // Older rows
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
