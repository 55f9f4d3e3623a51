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

	"github.com/nao1215/credaudit/internal/model"
)

// FileName is the name of the history database inside the data directory.
const FileName = "credaudit.db"

// storedTimeFormat is fixed width so that started_at sorts as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotEnoughHistory is returned by DiffLatest when a target has fewer
// than two successful runs stored.
var ErrNotEnoughHistory = errors.New("at least two successful audit runs are required for a diff")

// AuditDB provides SQLite-based storage for audit reports.
// All targets share a single database file.
type AuditDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures AuditDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an AuditDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*AuditDB, error) {
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

	// mode=rw refuses to create a new file, mode=rwc allows it.
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

	adb := &AuditDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Close closes the database connection.
func (adb *AuditDB) Close() error {
	return adb.db.Close()
}

// Path returns the database file path.
func (adb *AuditDB) Path() string {
	return adb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (adb *AuditDB) createTables() error {
	schema := `
	-- One row per audited target per run
	CREATE TABLE IF NOT EXISTS audit_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		target TEXT NOT NULL,
		started_at TEXT NOT NULL,
		index_fingerprint TEXT,
		counters_json TEXT NOT NULL,
		report_json TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON audit_runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON audit_runs(started_at);

	-- Weak accounts of each run; no cleartext is stored
	CREATE TABLE IF NOT EXISTS weak_accounts (
		run INTEGER NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
		identifier TEXT NOT NULL,
		classification TEXT NOT NULL,
		linked_identifier TEXT,
		PRIMARY KEY (run, identifier)
	);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveAuditReport stores a redacted copy of report and its weak accounts.
// It returns the database ID of the new run.
func (adb *AuditDB) SaveAuditReport(ctx context.Context, report *model.AuditReport) (int64, error) {
	redacted := report.Redacted()

	reportJSON, err := json.Marshal(redacted)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	countersJSON, err := json.Marshal(redacted.Counters)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize counters: %w", err)
	}

	tx, err := adb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO audit_runs (run_id, target, started_at, index_fingerprint, counters_json, report_json, error)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		redacted.ID,
		redacted.Target,
		redacted.StartedAt.UTC().Format(storedTimeFormat),
		redacted.IndexFingerprint,
		string(countersJSON),
		string(reportJSON),
		redacted.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save audit run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO weak_accounts (run, identifier, classification, linked_identifier)
	VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare weak account insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range redacted.WeakResults() {
		if _, err := stmt.ExecContext(ctx, id, r.Identifier, r.Classification.String(), r.LinkedIdentifier); err != nil {
			return 0, fmt.Errorf("failed to save weak account %s: %w", r.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit audit run: %w", err)
	}

	return id, nil
}

// GetLatestAuditReport retrieves the most recent report for target.
// It returns nil without error when the target has no history.
func (adb *AuditDB) GetLatestAuditReport(ctx context.Context, target string) (*model.AuditReport, error) {
	query := `
	SELECT report_json FROM audit_runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	return adb.queryReport(ctx, query, target)
}

// GetAuditReportByID retrieves a report by its database ID.
// It returns nil without error when no such run exists.
func (adb *AuditDB) GetAuditReportByID(ctx context.Context, id int64) (*model.AuditReport, error) {
	return adb.queryReport(ctx, `SELECT report_json FROM audit_runs WHERE id = ?`, id)
}

func (adb *AuditDB) queryReport(ctx context.Context, query string, arg any) (*model.AuditReport, error) {
	var reportJSON string
	err := adb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit report: %w", err)
	}

	var report model.AuditReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListAuditedTargets returns every target with stored history.
func (adb *AuditDB) ListAuditedTargets(ctx context.Context) ([]string, error) {
	rows, err := adb.db.QueryContext(ctx, `SELECT DISTINCT target FROM audit_runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// AuditRunMetadata contains summary information about a stored run.
// This is used for displaying history without loading the full report.
type AuditRunMetadata struct {
	// ID is the database identifier of the run.
	ID int64 `json:"id"`

	// RunID is the report's UUID.
	RunID string `json:"run_id"`

	// Target is the audited account source.
	Target string `json:"target"`

	// Timestamp is when the audit started.
	Timestamp time.Time `json:"timestamp"`

	// IndexFingerprint identifies the weak hash set used.
	IndexFingerprint string `json:"index_fingerprint"`

	// Counters are the run's totals.
	Counters model.Counters `json:"counters"`

	// Error is the message of a failed run.
	Error string `json:"error,omitempty"`
}

// GetAuditHistory retrieves run metadata for target, newest first.
func (adb *AuditDB) GetAuditHistory(ctx context.Context, target string) ([]AuditRunMetadata, error) {
	query := `
	SELECT id, run_id, target, started_at, index_fingerprint, counters_json, error
	FROM audit_runs
	WHERE target = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := adb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit history: %w", err)
	}
	defer rows.Close()

	var results []AuditRunMetadata
	for rows.Next() {
		var meta AuditRunMetadata
		var timestamp string
		var fingerprint, errMsg sql.NullString
		var countersJSON string

		if err := rows.Scan(&meta.ID, &meta.RunID, &meta.Target, &timestamp, &fingerprint, &countersJSON, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.IndexFingerprint = fingerprint.String
		meta.Error = errMsg.String
		if err := json.Unmarshal([]byte(countersJSON), &meta.Counters); err != nil {
			meta.Counters = model.Counters{}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// WeakAccount is one stored weak account of a run.
type WeakAccount struct {
	Identifier       string
	Classification   model.Classification
	LinkedIdentifier string
}

// GetWeakAccounts returns the weak accounts of a run ordered by identifier.
func (adb *AuditDB) GetWeakAccounts(ctx context.Context, id int64) ([]WeakAccount, error) {
	query := `
	SELECT identifier, classification, linked_identifier
	FROM weak_accounts
	WHERE run = ?
	ORDER BY identifier
	`

	rows, err := adb.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get weak accounts: %w", err)
	}
	defer rows.Close()

	var accounts []WeakAccount
	for rows.Next() {
		var wa WeakAccount
		var class string
		var linked sql.NullString
		if err := rows.Scan(&wa.Identifier, &class, &linked); err != nil {
			return nil, fmt.Errorf("failed to scan weak account: %w", err)
		}
		wa.Classification, err = model.ParseClassification(class)
		if err != nil {
			return nil, fmt.Errorf("weak account %s: %w", wa.Identifier, err)
		}
		wa.LinkedIdentifier = linked.String
		accounts = append(accounts, wa)
	}

	return accounts, rows.Err()
}

// WeakDiff compares the weak accounts of two runs of one target.
type WeakDiff struct {
	Previous AuditRunMetadata `json:"previous"`
	Current  AuditRunMetadata `json:"current"`

	// NewlyWeak were not weak in Previous and are weak in Current.
	NewlyWeak []string `json:"newly_weak"`

	// Resolved were weak in Previous and are not weak in Current.
	Resolved []string `json:"resolved"`

	// StillWeak are weak in both runs.
	StillWeak []string `json:"still_weak"`

	// IndexChanged is true when the runs used different weak hash sets,
	// in which case changes may come from the wordlists, not the accounts.
	IndexChanged bool `json:"index_changed"`

	// SkippedFailed lists failed runs newer than Current, newest first.
	// They hold no results and are not compared.
	SkippedFailed []AuditRunMetadata `json:"skipped_failed,omitempty"`
}

// DiffLatest compares the two most recent successful runs of target.
// Failed runs store no results and are skipped; the ones newer than the
// compared pair are listed in SkippedFailed.
// It returns ErrNotEnoughHistory when fewer than two successful runs are stored.
func (adb *AuditDB) DiffLatest(ctx context.Context, target string) (*WeakDiff, error) {
	history, err := adb.GetAuditHistory(ctx, target)
	if err != nil {
		return nil, err
	}

	var succeeded, skipped []AuditRunMetadata
	for _, run := range history {
		if run.Error != "" {
			if len(succeeded) == 0 {
				skipped = append(skipped, run)
			}
			continue
		}
		succeeded = append(succeeded, run)
		if len(succeeded) == 2 {
			break
		}
	}
	if len(succeeded) < 2 {
		return nil, fmt.Errorf("%w: %s has %d successful run(s) of %d",
			ErrNotEnoughHistory, target, len(succeeded), len(history))
	}

	current, previous := succeeded[0], succeeded[1]

	curWeak, err := adb.GetWeakAccounts(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	prevWeak, err := adb.GetWeakAccounts(ctx, previous.ID)
	if err != nil {
		return nil, err
	}

	diff := &WeakDiff{
		Previous:      previous,
		Current:       current,
		IndexChanged:  previous.IndexFingerprint != current.IndexFingerprint,
		SkippedFailed: skipped,
	}

	prevSet := make(map[string]struct{}, len(prevWeak))
	for _, wa := range prevWeak {
		prevSet[wa.Identifier] = struct{}{}
	}
	curSet := make(map[string]struct{}, len(curWeak))
	for _, wa := range curWeak {
		curSet[wa.Identifier] = struct{}{}
		if _, ok := prevSet[wa.Identifier]; ok {
			diff.StillWeak = append(diff.StillWeak, wa.Identifier)
		} else {
			diff.NewlyWeak = append(diff.NewlyWeak, wa.Identifier)
		}
	}
	for _, wa := range prevWeak {
		if _, ok := curSet[wa.Identifier]; !ok {
			diff.Resolved = append(diff.Resolved, wa.Identifier)
		}
	}

	return diff, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // RFC3339 with nanoseconds, as written by SaveAuditReport
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
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
