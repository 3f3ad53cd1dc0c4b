// Package state keeps a local ledger of sync runs in SQLite so each
// invocation can report when the data was last refreshed. Ledger failures
// are never fatal to the pipeline.
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Schema contains the SQL statements for creating the ledger tables
const Schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Requested window
    window_kind TEXT NOT NULL,  -- "year" or "last_7_days"
    after_ts INTEGER NOT NULL,
    before_ts INTEGER NOT NULL,

    -- Outcome
    activities_fetched INTEGER,
    csv_file TEXT,
    files_merged INTEGER,
    error TEXT,

    -- Metadata
    started_at INTEGER NOT NULL,
    completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

// DB wraps the SQLite ledger connection
type DB struct {
	conn *sql.DB
}

// Run is one recorded sync run
type Run struct {
	ID                int64
	WindowKind        string
	AfterTS           int64
	BeforeTS          int64
	ActivitiesFetched *int64
	CSVFile           *string
	FilesMerged       *int64
	Error             *string
	StartedAt         int64
	CompletedAt       *int64
}

// Open opens the ledger database at path, creating the schema if needed
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the ledger connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// StartRun records the beginning of a sync run and returns its id
func (db *DB) StartRun(windowKind string, afterTS, beforeTS int64) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sync_runs (window_kind, after_ts, before_ts, started_at)
		VALUES (?, ?, ?, ?)
	`, windowKind, afterTS, beforeTS, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// FinishRun records a successful run outcome
func (db *DB) FinishRun(id int64, activitiesFetched int64, csvFile string, filesMerged int64) error {
	_, err := db.conn.Exec(`
		UPDATE sync_runs
		SET activities_fetched = ?, csv_file = ?, files_merged = ?, completed_at = ?
		WHERE id = ?
	`, activitiesFetched, csvFile, filesMerged, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}
	return nil
}

// FailRun records a failed run outcome
func (db *DB) FailRun(id int64, runErr string) error {
	_, err := db.conn.Exec(`
		UPDATE sync_runs
		SET error = ?, completed_at = ?
		WHERE id = ?
	`, runErr, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to record run failure: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run, or nil if none exist
func (db *DB) LatestRun() (*Run, error) {
	var r Run
	err := db.conn.QueryRow(`
		SELECT id, window_kind, after_ts, before_ts,
		       activities_fetched, csv_file, files_merged, error,
		       started_at, completed_at
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`).Scan(
		&r.ID, &r.WindowKind, &r.AfterTS, &r.BeforeTS,
		&r.ActivitiesFetched, &r.CSVFile, &r.FilesMerged, &r.Error,
		&r.StartedAt, &r.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &r, nil
}
