package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the default database location
const DefaultPath = "/var/lib/sesdiag/history.db"

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// New opens or creates the SQLite database at the given path
func New(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// migrate runs the database schema migrations
func (d *DB) migrate() error {
	// Create schema version table
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Get current version
	var version int
	err = d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	// Run migrations
	migrations := []string{
		migrationV1,
		migrationV2,
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migrationV1 creates the initial schema
const migrationV1 = `
-- One row per watch poll
CREATE TABLE IF NOT EXISTS polls (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL,
    device TEXT NOT NULL,
    generation INTEGER NOT NULL,
    critical INTEGER DEFAULT 0,
    non_critical INTEGER DEFAULT 0,
    unrecoverable INTEGER DEFAULT 0,
    elements INTEGER DEFAULT 0,
    changes INTEGER DEFAULT 0,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_polls_device ON polls(device);
CREATE INDEX IF NOT EXISTS idx_polls_time ON polls(timestamp);

-- Element status transitions between polls
CREATE TABLE IF NOT EXISTS element_events (
    id INTEGER PRIMARY KEY,
    change_id TEXT UNIQUE NOT NULL,
    poll_id INTEGER REFERENCES polls(id),
    device TEXT NOT NULL,
    element_type INTEGER NOT NULL,
    type_group INTEGER NOT NULL,
    element_index INTEGER NOT NULL,
    old_status TEXT,
    new_status TEXT,
    details TEXT,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_device ON element_events(device);
CREATE INDEX IF NOT EXISTS idx_events_time ON element_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_element ON element_events(element_type, type_group, element_index);

-- Alert/notification history
CREATE TABLE IF NOT EXISTS alerts (
    id INTEGER PRIMARY KEY,
    severity TEXT NOT NULL,
    category TEXT NOT NULL,
    message TEXT NOT NULL,
    device TEXT,
    element_type INTEGER,
    type_group INTEGER,
    element_index INTEGER,
    details TEXT,
    acknowledged INTEGER DEFAULT 0,
    ack_timestamp TIMESTAMP,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_unacked ON alerts(acknowledged) WHERE acknowledged = 0;
CREATE INDEX IF NOT EXISTS idx_alerts_time ON alerts(timestamp);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
`

// migrationV2 adds sensor readings for temperature, voltage, current and
// fan speed elements
const migrationV2 = `
CREATE TABLE IF NOT EXISTS readings (
    id INTEGER PRIMARY KEY,
    poll_id INTEGER NOT NULL REFERENCES polls(id),
    element_type INTEGER NOT NULL,
    type_group INTEGER NOT NULL,
    element_index INTEGER NOT NULL,
    quantity TEXT NOT NULL,
    value REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_poll ON readings(poll_id);
`

// Poll represents one recorded watch poll
type Poll struct {
	ID            int64
	RunID         string
	Device        string
	Generation    uint32
	Critical      bool
	NonCritical   bool
	Unrecoverable bool
	Elements      int
	Changes       int
	Timestamp     time.Time
}

// ElementEvent represents an element status transition
type ElementEvent struct {
	ID           int64
	ChangeID     string
	PollID       int64
	Device       string
	ElementType  int
	TypeGroup    int
	ElementIndex int
	OldStatus    string
	NewStatus    string
	Details      string
	Timestamp    time.Time
}

// Alert represents an alert record
type Alert struct {
	ID           int64
	Severity     string
	Category     string
	Message      string
	Device       string
	ElementType  *int
	TypeGroup    *int
	ElementIndex *int
	Details      string
	Acknowledged bool
	AckTimestamp *time.Time
	Timestamp    time.Time
}

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert categories
const (
	CategoryElementFailed    = "element_failed"
	CategoryPredictedFailure = "predicted_failure"
	CategoryElementRemoved   = "element_removed"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
