// Package store - SQLite history of attendance runs.
package store

import (
	"database/sql"
	"sync"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DB handles SQLite operations.
type DB struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the database at path and migrates its schema.
//
// Arguments:
//   - path: The database file, or ":memory:".
//
// Returns:
//   - *DB: The database, to be released with Close.
//   - error: An error if the file cannot be opened or migrated.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite serializes writers; one connection also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		image TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		grid_rows INTEGER NOT NULL,
		grid_cols INTEGER NOT NULL,
		policy TEXT NOT NULL,
		cutoff REAL NOT NULL,
		person_count INTEGER NOT NULL,
		table_count INTEGER NOT NULL,
		unassigned INTEGER NOT NULL,
		total_seats INTEGER NOT NULL,
		present INTEGER NOT NULL,
		absent INTEGER NOT NULL,
		percentage REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS seats (
		run_id TEXT NOT NULL,
		seat_row INTEGER NOT NULL,
		seat_col INTEGER NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (run_id, seat_row, seat_col),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_image ON runs(image);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
