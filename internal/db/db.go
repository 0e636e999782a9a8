// Package db provides the local SQLite store of the sync core.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "letsdonate.db"

// DB wraps the sql.DB with Let's Donate specific configuration.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database in dataDir, creating the directory if needed.
// The database is opened with:
// - WAL mode so reads do not block the sync writer
// - a busy timeout instead of immediate SQLITE_BUSY errors
// - a single connection, SQLite allows only one writer
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := configure(db, true); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// OpenMemory opens a private in-memory database. The pool is pinned to one
// connection because every new :memory: connection is a fresh database.
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := configure(db, false); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func configure(db *sql.DB, wal bool) error {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if wal {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
