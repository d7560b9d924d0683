// Package journal records capture sessions and their lifecycle messages in
// SQLite for diagnostics. The default database lives in memory, so nothing
// survives a restart unless a file path is configured.
package journal

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// MemoryPath is the DSN of the default in-memory journal.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Journal is a SQLite connection holding the session and event tables.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal at path. An empty path opens an
// in-memory journal.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return j, nil
}

// Path returns the DSN the journal was opened with.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DB returns the underlying database connection.
func (j *Journal) DB() *sql.DB {
	return j.db
}
