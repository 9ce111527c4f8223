// Package journal records flight sessions and their notable events
// (takeoffs, landings, safety warnings) in SQLite for post-flight review.
package journal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Journal is a SQLite-backed flight log.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal at dbPath and runs migrations.
// Use ":memory:" for a throwaway journal.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	j := &Journal{
		db:   db,
		path: dbPath,
	}

	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// DB returns the underlying database connection.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Path returns the database path the journal was opened with.
func (j *Journal) Path() string {
	return j.path
}
