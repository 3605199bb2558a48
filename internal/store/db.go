package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the run history database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the history database at path, creating its
// directory and applying pending migrations. A watch daemon and an analyze
// run may write concurrently, so writers wait on a busy database instead of
// failing.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return open(path, "PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000")
}

// OpenInMemory opens an empty in-memory history, used in tests.
func OpenInMemory() (*DB, error) {
	return open(":memory:")
}

func open(dsn string, pragmas ...string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}
	// PRAGMAs and in-memory databases are per connection.
	conn.SetMaxOpenConns(1)

	for _, p := range append(pragmas, "PRAGMA foreign_keys=ON") {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s on %s: %w", p, dsn, err)
		}
	}

	db := &DB{conn: conn, path: dsn}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database location, ":memory:" for in-memory databases.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}
