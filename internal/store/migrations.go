package store

import (
	"database/sql"
	"errors"
	"fmt"
)

type migration struct {
	version    int
	statements []string
}

// migrations are applied in order, each in its own transaction.
var migrations = []migration{
	{1, []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL UNIQUE,
			taken_at     TEXT NOT NULL,
			project_root TEXT NOT NULL,
			version      TEXT NOT NULL,
			mean_score   REAL NOT NULL,
			tier         TEXT NOT NULL,
			engine       TEXT NOT NULL,
			components   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS component_scores (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name      TEXT NOT NULL,
			present   BOOLEAN NOT NULL,
			score     REAL NOT NULL,
			artifacts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			priority TEXT NOT NULL,
			subject  TEXT NOT NULL,
			cause    TEXT NOT NULL,
			action   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_statistics (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name   TEXT NOT NULL,
			value  REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_root)`,
		`CREATE INDEX IF NOT EXISTS idx_component_scores_run ON component_scores(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_run ON recommendations(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_run_statistics_run ON run_statistics(run_id)`,
	}},
	// Listing, comparing and pruning all read a project's runs newest first.
	{2, []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_project_recent ON runs(project_root, id DESC)`,
		`DROP INDEX IF EXISTS idx_runs_project`,
	}},
}

// currentSchemaVersion is the version after all migrations.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Migrate applies every migration newer than the stored schema version.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := db.apply(m); err != nil {
			return fmt.Errorf("migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func (db *DB) apply(m migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return err
	}
	return tx.Commit()
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
