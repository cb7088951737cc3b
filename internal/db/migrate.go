package db

import (
	"database/sql"
	"fmt"
)

// All contains the ordered list of migrations to apply.
var All = []string{
	`CREATE TABLE runs (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL,
		progress   INTEGER NOT NULL DEFAULT 0,
		stories    INTEGER NOT NULL DEFAULT 0,
		degraded   INTEGER NOT NULL DEFAULT 0,
		error      TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
		updated_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER))
	)`,
	`CREATE TABLE test_cases (
		id          INTEGER PRIMARY KEY,
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		story_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		description TEXT NOT NULL,
		steps       TEXT NOT NULL,
		results     TEXT NOT NULL
	)`,
	`CREATE INDEX test_cases_run ON test_cases(run_id, position)`,
	`CREATE TABLE features (
		id         INTEGER PRIMARY KEY,
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path       TEXT NOT NULL,
		mode       TEXT NOT NULL,
		content    TEXT NOT NULL,
		steps      INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER))
	)`,
}

// Migrate brings db up to len(All), one transaction per migration. The
// schema_version row always holds the number of migrations applied.
func Migrate(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	for n := current + 1; n <= len(All); n++ {
		if err := apply(db, n, All[n-1]); err != nil {
			return err
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("creating schema_version table: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO schema_version (version)
		SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM schema_version)`); err != nil {
		return 0, fmt.Errorf("initializing schema version: %w", err)
	}
	var v int
	if err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func apply(db *sql.DB, n int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", n, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("migration %d failed: %w", n, err)
	}
	if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, n); err != nil {
		return fmt.Errorf("updating schema version to %d: %w", n, err)
	}
	return tx.Commit()
}
