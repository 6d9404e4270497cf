package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Migrations are applied sequentially at startup, each in its own
// transaction, gated by the single-row schema_version marker. The list is
// append-only: released steps are never edited.
var migrations = []struct {
	version int
	sql     string
}{
	{1, `
		CREATE TABLE songs (
			id INTEGER PRIMARY KEY,
			title TEXT,
			artist TEXT,
			release_year INTEGER,
			cover_url TEXT
		);

		CREATE TABLE url_jobs (
			song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			output TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL
		);

		CREATE TABLE file_jobs (
			song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			state TEXT NOT NULL
		);

		CREATE TABLE game_plays (
			game_id INTEGER NOT NULL,
			song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			PRIMARY KEY (game_id, song_id)
		);
	`},
	// File jobs originally had nowhere to record a failure; both job kinds
	// now share the same diagnostic column.
	{2, `
		ALTER TABLE file_jobs ADD COLUMN output TEXT NOT NULL DEFAULT '';
	`},
	{3, `
		CREATE INDEX idx_url_jobs_state ON url_jobs(state);
		CREATE INDEX idx_file_jobs_state ON file_jobs(state);
	`},
}

func (db *DB) migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("ensure schema_version: %w", err)
	}

	var version int
	err := db.Get(&version, `SELECT version FROM schema_version LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.Get(&version, `SELECT version FROM schema_version LIMIT 1`)
	return version, err
}
