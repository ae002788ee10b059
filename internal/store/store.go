// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the local SQLite database: an offline mirror of
// conversation metadata, the saved prompt library, and per-round stream
// statistics. Nothing in here is authoritative; the platform is.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("store: not found")
	ErrDatabaseError = errors.New("store: database error")
)

// schemaVersion is bumped on every incompatible schema change; migrate
// runs the steps between the stored version and this one.
const schemaVersion = 2

// =============================================================================
// STORE
// =============================================================================

// Store wraps the local SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMP,
	updated_at TIMESTAMP,
	synced_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS prompts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS rounds (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL,
	assistant       TEXT NOT NULL,
	frames          INTEGER NOT NULL,
	dropped         INTEGER NOT NULL,
	log_entries     INTEGER NOT NULL DEFAULT 0,
	interrupted     INTEGER NOT NULL,
	first_event_ms  INTEGER NOT NULL DEFAULT 0,
	duration_ms     INTEGER NOT NULL,
	started_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_conversation ON rounds(conversation_id);
CREATE INDEX IF NOT EXISTS idx_rounds_started ON rounds(started_at);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var current int
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		return err
	case err != nil:
		return err
	}

	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", current, schemaVersion)
	}

	// v2 added first-event latency and log-entry counts to rounds. Fresh
	// databases get these from the base schema and never reach here.
	if current < 2 {
		steps := []string{
			`ALTER TABLE rounds ADD COLUMN log_entries INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE rounds ADD COLUMN first_event_ms INTEGER NOT NULL DEFAULT 0`,
		}
		for _, step := range steps {
			if _, err := s.db.Exec(step); err != nil {
				return err
			}
		}
	}

	if current < schemaVersion {
		_, err = s.db.Exec(`UPDATE meta SET value = ? WHERE key = 'schema_version'`, schemaVersion)
		return err
	}
	return nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Prune removes cached rows older than the retention window. A zero
// retention keeps everything.
func (s *Store) Prune(ctx context.Context, retention time.Duration) error {
	if retention == 0 {
		return nil
	}
	cutoff := time.Now().Add(-retention)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE synced_at < ?`, cutoff); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM rounds WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Stats reports row counts for the settings screen.
type Stats struct {
	Conversations int
	Prompts       int
	Rounds        int
}

// Stats returns local row counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM prompts),
			(SELECT COUNT(*) FROM rounds)`)
	if err := row.Scan(&st.Conversations, &st.Prompts, &st.Rounds); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return st, nil
}
