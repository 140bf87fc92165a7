// Package mapstore provides the SQLite-backed identity mapping store: the
// persisted (record_type, local_id) → remote_id table that makes repeated
// sync runs idempotent.
//
// Invariants:
//   - at most one entry per (record_type, local_id)
//   - a remote_id, once written, is never reassigned to a different
//     local_id without explicit manual intervention
//   - every successful write commits immediately, so a crash mid-batch
//     leaves already-synced records correctly mapped
package mapstore

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion history, tracked via PRAGMA user_version:
// 0 - initial table
// 1 - unique index on (record_type, remote_id), the reassignment guard
const schemaVersion = 1

// Store is the durable identity mapping store. A single SQLite connection
// in WAL mode serializes all writes, which is the per-key locking the
// concurrency model requires.
type Store struct {
	db *sql.DB
}

// Open creates or opens the mapping database at path. Idempotent: pragmas
// and migrations reapply harmlessly on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open mapping database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to mapping database: %w", err)
	}

	// One connection: SQLite allows a single writer, and a second
	// connection would only surface as SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate mapping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate brings an existing database up to the current schema version.
// Fresh databases already carry everything from schema.sql; the individual
// steps are written to no-op in that case.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version < 1 {
		// Databases created before the reassignment guard lack the
		// remote-id uniqueness index.
		_, err := db.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_identity_remote
			ON identity_mappings(record_type, remote_id)
		`)
		if err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
