package mapstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRemoteReassigned is returned when a Put would point an existing
// (record_type, local_id) entry at a different remote_id. Reassignment only
// happens through explicit manual intervention, never through a sync run:
// silently merging two distinct local records into one remote entity is the
// worst failure mode of this system.
var ErrRemoteReassigned = errors.New("mapping already exists with a different remote id")

// ErrRemoteConflict is returned when a Put would bind a remote_id that is
// already mapped to a different local_id of the same record type.
var ErrRemoteConflict = errors.New("remote id already mapped to a different local id")

// Entry is one identity mapping row. The demographic columns exist for
// manual verification when an operator reconciles failures, mirroring what
// the sync writes at create time.
type Entry struct {
	RecordType  string    `json:"record_type"`
	LocalID     string    `json:"local_id"`
	RemoteID    string    `json:"remote_id"`
	ContentHash string    `json:"content_hash"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	RunToken    string    `json:"run_token"`
	CreatedAt   time.Time `json:"created_at"`
	LastSynced  time.Time `json:"last_synced_at"`
}

// Put creates the mapping entry for (record_type, local_id), or refreshes
// the content hash and timestamps when the entry already exists with the
// same remote_id. The commit is durable before Put returns; a crash after a
// successful remote call but before the next record loses nothing.
func (s *Store) Put(ctx context.Context, e Entry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.LastSynced.IsZero() {
		e.LastSynced = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put mapping: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existingRemote string
	err = tx.QueryRowContext(ctx, `
		SELECT remote_id FROM identity_mappings
		WHERE record_type = ? AND local_id = ?
	`, e.RecordType, e.LocalID).Scan(&existingRemote)

	switch {
	case err == nil:
		if existingRemote != e.RemoteID {
			return fmt.Errorf("put mapping (%s/%s → %s, have %s): %w",
				e.RecordType, e.LocalID, e.RemoteID, existingRemote, ErrRemoteReassigned)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE identity_mappings
			SET content_hash = ?, run_token = ?, last_synced_at = ?
			WHERE record_type = ? AND local_id = ?
		`, e.ContentHash, e.RunToken, e.LastSynced.Format(time.RFC3339),
			e.RecordType, e.LocalID)
		if err != nil {
			return fmt.Errorf("put mapping: refresh: %w", err)
		}

	case errors.Is(err, sql.ErrNoRows):
		// Guard against binding a remote id that already belongs to a
		// different local record before hitting the unique index, so the
		// caller gets a typed error instead of a constraint message.
		var otherLocal string
		guardErr := tx.QueryRowContext(ctx, `
			SELECT local_id FROM identity_mappings
			WHERE record_type = ? AND remote_id = ?
		`, e.RecordType, e.RemoteID).Scan(&otherLocal)
		if guardErr == nil {
			return fmt.Errorf("put mapping (%s/%s → %s, remote bound to %s): %w",
				e.RecordType, e.LocalID, e.RemoteID, otherLocal, ErrRemoteConflict)
		}
		if !errors.Is(guardErr, sql.ErrNoRows) {
			return fmt.Errorf("put mapping: remote guard: %w", guardErr)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO identity_mappings
			(record_type, local_id, remote_id, content_hash,
			 first_name, last_name, date_of_birth,
			 run_token, created_at, last_synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.RecordType, e.LocalID, e.RemoteID, e.ContentHash,
			e.FirstName, e.LastName, e.DateOfBirth,
			e.RunToken, e.CreatedAt.Format(time.RFC3339), e.LastSynced.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("put mapping: insert: %w", err)
		}

	default:
		return fmt.Errorf("put mapping: lookup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put mapping: commit: %w", err)
	}
	return nil
}

// Refresh updates the content hash and sync timestamp of an existing entry
// after a successful remote update. Returns false if no entry exists.
func (s *Store) Refresh(ctx context.Context, recordType, localID, contentHash, runToken string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE identity_mappings
		SET content_hash = ?, run_token = ?, last_synced_at = ?
		WHERE record_type = ? AND local_id = ?
	`, contentHash, runToken, time.Now().UTC().Format(time.RFC3339), recordType, localID)
	if err != nil {
		return false, fmt.Errorf("refresh mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refresh mapping: rows affected: %w", err)
	}
	return n > 0, nil
}

// Remove deletes a mapping. Normal sync operation never calls this; it
// exists for the manual-intervention path only.
func (s *Store) Remove(ctx context.Context, recordType, localID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM identity_mappings
		WHERE record_type = ? AND local_id = ?
	`, recordType, localID)
	if err != nil {
		return false, fmt.Errorf("remove mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove mapping: rows affected: %w", err)
	}
	return n > 0, nil
}
