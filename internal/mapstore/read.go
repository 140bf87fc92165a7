package mapstore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"
)

// Get returns the mapping entry for (record_type, local_id), or found=false.
func (s *Store) Get(ctx context.Context, recordType, localID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_type, local_id, remote_id, content_hash,
		       first_name, last_name, date_of_birth,
		       run_token, created_at, last_synced_at
		FROM identity_mappings
		WHERE record_type = ? AND local_id = ?
	`, recordType, localID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get mapping: %w", err)
	}
	return e, true, nil
}

// List returns all entries of a record type, ordered by local_id so the
// output is deterministic across runs. Empty recordType lists everything.
func (s *Store) List(ctx context.Context, recordType string) ([]Entry, error) {
	query := `
		SELECT record_type, local_id, remote_id, content_hash,
		       first_name, last_name, date_of_birth,
		       run_token, created_at, last_synced_at
		FROM identity_mappings`
	args := []any{}
	if recordType != "" {
		query += " WHERE record_type = ?"
		args = append(args, recordType)
	}
	query += " ORDER BY record_type ASC, local_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list mappings: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return entries, nil
}

// Stats returns the entry count per record type.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_type, COUNT(*)
		FROM identity_mappings
		GROUP BY record_type
		ORDER BY record_type ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("mapping stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("mapping stats: %w", err)
		}
		stats[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mapping stats: %w", err)
	}
	return stats, nil
}

// ExportCSV writes all mappings as CSV for operator review.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx, "")
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"record_type", "local_id", "remote_id", "content_hash",
		"first_name", "last_name", "date_of_birth",
		"created_at", "last_synced_at",
	}); err != nil {
		return fmt.Errorf("export mappings: %w", err)
	}

	for _, e := range entries {
		if err := cw.Write([]string{
			e.RecordType, e.LocalID, e.RemoteID, e.ContentHash,
			e.FirstName, e.LastName, e.DateOfBirth,
			e.CreatedAt.Format(time.RFC3339), e.LastSynced.Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("export mappings: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var created, synced string
	err := row.Scan(
		&e.RecordType, &e.LocalID, &e.RemoteID, &e.ContentHash,
		&e.FirstName, &e.LastName, &e.DateOfBirth,
		&e.RunToken, &created, &synced,
	)
	if err != nil {
		return Entry{}, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	if e.LastSynced, err = time.Parse(time.RFC3339, synced); err != nil {
		return Entry{}, fmt.Errorf("parse last_synced_at: %w", err)
	}
	return e, nil
}
