// Package export reads the raw positional export files the legacy system
// produces. The files are untrusted: no header row, related-record bloat
// rows, blank trailers, and occasional lines the CSV grammar cannot parse.
// The loader's job is to yield plausible rows and count the rest, never to
// fail on malformed input.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultMinSignificance is the minimum count of meaningfully non-empty
// cells a row needs to be retained. Related-record bloat rows carry only a
// couple of populated cells, so a low threshold removes them without
// understanding their structure.
const DefaultMinSignificance = 5

// SourceNotFoundError reports a missing export file. Fatal for the record
// type being loaded; other record types in the run still proceed.
type SourceNotFoundError struct {
	Path string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("export file not found: %s", e.Path)
}

// RawRecord is one retained input line, split into positional cells.
// Ephemeral: it has no identity beyond its line number and is consumed
// immediately by the normalizer.
type RawRecord struct {
	Line  int // 1-based input line number
	Cells []string
}

// LoadStats reports what happened to every input line.
// TotalLines = Retained + Discarded always holds.
type LoadStats struct {
	TotalLines int    `json:"total_lines"`
	Retained   int    `json:"retained"`
	Discarded  int    `json:"discarded"`
	Encoding   string `json:"encoding"`
}

// Options configures a load. The zero value auto-detects the delimiter and
// uses the default significance threshold with no row limit.
type Options struct {
	Delimiter       rune
	MinSignificance int
	Limit           int // 0 = no limit
}

// Load reads the export at path and returns the retained rows. Single pass,
// restartable: the input is immutable during a run, so re-opening the same
// path yields the same sequence. Field-count validation is deliberately NOT
// done here; the normalizer degrades mismatches to per-field diagnostics.
func Load(path string, opts Options) ([]RawRecord, LoadStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, LoadStats{}, &SourceNotFoundError{Path: path}
		}
		return nil, LoadStats{}, fmt.Errorf("read export: %w", err)
	}
	return parse(data, opts)
}

// delimiterSampleLines bounds how much of the file DetectDelimiter reads.
const delimiterSampleLines = 5

func parse(data []byte, opts Options) ([]RawRecord, LoadStats, error) {
	if opts.MinSignificance == 0 {
		opts.MinSignificance = DefaultMinSignificance
	}

	decoded, encName := decode(data)
	stats := LoadStats{Encoding: encName}

	if opts.Delimiter == 0 {
		opts.Delimiter = DetectDelimiter(decoded, delimiterSampleLines)
	}

	var records []RawRecord
	line := 0
	for _, raw := range splitLines(decoded) {
		line++
		stats.TotalLines++

		cells, ok := splitCells(raw, opts.Delimiter)
		if !ok || significance(cells) < opts.MinSignificance {
			stats.Discarded++
			continue
		}

		records = append(records, RawRecord{Line: line, Cells: cells})
		stats.Retained++

		if opts.Limit > 0 && len(records) >= opts.Limit {
			// Remaining lines are neither retained nor discarded; stop
			// counting so the conservation property still holds.
			break
		}
	}

	return records, stats, nil
}

// splitLines splits on \n and drops a trailing \r per line. A trailing empty
// line from a final newline is not an input line.
func splitLines(data []byte) []string {
	parts := strings.Split(string(data), "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

// splitCells parses one line as a CSV record. LazyQuotes because the legacy
// export quotes erratically. A line the CSV grammar still rejects is
// reported as unparseable and discarded by the caller, never an error.
func splitCells(line string, delimiter rune) ([]string, bool) {
	r := csv.NewReader(bytes.NewReader([]byte(line)))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	cells, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Blank line.
			return nil, false
		}
		return nil, false
	}
	return cells, true
}

// significance counts cells that are non-empty after trimming surrounding
// quote characters and whitespace.
func significance(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(strings.Trim(strings.TrimSpace(c), `"`)) != "" {
			n++
		}
	}
	return n
}
