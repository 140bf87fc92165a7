package engine

import (
	"fmt"
	"strings"
	"time"

	"chartsync/internal/export"
	"chartsync/internal/record"
)

// Outcome classifies what the engine did with one record.
type Outcome string

const (
	// OutcomeCreated: no remote identity existed, a new entity was created.
	OutcomeCreated Outcome = "created"

	// OutcomeUpdated: identity existed and the content changed.
	OutcomeUpdated Outcome = "updated"

	// OutcomeSkippedUnchanged: identity existed and the content hash
	// matched the stored one. No remote call was made.
	OutcomeSkippedUnchanged Outcome = "skipped_unchanged"

	// OutcomeSkippedUnsyncable: the record is missing a required field and
	// must never be sent.
	OutcomeSkippedUnsyncable Outcome = "skipped_unsyncable"

	// OutcomeSkippedNoParent: the record nests under a parent that has no
	// remote identity yet. Resolves itself once the parent syncs.
	OutcomeSkippedNoParent Outcome = "skipped_no_parent"

	// OutcomeSkippedEmpty: the record carries no substantive payload
	// beyond dates, e.g. an exam transaction with no lens data.
	OutcomeSkippedEmpty Outcome = "skipped_empty"

	// OutcomeFailed: the remote rejected the record, retries ran out, or
	// identity resolution was ambiguous.
	OutcomeFailed Outcome = "failed"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeCreated,
	OutcomeUpdated,
	OutcomeSkippedUnchanged,
	OutcomeSkippedUnsyncable,
	OutcomeSkippedNoParent,
	OutcomeSkippedEmpty,
	OutcomeFailed,
}

// RecordResult is the outcome of one record. Only failures and ambiguities
// carry an Error.
type RecordResult struct {
	LocalID  string         `json:"local_id"`
	Line     int            `json:"line"`
	Outcome  Outcome        `json:"outcome"`
	RemoteID string         `json:"remote_id,omitempty"`
	Error    string         `json:"error,omitempty"`
	Issues   []record.Issue `json:"issues,omitempty"`
}

// TypeReport aggregates one record type's run.
type TypeReport struct {
	Type string `json:"type"`

	// Err is set when the type could not run at all (missing export file,
	// unknown type). Per-record failures live in Failures instead.
	Err string `json:"error,omitempty"`

	Load     export.LoadStats `json:"load"`
	Counts   map[Outcome]int  `json:"counts"`
	Failures []RecordResult   `json:"failures,omitempty"`
}

// Processed returns the number of records that reached the engine.
func (t *TypeReport) Processed() int {
	n := 0
	for _, c := range t.Counts {
		n += c
	}
	return n
}

// RunReport is the full result of one sync run.
type RunReport struct {
	RunToken  string        `json:"run_token"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	DryRun    bool          `json:"dry_run"`
	Types     []*TypeReport `json:"types"`
}

// Totals sums outcome counts across types.
func (r *RunReport) Totals() map[Outcome]int {
	totals := make(map[Outcome]int)
	for _, t := range r.Types {
		for o, c := range t.Counts {
			totals[o] += c
		}
	}
	return totals
}

// Failed reports whether any record failed or any type aborted.
func (r *RunReport) Failed() bool {
	for _, t := range r.Types {
		if t.Err != "" || t.Counts[OutcomeFailed] > 0 {
			return true
		}
	}
	return false
}

// Render writes the human-readable run summary.
func (r *RunReport) Render() string {
	var b strings.Builder

	mode := "sync"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(&b, "Run %s (%s), %s\n", r.RunToken, mode, r.Duration.Round(time.Millisecond))

	for _, t := range r.Types {
		fmt.Fprintf(&b, "\n%s:\n", t.Type)
		if t.Err != "" {
			fmt.Fprintf(&b, "  aborted: %s\n", t.Err)
			continue
		}
		fmt.Fprintf(&b, "  loaded %d of %d lines (%d discarded, %s)\n",
			t.Load.Retained, t.Load.TotalLines, t.Load.Discarded, t.Load.Encoding)
		for _, o := range Outcomes {
			if c := t.Counts[o]; c > 0 {
				fmt.Fprintf(&b, "  %-20s %d\n", string(o), c)
			}
		}
		for _, f := range t.Failures {
			fmt.Fprintf(&b, "  FAIL line %d local_id=%s: %s\n", f.Line, f.LocalID, f.Error)
		}
	}

	totals := r.Totals()
	fmt.Fprintf(&b, "\ntotal:")
	for _, o := range Outcomes {
		if c := totals[o]; c > 0 {
			fmt.Fprintf(&b, " %s=%d", string(o), c)
		}
	}
	b.WriteString("\n")
	return b.String()
}
