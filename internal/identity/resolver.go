// Package identity resolves local record identity against the remote
// system: the durable mapping store first, then a one-time demographic
// search for records synced before the mapping store existed. An ambiguous
// search result is never auto-picked; the record fails with the candidates
// listed for manual reconciliation.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chartsync/internal/mapstore"
	"chartsync/internal/record"
	"chartsync/internal/registry"
	"chartsync/internal/remote"
)

// Confidence grades how a record's remote identity was established.
type Confidence string

const (
	// ConfidenceExact means the mapping store already held the identity.
	ConfidenceExact Confidence = "exact"

	// ConfidenceFallback means a unique demographic search match was
	// adopted. The mapping is persisted, so the next run resolves exact.
	ConfidenceFallback Confidence = "fallback"

	// ConfidenceNone means the record has no remote identity yet and a
	// new remote entity should be created.
	ConfidenceNone Confidence = "none"
)

// AmbiguousMatchError is returned when the demographic search finds more
// than one candidate. Picking one silently would attach this record's
// history to the wrong person.
type AmbiguousMatchError struct {
	RecordType string
	LocalID    string
	Candidates []remote.Candidate
}

func (e *AmbiguousMatchError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.RemoteID
	}
	return fmt.Sprintf("ambiguous identity for %s/%s: %d remote candidates (%s)",
		e.RecordType, e.LocalID, len(e.Candidates), strings.Join(ids, ", "))
}

// Resolution is the outcome of identity resolution for one record.
type Resolution struct {
	RemoteID   string
	Confidence Confidence

	// Entry is the stored mapping, valid only for ConfidenceExact. It
	// carries the content hash the change detector compares against.
	Entry mapstore.Entry
}

// Mappings is the mapping-store read surface the resolver needs.
type Mappings interface {
	Get(ctx context.Context, recordType, localID string) (mapstore.Entry, bool, error)
}

// Searcher is the remote search surface the resolver needs.
type Searcher interface {
	Search(ctx context.Context, criteria remote.SearchCriteria) ([]remote.Candidate, error)
}

// Resolver resolves record identity. Safe for concurrent use.
type Resolver struct {
	mappings Mappings
	searcher Searcher
	logger   *slog.Logger
}

// New creates a resolver.
func New(mappings Mappings, searcher Searcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{mappings: mappings, searcher: searcher, logger: logger}
}

// Resolve establishes the remote identity of one record. The mapping store
// is authoritative; the demographic search only runs for types that declare
// it, and only when the record carries a complete search key.
func (r *Resolver) Resolve(ctx context.Context, set *registry.FieldSpecSet, rec *record.CanonicalRecord) (Resolution, error) {
	entry, found, err := r.mappings.Get(ctx, rec.Type, rec.LocalID)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %s/%s: %w", rec.Type, rec.LocalID, err)
	}
	if found {
		return Resolution{RemoteID: entry.RemoteID, Confidence: ConfidenceExact, Entry: entry}, nil
	}

	if !set.Remote.FallbackSearch {
		return Resolution{Confidence: ConfidenceNone}, nil
	}

	criteria, ok := searchKey(rec)
	if !ok {
		// Incomplete demographics cannot identify anyone; treat as new.
		return Resolution{Confidence: ConfidenceNone}, nil
	}

	candidates, err := r.searcher.Search(ctx, criteria)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %s/%s: %w", rec.Type, rec.LocalID, err)
	}

	matches := filterCandidates(candidates, criteria)
	switch len(matches) {
	case 0:
		return Resolution{Confidence: ConfidenceNone}, nil
	case 1:
		r.logger.Info("adopted remote identity from demographic match",
			"record_type", rec.Type, "local_id", rec.LocalID, "remote_id", matches[0].RemoteID)
		return Resolution{RemoteID: matches[0].RemoteID, Confidence: ConfidenceFallback}, nil
	default:
		return Resolution{}, &AmbiguousMatchError{
			RecordType: rec.Type,
			LocalID:    rec.LocalID,
			Candidates: matches,
		}
	}
}

// searchKey builds the demographic search criteria. All three keys must be
// present; matching on a partial key risks adopting the wrong person.
func searchKey(rec *record.CanonicalRecord) (remote.SearchCriteria, bool) {
	first := rec.Field("first_name")
	last := rec.Field("last_name")
	dob := rec.Field("date_of_birth")
	if !first.Valid || !last.Valid || !dob.Valid {
		return remote.SearchCriteria{}, false
	}
	c := remote.SearchCriteria{
		FirstName:   canonicalName(first.Remote()),
		LastName:    canonicalName(last.Remote()),
		DateOfBirth: dob.Remote(),
	}
	if c.FirstName == "" || c.LastName == "" || c.DateOfBirth == "" {
		return remote.SearchCriteria{}, false
	}
	return c, true
}

// filterCandidates re-checks the server's matches client-side. The search
// endpoint matches loosely on some deployments; trusting it blindly would
// let a prefix match count as an identity.
func filterCandidates(candidates []remote.Candidate, criteria remote.SearchCriteria) []remote.Candidate {
	var matches []remote.Candidate
	for _, c := range candidates {
		if canonicalName(c.FirstName) == criteria.FirstName &&
			canonicalName(c.LastName) == criteria.LastName &&
			strings.TrimSpace(c.DateOfBirth) == criteria.DateOfBirth {
			matches = append(matches, c)
		}
	}
	return matches
}

// canonicalName lowercases and collapses interior whitespace so that
// "Van  Der Berg" and "van der berg" compare equal.
func canonicalName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
