package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartsync/internal/mapstore"
	"chartsync/internal/record"
	"chartsync/internal/registry"
	"chartsync/internal/remote"
)

type fakeMappings struct {
	entries map[string]mapstore.Entry
	err     error
}

func (f *fakeMappings) Get(_ context.Context, recordType, localID string) (mapstore.Entry, bool, error) {
	if f.err != nil {
		return mapstore.Entry{}, false, f.err
	}
	e, ok := f.entries[recordType+"/"+localID]
	return e, ok, nil
}

type fakeSearcher struct {
	candidates []remote.Candidate
	err        error
	calls      int
}

func (f *fakeSearcher) Search(_ context.Context, _ remote.SearchCriteria) ([]remote.Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

func patientRecord(localID, first, last string, dob time.Time) *record.CanonicalRecord {
	return &record.CanonicalRecord{
		Type:    "patient",
		LocalID: localID,
		Fields: map[string]record.Value{
			"first_name":    record.StringValue(first),
			"last_name":     record.StringValue(last),
			"date_of_birth": record.DateValue(dob),
		},
	}
}

var dob = time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)

func TestResolve_ExactMapping(t *testing.T) {
	mappings := &fakeMappings{entries: map[string]mapstore.Entry{
		"patient/7081608": {RecordType: "patient", LocalID: "7081608", RemoteID: "91003", ContentHash: "h1"},
	}}
	searcher := &fakeSearcher{}
	r := New(mappings, searcher, nil)

	res, err := r.Resolve(context.Background(), registry.PatientSpec(), patientRecord("7081608", "John", "Smith", dob))
	require.NoError(t, err)

	assert.Equal(t, ConfidenceExact, res.Confidence)
	assert.Equal(t, "91003", res.RemoteID)
	assert.Equal(t, "h1", res.Entry.ContentHash)
	assert.Zero(t, searcher.calls, "mapping hit must not search")
}

func TestResolve_FallbackUniqueMatch(t *testing.T) {
	searcher := &fakeSearcher{candidates: []remote.Candidate{
		{RemoteID: "91003", FirstName: "John", LastName: "Smith", DateOfBirth: "1990-05-15"},
	}}
	r := New(&fakeMappings{}, searcher, nil)

	res, err := r.Resolve(context.Background(), registry.PatientSpec(), patientRecord("7081608", "John", "Smith", dob))
	require.NoError(t, err)

	assert.Equal(t, ConfidenceFallback, res.Confidence)
	assert.Equal(t, "91003", res.RemoteID)
}

func TestResolve_FallbackCaseAndWhitespace(t *testing.T) {
	searcher := &fakeSearcher{candidates: []remote.Candidate{
		{RemoteID: "91003", FirstName: "JOHN", LastName: "van  der Berg", DateOfBirth: "1990-05-15"},
	}}
	r := New(&fakeMappings{}, searcher, nil)

	res, err := r.Resolve(context.Background(), registry.PatientSpec(),
		patientRecord("7081608", "john", "Van Der  Berg", dob))
	require.NoError(t, err)

	assert.Equal(t, ConfidenceFallback, res.Confidence)
}

func TestResolve_FallbackNoMatch(t *testing.T) {
	r := New(&fakeMappings{}, &fakeSearcher{}, nil)

	res, err := r.Resolve(context.Background(), registry.PatientSpec(), patientRecord("7081608", "John", "Smith", dob))
	require.NoError(t, err)

	assert.Equal(t, ConfidenceNone, res.Confidence)
	assert.Empty(t, res.RemoteID)
}

func TestResolve_NearMissFilteredOut(t *testing.T) {
	// Server returned a loose prefix match; it must not count as identity.
	searcher := &fakeSearcher{candidates: []remote.Candidate{
		{RemoteID: "91004", FirstName: "Johnny", LastName: "Smith", DateOfBirth: "1990-05-15"},
	}}
	r := New(&fakeMappings{}, searcher, nil)

	res, err := r.Resolve(context.Background(), registry.PatientSpec(), patientRecord("7081608", "John", "Smith", dob))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceNone, res.Confidence)
}

func TestResolve_AmbiguousNeverAutoPicked(t *testing.T) {
	searcher := &fakeSearcher{candidates: []remote.Candidate{
		{RemoteID: "91003", FirstName: "John", LastName: "Smith", DateOfBirth: "1990-05-15"},
		{RemoteID: "91004", FirstName: "John", LastName: "Smith", DateOfBirth: "1990-05-15"},
	}}
	r := New(&fakeMappings{}, searcher, nil)

	_, err := r.Resolve(context.Background(), registry.PatientSpec(), patientRecord("7081608", "John", "Smith", dob))

	var ambiguous *AmbiguousMatchError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "7081608", ambiguous.LocalID)
	assert.Len(t, ambiguous.Candidates, 2)
	assert.Contains(t, ambiguous.Error(), "91003")
	assert.Contains(t, ambiguous.Error(), "91004")
}

func TestResolve_IncompleteKeySkipsSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(&fakeMappings{}, searcher, nil)

	rec := patientRecord("7081608", "John", "Smith", dob)
	rec.Fields["date_of_birth"] = record.Value{Kind: registry.KindDate}

	res, err := r.Resolve(context.Background(), registry.PatientSpec(), rec)
	require.NoError(t, err)

	assert.Equal(t, ConfidenceNone, res.Confidence)
	assert.Zero(t, searcher.calls)
}

func TestResolve_NoFallbackForNestedTypes(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(&fakeMappings{}, searcher, nil)

	rec := &record.CanonicalRecord{Type: "transaction", LocalID: "T100", Fields: map[string]record.Value{}}
	res, err := r.Resolve(context.Background(), registry.TransactionSpec(), rec)
	require.NoError(t, err)

	assert.Equal(t, ConfidenceNone, res.Confidence)
	assert.Zero(t, searcher.calls)
}

func TestResolve_SearchErrorPropagates(t *testing.T) {
	searcher := &fakeSearcher{err: &remote.UnavailableError{Op: "search patients", StatusCode: 503}}
	r := New(&fakeMappings{}, searcher, nil)

	_, err := r.Resolve(context.Background(), registry.PatientSpec(), patientRecord("7081608", "John", "Smith", dob))

	var unavailable *remote.UnavailableError
	require.True(t, errors.As(err, &unavailable))
}
