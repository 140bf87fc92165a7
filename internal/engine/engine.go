// Package engine orchestrates a sync run: load each record type's export,
// normalize rows to canonical records, resolve remote identity, and create
// or update remote entities, skipping records whose content hash matches
// the last synced state. One record's failure never aborts the run unless
// configured to; the mapping store commits after every successful remote
// write, so a crash mid-run loses nothing already synced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"chartsync/internal/config"
	"chartsync/internal/export"
	"chartsync/internal/identity"
	"chartsync/internal/mapstore"
	"chartsync/internal/normalize"
	"chartsync/internal/record"
	"chartsync/internal/registry"
	"chartsync/internal/remote"
)

// RemoteClient is the remote write surface the engine needs.
type RemoteClient interface {
	Create(ctx context.Context, resource string, entity remote.Entity) (string, error)
	Update(ctx context.Context, resource, remoteID string, entity remote.Entity) error
}

// Resolver is the identity resolution surface the engine needs.
type Resolver interface {
	Resolve(ctx context.Context, set *registry.FieldSpecSet, rec *record.CanonicalRecord) (identity.Resolution, error)
}

// Mappings is the mapping-store surface the engine needs.
type Mappings interface {
	Get(ctx context.Context, recordType, localID string) (mapstore.Entry, bool, error)
	Put(ctx context.Context, e mapstore.Entry) error
	Refresh(ctx context.Context, recordType, localID, contentHash, runToken string) (bool, error)
}

// Engine runs the sync. Record types run sequentially, parents before
// children, so a transaction synced in the same run as its patient finds
// the patient's fresh mapping.
type Engine struct {
	registry *registry.Registry
	client   RemoteClient
	resolver Resolver
	mappings Mappings
	tokens   RunTokenGenerator
	logger   *slog.Logger

	sync    config.SyncConfig
	sources map[string]config.SourceConfig
}

// New creates an engine.
func New(reg *registry.Registry, client RemoteClient, resolver Resolver, mappings Mappings,
	tokens RunTokenGenerator, cfg *config.Config, logger *slog.Logger) *Engine {
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	sync := cfg.Sync
	if sync.BatchSize <= 0 {
		sync.BatchSize = config.DefaultBatchSize
	}
	return &Engine{
		registry: reg,
		client:   client,
		resolver: resolver,
		mappings: mappings,
		tokens:   tokens,
		logger:   logger,
		sync:     sync,
		sources:  cfg.Sources,
	}
}

// ErrRunAborted is returned when abort_on_first_error is set and a record
// failed. The report still describes everything processed up to the abort.
var ErrRunAborted = errors.New("run aborted on first failure")

// Run executes one sync pass over every configured record type and returns
// the run report. The returned error is non-nil only for abort conditions;
// per-record and per-type failures live in the report.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunToken:  e.tokens.Generate(),
		StartedAt: time.Now().UTC(),
		DryRun:    e.sync.DryRun,
	}

	e.logger.Info("starting run",
		"run_token", report.RunToken, "dry_run", e.sync.DryRun,
		"types", len(e.sources), "batch_size", e.sync.BatchSize)

	var runErr error
	for _, typeName := range e.typeOrder() {
		tr, err := e.syncType(ctx, report.RunToken, typeName)
		report.Types = append(report.Types, tr)
		if err != nil {
			runErr = err
			break
		}
	}

	report.Duration = time.Since(report.StartedAt)
	e.logger.Info("run finished",
		"run_token", report.RunToken, "duration", report.Duration,
		"failed", report.Failed())
	return report, runErr
}

// typeOrder sorts the configured types so parent types sync before the
// types that nest under them, alphabetically within each tier.
func (e *Engine) typeOrder() []string {
	var parents, children []string
	for name := range e.sources {
		set, err := e.registry.Resolve(name)
		if err == nil && set.Remote.ParentType != "" {
			children = append(children, name)
			continue
		}
		parents = append(parents, name)
	}
	sort.Strings(parents)
	sort.Strings(children)
	return append(parents, children...)
}

func (e *Engine) syncType(ctx context.Context, runToken, typeName string) (*TypeReport, error) {
	tr := &TypeReport{Type: typeName, Counts: make(map[Outcome]int)}

	set, err := e.registry.Resolve(typeName)
	if err != nil {
		tr.Err = err.Error()
		return tr, nil
	}

	src := e.sources[typeName]
	raw, stats, err := export.Load(src.Path, export.Options{
		Delimiter:       delimiterRune(src.Delimiter),
		MinSignificance: src.MinSignificance,
		Limit:           src.Limit,
	})
	tr.Load = stats
	if err != nil {
		// A missing export aborts this type only; the rest of the run
		// proceeds.
		tr.Err = err.Error()
		e.logger.Error("type aborted", "type", typeName, "error", err)
		return tr, nil
	}

	e.logger.Info("loaded export",
		"type", typeName, "path", src.Path,
		"retained", stats.Retained, "discarded", stats.Discarded, "encoding", stats.Encoding)

	norm := normalize.New(set, src.DateFormats)
	batchSize := e.sync.BatchSize

	for start := 0; start < len(raw); start += batchSize {
		end := start + batchSize
		if end > len(raw) {
			end = len(raw)
		}
		e.logger.Info("processing batch",
			"type", typeName, "from", start+1, "to", end, "of", len(raw))

		for _, row := range raw[start:end] {
			if ctx.Err() != nil {
				return tr, fmt.Errorf("run interrupted: %w", ctx.Err())
			}

			rec := norm.Normalize(row)
			res := e.processRecord(ctx, runToken, set, rec)
			tr.Counts[res.Outcome]++
			if res.Outcome == OutcomeFailed {
				tr.Failures = append(tr.Failures, res)
				e.logger.Error("record failed",
					"type", typeName, "local_id", res.LocalID, "line", res.Line, "error", res.Error)
				if e.sync.AbortOnFirstError {
					return tr, ErrRunAborted
				}
			}
		}
	}

	return tr, nil
}

// processRecord runs the per-record state machine. It never returns an
// error; every failure mode is an outcome.
func (e *Engine) processRecord(ctx context.Context, runToken string, set *registry.FieldSpecSet, rec *record.CanonicalRecord) RecordResult {
	result := RecordResult{LocalID: rec.LocalID, Line: rec.Line, Issues: rec.Issues}

	if rec.Unsyncable {
		result.Outcome = OutcomeSkippedUnsyncable
		return result
	}

	payload := rec.RemotePayload(set)

	resource := set.Remote.Resource
	if set.Remote.ParentField != "" {
		parentResource, parentRemoteID, outcome, err := e.resolveParent(ctx, set, rec)
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Error = err.Error()
			return result
		}
		if outcome != "" {
			result.Outcome = outcome
			return result
		}
		resource = parentResource + "/" + parentRemoteID + "/" + set.Remote.Resource

		if emptyChildPayload(set, rec) {
			result.Outcome = OutcomeSkippedEmpty
			return result
		}
	}

	// The external reference rides along on every create and update so a
	// remote-side duplicate is always traceable to its local record.
	payload[set.Remote.ExternalIDField] = rec.LocalID
	hash := record.ContentHash(payload)

	resolution, err := e.resolver.Resolve(ctx, set, rec)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}
	result.RemoteID = resolution.RemoteID

	switch resolution.Confidence {
	case identity.ConfidenceExact:
		if resolution.Entry.ContentHash == hash {
			result.Outcome = OutcomeSkippedUnchanged
			return result
		}
		return e.update(ctx, runToken, rec, resource, resolution.RemoteID, payload, hash, result)

	case identity.ConfidenceFallback:
		// The update also adopts the mapping, so the next run resolves
		// this record without a search.
		return e.update(ctx, runToken, rec, resource, resolution.RemoteID, payload, hash, result)

	default:
		return e.create(ctx, runToken, rec, resource, payload, hash, result)
	}
}

func (e *Engine) create(ctx context.Context, runToken string, rec *record.CanonicalRecord,
	resource string, payload remote.Entity, hash string, result RecordResult) RecordResult {
	if e.sync.DryRun {
		result.Outcome = OutcomeCreated
		return result
	}

	remoteID, err := e.client.Create(ctx, resource, payload)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}
	result.RemoteID = remoteID

	if err := e.mappings.Put(ctx, e.mappingEntry(runToken, rec, remoteID, hash)); err != nil {
		// The remote entity exists but its mapping did not persist: the
		// next run's fallback search (or the external reference) recovers
		// it, but the operator must know.
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("created remotely as %s but mapping not persisted: %v", remoteID, err)
		return result
	}

	result.Outcome = OutcomeCreated
	return result
}

func (e *Engine) update(ctx context.Context, runToken string, rec *record.CanonicalRecord,
	resource, remoteID string, payload remote.Entity, hash string, result RecordResult) RecordResult {
	if e.sync.DryRun {
		result.Outcome = OutcomeUpdated
		return result
	}

	if err := e.client.Update(ctx, resource, remoteID, payload); err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		return result
	}

	refreshed, err := e.mappings.Refresh(ctx, rec.Type, rec.LocalID, hash, runToken)
	if err == nil && !refreshed {
		// Fallback-adopted identity: first persistence of the mapping.
		err = e.mappings.Put(ctx, e.mappingEntry(runToken, rec, remoteID, hash))
	}
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("updated remotely but mapping not persisted: %v", err)
		return result
	}

	result.Outcome = OutcomeUpdated
	return result
}

func (e *Engine) mappingEntry(runToken string, rec *record.CanonicalRecord, remoteID, hash string) mapstore.Entry {
	return mapstore.Entry{
		RecordType:  rec.Type,
		LocalID:     rec.LocalID,
		RemoteID:    remoteID,
		ContentHash: hash,
		FirstName:   rec.Field("first_name").Remote(),
		LastName:    rec.Field("last_name").Remote(),
		DateOfBirth: rec.Field("date_of_birth").Remote(),
		RunToken:    runToken,
	}
}

// resolveParent maps the record's parent reference to the parent's remote
// identity. Returns the parent's resource collection and remote id, a skip
// outcome when the parent reference is unusable, or an error when the
// mapping store itself could not answer.
func (e *Engine) resolveParent(ctx context.Context, set *registry.FieldSpecSet, rec *record.CanonicalRecord) (string, string, Outcome, error) {
	parentLocal := rec.Field(set.Remote.ParentField).Remote()
	if parentLocal == "" {
		return "", "", OutcomeSkippedUnsyncable, nil
	}

	parentSet, err := e.registry.Resolve(set.Remote.ParentType)
	if err != nil {
		return "", "", OutcomeSkippedNoParent, nil
	}

	entry, found, err := e.mappings.Get(ctx, set.Remote.ParentType, parentLocal)
	if err != nil {
		return "", "", "", fmt.Errorf("look up parent %s/%s: %w", set.Remote.ParentType, parentLocal, err)
	}
	if !found {
		return "", "", OutcomeSkippedNoParent, nil
	}
	return parentSet.Remote.Resource, entry.RemoteID, "", nil
}

// emptyChildPayload reports whether a nested record carries nothing but
// dates, e.g. an exam-only transaction with no lens prescription. Such
// records are administrative noise on the remote side.
func emptyChildPayload(set *registry.FieldSpecSet, rec *record.CanonicalRecord) bool {
	for _, spec := range set.Fields {
		if spec.RemoteField == "" || spec.Kind == registry.KindDate {
			continue
		}
		if rec.Field(spec.Name).Valid {
			return false
		}
	}
	return true
}

func delimiterRune(s string) rune {
	if s == "" {
		return 0
	}
	return []rune(s)[0]
}
