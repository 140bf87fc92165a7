// Package record defines the canonical record produced by normalization and
// the content-addressed hashing used to detect changed records across runs.
package record

import (
	"fmt"
	"time"

	"chartsync/internal/registry"
)

// Value is one typed field value. A zero Value means "no value": empty cells
// and unparseable cells both degrade to it rather than failing the record.
type Value struct {
	Kind  registry.Kind
	Valid bool

	// Text carries string, phone (digits only), gender (enum word), and the
	// raw fallback for cells that failed their parser.
	Text string
	Date time.Time
	Int  int64
}

// StringValue returns a valid string-kinded value, or a no-value for "".
func StringValue(s string) Value {
	if s == "" {
		return Value{Kind: registry.KindString}
	}
	return Value{Kind: registry.KindString, Valid: true, Text: s}
}

// DateValue returns a valid date-kinded value.
func DateValue(t time.Time) Value {
	return Value{Kind: registry.KindDate, Valid: true, Date: t}
}

// Remote renders the value as the remote API expects it: ISO-8601 for dates,
// decimal for ints, text otherwise. No-value renders as the empty string.
func (v Value) Remote() string {
	if !v.Valid {
		return ""
	}
	switch v.Kind {
	case registry.KindDate:
		return v.Date.Format("2006-01-02")
	case registry.KindInt:
		return fmt.Sprintf("%d", v.Int)
	default:
		return v.Text
	}
}

// Issue records one non-fatal normalization failure, attached to the record
// it occurred in.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// CanonicalRecord is the typed form of one raw export row. It is never
// mutated after the normalizer produces it; later stages derive new values.
type CanonicalRecord struct {
	// Type is the record type this record was normalized against.
	Type string

	// LocalID is the export's own primary key. Authoritative, never
	// regenerated. Empty only on unsyncable records.
	LocalID string

	// Line is the 1-based input line the record came from.
	Line int

	Fields map[string]Value
	Issues []Issue

	// Unsyncable is set when a required field (local_id above all) is
	// missing. The record is still produced for reporting but the sync
	// engine must never send it.
	Unsyncable bool
}

// Field returns the value for a canonical field name; the zero Value if the
// field is not present.
func (r *CanonicalRecord) Field(name string) Value {
	return r.Fields[name]
}

// RemotePayload derives the remote attribute map from the field specs: every
// valid field with a remote destination, rendered as the remote expects.
// Local-only fields never reach the payload, so a change in them does not
// trigger an update.
func (r *CanonicalRecord) RemotePayload(set *registry.FieldSpecSet) map[string]string {
	payload := make(map[string]string)
	for _, spec := range set.Fields {
		if spec.RemoteField == "" {
			continue
		}
		v := r.Fields[spec.Name]
		if !v.Valid {
			continue
		}
		payload[spec.RemoteField] = v.Remote()
	}
	return payload
}
