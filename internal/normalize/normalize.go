// Package normalize applies a field spec set to raw positional rows,
// producing canonical typed records. Individual bad cells never fail a
// record: every failure mode degrades to "no value" plus a recorded issue,
// because the upstream export is known to be inconsistent.
package normalize

import (
	"strings"

	"chartsync/internal/export"
	"chartsync/internal/record"
	"chartsync/internal/registry"
)

// DefaultDateFormats is the ordered list of layouts tried against date
// cells. First match wins; a cell ambiguous between formats is resolved by
// order, which is why M-D-Y layouts come before Y-M-D.
var DefaultDateFormats = []string{
	"1-2-2006",
	"1/2/2006",
	"2006-01-02",
	"1/2/06",
}

// Normalizer converts raw rows of one record type into canonical records.
type Normalizer struct {
	set         *registry.FieldSpecSet
	dateFormats []string
}

// New creates a normalizer for a field spec set. An empty format list means
// DefaultDateFormats.
func New(set *registry.FieldSpecSet, dateFormats []string) *Normalizer {
	if len(dateFormats) == 0 {
		dateFormats = DefaultDateFormats
	}
	return &Normalizer{set: set, dateFormats: dateFormats}
}

// Normalize produces the canonical record for one raw row. It never returns
// an error: a missing required field flags the record unsyncable, everything
// else is an issue on the record.
func (n *Normalizer) Normalize(raw export.RawRecord) *record.CanonicalRecord {
	rec := &record.CanonicalRecord{
		Type:   n.set.Type,
		Line:   raw.Line,
		Fields: make(map[string]record.Value, len(n.set.Fields)),
	}

	for _, spec := range n.set.Fields {
		if spec.Position < 0 {
			// Field absent from this export variant.
			rec.Fields[spec.Name] = record.Value{Kind: spec.Kind}
			continue
		}

		// A row shorter than the declared layout reads as empty cells;
		// one missing trailing column must not fail the whole record.
		cell := ""
		if spec.Position < len(raw.Cells) {
			cell = raw.Cells[spec.Position]
		}
		cell = cleanCell(cell)

		if cell == "" {
			rec.Fields[spec.Name] = record.Value{Kind: spec.Kind}
			if spec.Required {
				rec.Issues = append(rec.Issues, record.Issue{
					Field:  spec.Name,
					Reason: "required field is empty",
				})
				rec.Unsyncable = true
			}
			continue
		}

		value, issue := n.parse(spec.Kind, cell)
		rec.Fields[spec.Name] = value
		if issue != "" {
			rec.Issues = append(rec.Issues, record.Issue{Field: spec.Name, Reason: issue})
		}
	}

	rec.LocalID = rec.Fields[n.set.LocalIDField].Text
	return rec
}

func (n *Normalizer) parse(kind registry.Kind, cell string) (record.Value, string) {
	switch kind {
	case registry.KindDate:
		return parseDate(cell, n.dateFormats)
	case registry.KindPhone:
		return parsePhone(cell)
	case registry.KindGender:
		return parseGender(cell)
	case registry.KindInt:
		return parseInt(cell)
	default:
		return record.Value{Kind: registry.KindString, Valid: true, Text: cell}, ""
	}
}

// cleanCell trims whitespace and surrounding quote characters. The legacy
// export writes the literal word "null" for some empty cells.
func cleanCell(cell string) string {
	cell = strings.TrimSpace(cell)
	cell = strings.Trim(cell, `"`)
	cell = strings.TrimSpace(cell)
	if strings.EqualFold(cell, "null") {
		return ""
	}
	return cell
}
