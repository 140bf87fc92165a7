package normalize

import (
	"strconv"

	"chartsync/internal/record"
	"chartsync/internal/registry"
)

// Format writes a canonical record back into the registry's positional
// layout. It is the inverse of Normalize for every field with a defined
// parser/formatter pair: normalizing a formatted row yields the original
// canonical values again. Used to build round-trip fixtures.
func (n *Normalizer) Format(rec *record.CanonicalRecord) []string {
	row := make([]string, n.set.ColumnCount)
	for _, spec := range n.set.Fields {
		if spec.Position < 0 || spec.Position >= len(row) {
			continue
		}
		row[spec.Position] = n.formatValue(spec.Kind, rec.Fields[spec.Name])
	}
	return row
}

func (n *Normalizer) formatValue(kind registry.Kind, v record.Value) string {
	if !v.Valid {
		return ""
	}
	switch kind {
	case registry.KindDate:
		return v.Date.Format(n.dateFormats[0])
	case registry.KindInt:
		return strconv.FormatInt(v.Int, 10)
	default:
		return v.Text
	}
}
