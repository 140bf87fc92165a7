package normalize

import (
	"strconv"
	"strings"
	"time"

	"chartsync/internal/record"
	"chartsync/internal/registry"
)

// Gender is the closed enumeration the remote side accepts.
const (
	GenderMale        = "male"
	GenderFemale      = "female"
	GenderUnspecified = "unspecified"
)

func parseDate(cell string, formats []string) (record.Value, string) {
	for _, layout := range formats {
		if t, err := time.Parse(layout, cell); err == nil {
			return record.DateValue(t), ""
		}
	}
	return record.Value{Kind: registry.KindDate}, "unparseable date: " + cell
}

// parsePhone strips non-digit characters. Ten digits are accepted, eleven
// with a leading country 1 are reduced to ten, exactly seven are kept but
// tagged (guessing the area code would fabricate data), everything else
// keeps the raw text with an issue.
func parsePhone(cell string) (record.Value, string) {
	var digits strings.Builder
	for _, r := range cell {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 11 && d[0] == '1':
		d = d[1:]
		fallthrough
	case len(d) == 10:
		return record.Value{Kind: registry.KindPhone, Valid: true, Text: d}, ""
	case len(d) == 7:
		return record.Value{Kind: registry.KindPhone, Valid: true, Text: d}, "area code missing"
	default:
		return record.Value{Kind: registry.KindPhone, Valid: true, Text: cell}, "unrecognized phone format: " + cell
	}
}

// parseGender maps the legacy single-letter and word codes onto the closed
// enumeration. Unrecognized codes become unspecified with an issue, never a
// hard failure.
func parseGender(cell string) (record.Value, string) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "m", "male", "1":
		return genderValue(GenderMale), ""
	case "f", "female", "2":
		return genderValue(GenderFemale), ""
	case "u", "unknown", "unspecified":
		return genderValue(GenderUnspecified), ""
	default:
		return genderValue(GenderUnspecified), "unrecognized gender code: " + cell
	}
}

func genderValue(g string) record.Value {
	return record.Value{Kind: registry.KindGender, Valid: true, Text: g}
}

// parseInt accepts plain integers and the "3.0" decimals the legacy export
// writes for quantity columns.
func parseInt(cell string) (record.Value, string) {
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return record.Value{Kind: registry.KindInt, Valid: true, Int: n}, ""
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return record.Value{Kind: registry.KindInt, Valid: true, Int: int64(f)}, ""
	}
	return record.Value{Kind: registry.KindInt}, "unparseable integer: " + cell
}
