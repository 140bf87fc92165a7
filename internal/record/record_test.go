package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chartsync/internal/registry"
)

func TestValueRemote(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"no value", Value{Kind: registry.KindString}, ""},
		{"string", StringValue("Smith"), "Smith"},
		{"date ISO", DateValue(time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)), "1990-05-15"},
		{"int", Value{Kind: registry.KindInt, Valid: true, Int: 6}, "6"},
		{"phone digits", Value{Kind: registry.KindPhone, Valid: true, Text: "5035551234"}, "5035551234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Remote())
		})
	}
}

func TestRemotePayload(t *testing.T) {
	set := &registry.FieldSpecSet{
		Type:         "widget",
		ColumnCount:  4,
		LocalIDField: "local_id",
		Fields: []registry.FieldSpec{
			{Name: "local_id", Position: 0, Kind: registry.KindString, Required: true},
			{Name: "name", Position: 1, Kind: registry.KindString, RemoteField: "name"},
			{Name: "made_on", Position: 2, Kind: registry.KindDate, RemoteField: "madeOn"},
			{Name: "internal_note", Position: 3, Kind: registry.KindString},
		},
	}

	rec := &CanonicalRecord{
		Type:    "widget",
		LocalID: "w1",
		Fields: map[string]Value{
			"local_id":      StringValue("w1"),
			"name":          StringValue("sprocket"),
			"made_on":       {Kind: registry.KindDate}, // no value
			"internal_note": StringValue("do not ship"),
		},
	}

	payload := rec.RemotePayload(set)
	assert.Equal(t, map[string]string{"name": "sprocket"}, payload)
}

func TestRemotePayload_LocalOnlyChangeDoesNotChangeHash(t *testing.T) {
	set := &registry.FieldSpecSet{
		Type: "widget",
		Fields: []registry.FieldSpec{
			{Name: "name", Position: 0, Kind: registry.KindString, RemoteField: "name"},
			{Name: "internal_note", Position: 1, Kind: registry.KindString},
		},
	}

	a := &CanonicalRecord{Fields: map[string]Value{
		"name":          StringValue("sprocket"),
		"internal_note": StringValue("one"),
	}}
	b := &CanonicalRecord{Fields: map[string]Value{
		"name":          StringValue("sprocket"),
		"internal_note": StringValue("two"),
	}}

	assert.Equal(t, ContentHash(a.RemotePayload(set)), ContentHash(b.RemotePayload(set)))
}
