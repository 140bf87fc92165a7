package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSet() *FieldSpecSet {
	return &FieldSpecSet{
		Type:         "widget",
		ColumnCount:  3,
		LocalIDField: "local_id",
		Remote: RemoteBinding{
			Resource:        "widgets",
			ExternalIDField: "externalId",
		},
		Fields: []FieldSpec{
			{Name: "local_id", Position: 0, Kind: KindString, Required: true},
			{Name: "name", Position: 1, Kind: KindString, RemoteField: "name"},
			{Name: "made_on", Position: 2, Kind: KindDate, RemoteField: "madeOn"},
		},
	}
}

func TestValidateSet_Valid(t *testing.T) {
	assert.Empty(t, ValidateSet(validSet()))
}

func TestValidateSet_DuplicatePosition(t *testing.T) {
	set := validSet()
	set.Fields[1].Position = 0

	errs := ValidateSet(set)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "position 0 already used")
}

func TestValidateSet_PositionOutOfRange(t *testing.T) {
	set := validSet()
	set.Fields[2].Position = 3

	errs := ValidateSet(set)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "outside declared column count")
}

func TestValidateSet_DuplicateRemoteField(t *testing.T) {
	set := validSet()
	set.Fields[2].RemoteField = "name"

	errs := ValidateSet(set)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `remote field "name" already used`)
}

func TestValidateSet_InvalidKind(t *testing.T) {
	set := validSet()
	set.Fields[1].Kind = "float"

	errs := ValidateSet(set)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `invalid kind "float"`)
}

func TestValidateSet_LocalID(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FieldSpecSet)
		want   string
	}{
		{
			name:   "undeclared",
			mutate: func(s *FieldSpecSet) { s.LocalIDField = "" },
			want:   "local id field not declared",
		},
		{
			name:   "not among fields",
			mutate: func(s *FieldSpecSet) { s.LocalIDField = "missing" },
			want:   `local id field "missing" not among declared fields`,
		},
		{
			name:   "not required",
			mutate: func(s *FieldSpecSet) { s.Fields[0].Required = false },
			want:   "must be required",
		},
		{
			name:   "no position",
			mutate: func(s *FieldSpecSet) { s.Fields[0].Position = -1 },
			want:   "must have a source position",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := validSet()
			tt.mutate(set)

			errs := ValidateSet(set)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[len(errs)-1].Error(), tt.want)
		})
	}
}

func TestValidateSet_RemoteBinding(t *testing.T) {
	set := validSet()
	set.Remote = RemoteBinding{ParentField: "nope"}

	errs := ValidateSet(set)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Error(), "remote resource not declared")
	assert.Contains(t, errs[1].Error(), "remote external id field not declared")
	assert.Contains(t, errs[2].Error(), `parent field "nope" not among declared fields`)
	assert.Contains(t, errs[3].Error(), "parent field declared without parent type")
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := New()
	_, err := r.Resolve("patient")

	var unknownErr *UnknownRecordTypeError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "patient", unknownErr.Type)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := Builtin()
	custom := validSet()
	custom.Type = "patient"
	r.Register(custom)

	set, err := r.Resolve("patient")
	require.NoError(t, err)
	assert.Equal(t, 3, set.ColumnCount)
}

func TestBuiltin_AllValid(t *testing.T) {
	r := Builtin()
	assert.Empty(t, r.Validate())
	assert.Equal(t, []string{"patient", "patient_compact", "transaction"}, r.Types())
}

func TestBuiltin_PatientPositions(t *testing.T) {
	set := PatientSpec()
	require.Equal(t, 68, set.ColumnCount)

	assert.Equal(t, 36, set.Field("local_id").Position)
	assert.Equal(t, 21, set.Field("first_name").Position)
	assert.Equal(t, 27, set.Field("last_name").Position)
	assert.Equal(t, 5, set.Field("date_of_birth").Position)
	assert.Equal(t, 37, set.Field("gender").Position)
	assert.True(t, set.Remote.FallbackSearch)
}

func TestBuiltin_TransactionNestsUnderPatient(t *testing.T) {
	set := TransactionSpec()
	assert.Equal(t, "patient", set.Remote.ParentType)
	assert.Equal(t, "patient_id", set.Remote.ParentField)
	assert.False(t, set.Remote.FallbackSearch)

	// Local-only join key must never leak into the remote payload.
	assert.Empty(t, set.Field("patient_id").RemoteField)
}
