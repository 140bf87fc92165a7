// Package compiler parses CUE record-type declarations into field spec
// sets. Sites whose legacy system emits a different column layout declare
// it in CUE instead of patching the binary; a declaration replaces the
// built-in layout of the same name.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"chartsync/internal/registry"
)

// CompileRecordType parses a CUE value into a FieldSpecSet.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the record-type struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`record: patient: { ... }`)
//	set, err := CompileRecordType(v.LookupPath(cue.ParsePath("record.patient")))
func CompileRecordType(v cue.Value) (*registry.FieldSpecSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	set := &registry.FieldSpecSet{}

	// Record type name comes from the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		set.Type = labels[len(labels)-1].String()
	}

	count, err := requiredInt(v, "column_count")
	if err != nil {
		return nil, err
	}
	set.ColumnCount = int(count)

	set.LocalIDField, err = requiredString(v, "local_id_field")
	if err != nil {
		return nil, err
	}

	set.Remote, err = parseRemoteBinding(v)
	if err != nil {
		return nil, err
	}

	set.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	if len(set.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}

	if errs := registry.ValidateSet(set); len(errs) > 0 {
		return nil, &CompileError{
			Field:   set.Type,
			Message: errs[0].Error(),
			Pos:     v.Pos(),
		}
	}
	return set, nil
}

func parseRemoteBinding(v cue.Value) (registry.RemoteBinding, error) {
	var b registry.RemoteBinding

	remoteVal := v.LookupPath(cue.ParsePath("remote"))
	if !remoteVal.Exists() {
		return b, &CompileError{
			Field:   "remote",
			Message: "remote binding is required",
			Pos:     v.Pos(),
		}
	}

	var err error
	if b.Resource, err = requiredString(remoteVal, "resource"); err != nil {
		return b, err
	}
	if b.ExternalIDField, err = requiredString(remoteVal, "external_id_field"); err != nil {
		return b, err
	}
	if b.ParentType, err = optionalString(remoteVal, "parent_type"); err != nil {
		return b, err
	}
	if b.ParentField, err = optionalString(remoteVal, "parent_field"); err != nil {
		return b, err
	}

	searchVal := remoteVal.LookupPath(cue.ParsePath("fallback_search"))
	if searchVal.Exists() {
		if b.FallbackSearch, err = searchVal.Bool(); err != nil {
			return b, formatCUEError(err)
		}
	}
	return b, nil
}

func parseFields(v cue.Value) ([]registry.FieldSpec, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []registry.FieldSpec
	for iter.Next() {
		f, err := parseField(iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(v cue.Value) (registry.FieldSpec, error) {
	var f registry.FieldSpec

	var err error
	if f.Name, err = requiredString(v, "name"); err != nil {
		return f, err
	}

	// Position defaults to -1: a canonical field this export variant does
	// not carry.
	f.Position = -1
	posVal := v.LookupPath(cue.ParsePath("position"))
	if posVal.Exists() {
		pos, err := posVal.Int64()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.Position = int(pos)
	}

	kind, err := optionalString(v, "kind")
	if err != nil {
		return f, err
	}
	if kind == "" {
		kind = string(registry.KindString)
	}
	f.Kind = registry.Kind(kind)

	reqVal := v.LookupPath(cue.ParsePath("required"))
	if reqVal.Exists() {
		if f.Required, err = reqVal.Bool(); err != nil {
			return f, formatCUEError(err)
		}
	}

	if f.RemoteField, err = optionalString(v, "remote_field"); err != nil {
		return f, err
	}
	return f, nil
}

func requiredString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", &CompileError{
			Field:   path,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredInt(v cue.Value, path string) (int64, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return 0, &CompileError{
			Field:   path,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := val.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// CompileError is a structured compile error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors.
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
