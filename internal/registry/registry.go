package registry

import (
	"fmt"
	"sort"
)

// Kind identifies the parser applied to a field's raw cell.
type Kind string

const (
	KindString Kind = "string"
	KindDate   Kind = "date"
	KindPhone  Kind = "phone"
	KindGender Kind = "gender"
	KindInt    Kind = "int"
)

// ValidKinds lists the kinds a field spec may declare.
var ValidKinds = []Kind{KindString, KindDate, KindPhone, KindGender, KindInt}

// FieldSpec declares one canonical field of a record type: where it sits in
// the positional export, how its cell is parsed, and which remote attribute
// it populates.
type FieldSpec struct {
	// Name is the canonical field name, unique within the record type.
	Name string

	// Position is the 0-based index into the raw row. A negative position
	// means the field is absent from this export variant.
	Position int

	// Required marks fields whose absence flags the record unsyncable.
	Required bool

	// Kind selects the parser (string, date, phone, gender, int).
	Kind Kind

	// RemoteField is the destination attribute name in the remote payload.
	// Empty means the field is local-only (diagnostic, join key).
	RemoteField string
}

// RemoteBinding describes where records of a type land in the remote API
// and how caller-side idempotency is anchored.
type RemoteBinding struct {
	// Resource is the remote collection name ("patients", "contact-lens-rx").
	Resource string

	// ParentType and ParentField are set for record types whose remote
	// entity nests under a patient: ParentField names the canonical field
	// holding the parent's local id, ParentType the parent record type.
	ParentType  string
	ParentField string

	// ExternalIDField is the remote attribute that always carries the
	// record's local_id, so a remote-side retry of a single call cannot
	// create a duplicate.
	ExternalIDField string

	// FallbackSearch enables the one-time demographic fallback match for
	// records with no mapping yet. Only meaningful for patient-shaped
	// types that the remote search endpoint covers.
	FallbackSearch bool
}

// FieldSpecSet is the full positional layout of one record type.
type FieldSpecSet struct {
	// Type is the record type name ("patient", "transaction", ...).
	Type string

	// ColumnCount is the column count the export declares for this layout.
	ColumnCount int

	// LocalIDField names the field holding the export's own primary key.
	LocalIDField string

	// Fields in declaration order.
	Fields []FieldSpec

	// Remote is the remote API binding for this type.
	Remote RemoteBinding
}

// Field returns the spec for a canonical field name, or nil.
func (s *FieldSpecSet) Field(name string) *FieldSpec {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// UnknownRecordTypeError is returned by Resolve for an undeclared type.
type UnknownRecordTypeError struct {
	Type string
}

func (e *UnknownRecordTypeError) Error() string {
	return fmt.Sprintf("unknown record type %q", e.Type)
}

// ConfigError describes one validation failure in a field spec set.
// Configuration errors are fatal: they abort the run before any I/O.
type ConfigError struct {
	Type    string // record type
	Field   string // offending field name, if any
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record type %q, field %q: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("record type %q: %s", e.Type, e.Message)
}

// Registry holds the declared record types. It is immutable during
// steady-state processing; Register is only called during startup.
type Registry struct {
	sets map[string]*FieldSpecSet
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sets: make(map[string]*FieldSpecSet)}
}

// Register adds or replaces a record type. A CUE-declared layout replaces a
// built-in of the same name.
func (r *Registry) Register(set *FieldSpecSet) {
	r.sets[set.Type] = set
}

// Resolve returns the field spec set for a record type.
func (r *Registry) Resolve(recordType string) (*FieldSpecSet, error) {
	set, ok := r.sets[recordType]
	if !ok {
		return nil, &UnknownRecordTypeError{Type: recordType}
	}
	return set, nil
}

// Types returns the declared record type names in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.sets))
	for t := range r.sets {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate checks every declared set. Called once at startup so that a bad
// layout fails the run before any file or network I/O.
func (r *Registry) Validate() []*ConfigError {
	var errs []*ConfigError
	for _, t := range r.Types() {
		errs = append(errs, ValidateSet(r.sets[t])...)
	}
	return errs
}

// ValidateSet checks position uniqueness and range, remote field uniqueness,
// kind validity, and the presence of a required local-id field.
func ValidateSet(set *FieldSpecSet) []*ConfigError {
	var errs []*ConfigError

	if set.ColumnCount <= 0 {
		errs = append(errs, &ConfigError{Type: set.Type, Message: "column count must be positive"})
	}
	if len(set.Fields) == 0 {
		errs = append(errs, &ConfigError{Type: set.Type, Message: "no fields declared"})
	}

	positions := make(map[int]string)
	remotes := make(map[string]string)
	names := make(map[string]bool)

	for _, f := range set.Fields {
		if names[f.Name] {
			errs = append(errs, &ConfigError{Type: set.Type, Field: f.Name, Message: "duplicate field name"})
		}
		names[f.Name] = true

		if !validKind(f.Kind) {
			errs = append(errs, &ConfigError{
				Type: set.Type, Field: f.Name,
				Message: fmt.Sprintf("invalid kind %q", f.Kind),
			})
		}

		if f.Position >= 0 {
			if prev, dup := positions[f.Position]; dup {
				errs = append(errs, &ConfigError{
					Type: set.Type, Field: f.Name,
					Message: fmt.Sprintf("position %d already used by %q", f.Position, prev),
				})
			}
			positions[f.Position] = f.Name
			if set.ColumnCount > 0 && f.Position >= set.ColumnCount {
				errs = append(errs, &ConfigError{
					Type: set.Type, Field: f.Name,
					Message: fmt.Sprintf("position %d outside declared column count %d", f.Position, set.ColumnCount),
				})
			}
		}

		if f.RemoteField != "" {
			if prev, dup := remotes[f.RemoteField]; dup {
				errs = append(errs, &ConfigError{
					Type: set.Type, Field: f.Name,
					Message: fmt.Sprintf("remote field %q already used by %q", f.RemoteField, prev),
				})
			}
			remotes[f.RemoteField] = f.Name
		}
	}

	if set.Remote.Resource == "" {
		errs = append(errs, &ConfigError{Type: set.Type, Message: "remote resource not declared"})
	}
	if set.Remote.ExternalIDField == "" {
		errs = append(errs, &ConfigError{Type: set.Type, Message: "remote external id field not declared"})
	}
	if set.Remote.ParentField != "" {
		if set.Field(set.Remote.ParentField) == nil {
			errs = append(errs, &ConfigError{
				Type:    set.Type,
				Message: fmt.Sprintf("parent field %q not among declared fields", set.Remote.ParentField),
			})
		}
		if set.Remote.ParentType == "" {
			errs = append(errs, &ConfigError{Type: set.Type, Message: "parent field declared without parent type"})
		}
	}

	if set.LocalIDField == "" {
		errs = append(errs, &ConfigError{Type: set.Type, Message: "local id field not declared"})
	} else {
		id := set.Field(set.LocalIDField)
		switch {
		case id == nil:
			errs = append(errs, &ConfigError{
				Type: set.Type,
				Message: fmt.Sprintf("local id field %q not among declared fields", set.LocalIDField),
			})
		case !id.Required:
			errs = append(errs, &ConfigError{
				Type: set.Type, Field: set.LocalIDField,
				Message: "local id field must be required",
			})
		case id.Position < 0:
			errs = append(errs, &ConfigError{
				Type: set.Type, Field: set.LocalIDField,
				Message: "local id field must have a source position",
			})
		}
	}

	return errs
}

func validKind(k Kind) bool {
	for _, v := range ValidKinds {
		if k == v {
			return true
		}
	}
	return false
}
