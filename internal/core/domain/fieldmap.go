package domain

import (
	"fmt"
	"sort"
	"strings"
)

// EntityKind identifies the record type a column belongs to.
type EntityKind string

// Entity kinds.
const (
	EntityDataset  EntityKind = "dataset"
	EntityResource EntityKind = "resource"
)

// ValueType is the semantic type used for field validation.
type ValueType int

// Value types.
const (
	TypeText ValueType = iota
	TypeDate
	TypeWKT
	TypeTextFormat
)

// Mapping describes where a column's value lives remotely. It is a sealed
// set of variants; consumers dispatch with a type switch.
type Mapping interface {
	mapping()
}

// PackageKey is a top-level key of the flat package document.
type PackageKey struct {
	Key string
}

// NodePath is a path into the node document.
type NodePath struct {
	Path Path
}

// Extension is a free key/value field stored in field_additional_info.
type Extension struct {
	Key string
}

// TagList is a list of taxonomy term ids resolved through Vocabulary.
// When PackageKey is set, display names are read from that package list.
type TagList struct {
	Field      string
	Vocabulary string
	PackageKey string
}

// RelatedList is a list of title/url links.
type RelatedList struct {
	Field string
}

// GroupCollect is a list of group node references.
type GroupCollect struct {
	Field      string
	PackageKey string
}

// Derived is computed by the exporter rather than read from a document.
type Derived struct {
	Name string
}

func (PackageKey) mapping()   {}
func (NodePath) mapping()     {}
func (Extension) mapping()    {}
func (TagList) mapping()      {}
func (RelatedList) mapping()  {}
func (GroupCollect) mapping() {}
func (Derived) mapping()      {}

// Derived column identifiers.
const (
	DerivedSequence     = "sequence"
	DerivedKind         = "kind"
	DerivedKindDetailed = "kind_detailed"
	DerivedCheckOK      = "check_ok"
	DerivedResponseCode = "response_code"
)

// Remote field names used outside of plain scalar mappings.
const (
	FieldAdditionalInfo = "field_additional_info"
	FieldResources      = "field_resources"
	FieldDatasetRef     = "field_dataset_ref"
	FieldFormat         = "field_format"
	FieldLinkAPI        = "field_link_api"
	FieldLinkRemoteFile = "field_link_remote_file"
	FieldUpload         = "field_upload"
	FieldDatastore      = "field_datastore_status"
	FieldGroupRef       = "og_group_ref"
)

// Vocabulary names.
const (
	VocabularyCategories = "tags"
	VocabularyKeywords   = "dataset_tags"
	VocabularyFormat     = "format"
	VocabularyGroups     = "groups"
)

// FieldSpec binds one spreadsheet column to its remote representation.
type FieldSpec struct {
	Column  string
	Entity  EntityKind
	Mapping Mapping

	// Target is where DocumentBuilder writes a plain scalar value.
	// Nil means the column is not written generically.
	Target Path

	Type ValueType

	Mandatory bool

	// Optional columns may be missing from a spreadsheet header.
	Optional bool

	// ServerAssigned values may legitimately differ after a round trip.
	ServerAssigned bool
}

// FieldMap is the static table of column specifications.
type FieldMap struct {
	specs map[string]FieldSpec
	order map[EntityKind][]string
}

// NewFieldMap builds a FieldMap from specs, keeping their order.
func NewFieldMap(specs []FieldSpec) *FieldMap {
	m := &FieldMap{
		specs: make(map[string]FieldSpec, len(specs)),
		order: make(map[EntityKind][]string),
	}
	for _, s := range specs {
		if _, dup := m.specs[s.Column]; !dup {
			m.order[s.Entity] = append(m.order[s.Entity], s.Column)
		}
		m.specs[s.Column] = s
	}
	return m
}

// Resolve returns the spec for a column. Columns with the extension
// prefix resolve to a dataset Extension spec.
func (m *FieldMap) Resolve(column string) (FieldSpec, error) {
	if s, ok := m.specs[column]; ok {
		return s, nil
	}
	if key, ok := ExtensionKey(column); ok {
		return FieldSpec{Column: column, Entity: EntityDataset, Mapping: Extension{Key: key}, Optional: true}, nil
	}
	return FieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownField, column)
}

// AllFields returns the declared columns of an entity kind in order.
func (m *FieldMap) AllFields(kind EntityKind) []string {
	out := make([]string, len(m.order[kind]))
	copy(out, m.order[kind])
	return out
}

// Specs returns the specs of an entity kind in declared order.
func (m *FieldMap) Specs(kind EntityKind) []FieldSpec {
	out := make([]FieldSpec, 0, len(m.order[kind]))
	for _, col := range m.order[kind] {
		out = append(out, m.specs[col])
	}
	return out
}

// Mandatory returns the mandatory columns of an entity kind.
func (m *FieldMap) Mandatory(kind EntityKind) []string {
	var out []string
	for _, s := range m.Specs(kind) {
		if s.Mandatory {
			out = append(out, s.Column)
		}
	}
	return out
}

// Required returns the columns a spreadsheet header must contain.
func (m *FieldMap) Required(kind EntityKind) []string {
	var out []string
	for _, s := range m.Specs(kind) {
		if !s.Optional {
			out = append(out, s.Column)
		}
	}
	return out
}

// Verify checks the map against the entity column registries in both
// directions. A failure aborts the run before any record is processed.
func (m *FieldMap) Verify() error {
	return m.verifyAgainst(map[EntityKind][]string{
		EntityDataset:  DatasetColumns,
		EntityResource: ResourceColumns,
	})
}

func (m *FieldMap) verifyAgainst(registries map[EntityKind][]string) error {
	var problems []string

	declared := make(map[string]EntityKind)
	for kind, cols := range registries {
		for _, col := range cols {
			if other, dup := declared[col]; dup {
				problems = append(problems, fmt.Sprintf("%q declared by both %s and %s", col, other, kind))
				continue
			}
			declared[col] = kind
			spec, ok := m.specs[col]
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("%s field %q has no spec", kind, col))
			case spec.Entity != kind:
				problems = append(problems, fmt.Sprintf("spec %q belongs to %s, declared by %s", col, spec.Entity, kind))
			}
		}
	}

	for col := range m.specs {
		if _, ok := declared[col]; !ok {
			problems = append(problems, fmt.Sprintf("spec %q is not a declared field", col))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return Abort(fmt.Errorf("%w: %s", ErrIncompleteFieldMap, strings.Join(problems, "; ")))
}

// ExtensionKey extracts the extension key from an "Extra-" column.
func ExtensionKey(column string) (string, bool) {
	if !strings.HasPrefix(column, ExtensionPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(column, ExtensionPrefix)
	if key == "" {
		return "", false
	}
	return key, true
}

// ExtensionColumn returns the column header for an extension key.
func ExtensionColumn(key string) string {
	return ExtensionPrefix + key
}
