package schema

import (
	"fmt"

	apperrors "riskdash/internal/errors"
)

// FieldAliases binds a canonical field to its ordered alias list.
type FieldAliases struct {
	Field   string   `json:"field"`
	Aliases []string `json:"aliases"`
}

// Field builds a FieldAliases entry from AliasVariants(name, extras...).
func Field(name string, extras ...string) FieldAliases {
	return FieldAliases{Field: name, Aliases: AliasVariants(name, extras...)}
}

// DatasetSpec describes one recognizable dataset type.
type DatasetSpec struct {
	Key               string
	DisplayName       string
	FilenamePrefixes  []string
	RequiredFields    []string
	IdentifyingFields []string

	fields  []string
	aliases map[string][]string
}

// NewDatasetSpec validates and builds a spec. Every required and identifying
// field must have an alias entry.
func NewDatasetSpec(key, displayName string, prefixes, required, identifying []string, fields ...FieldAliases) (*DatasetSpec, error) {
	if key == "" || displayName == "" {
		return nil, apperrors.NewDefinitionError("dataset spec needs a key and a display name")
	}

	spec := &DatasetSpec{
		Key:               key,
		DisplayName:       displayName,
		FilenamePrefixes:  prefixes,
		RequiredFields:    required,
		IdentifyingFields: identifying,
		aliases:           make(map[string][]string, len(fields)),
	}
	for _, f := range fields {
		if _, dup := spec.aliases[f.Field]; dup {
			return nil, apperrors.NewDefinitionError(fmt.Sprintf("dataset %s declares field %s twice", key, f.Field))
		}
		if len(f.Aliases) == 0 {
			return nil, apperrors.NewDefinitionError(fmt.Sprintf("dataset %s field %s has no aliases", key, f.Field))
		}
		spec.fields = append(spec.fields, f.Field)
		spec.aliases[f.Field] = f.Aliases
	}

	for _, group := range [][]string{required, identifying} {
		for _, name := range group {
			if _, ok := spec.aliases[name]; !ok {
				return nil, apperrors.NewDefinitionError(fmt.Sprintf("dataset %s references undeclared field %s", key, name))
			}
		}
	}
	return spec, nil
}

// AliasFor returns the alias list for a canonical field. Fields without an
// alias entry resolve to a single-element list holding the field itself.
func (s *DatasetSpec) AliasFor(field string) []string {
	if aliases, ok := s.aliases[field]; ok {
		return aliases
	}
	return []string{field}
}

// HasField reports whether the spec declares an alias entry for field.
func (s *DatasetSpec) HasField(field string) bool {
	_, ok := s.aliases[field]
	return ok
}

// Fields returns the declared canonical fields in declaration order.
func (s *DatasetSpec) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldAliases returns every declared field with its aliases, in declaration order.
func (s *DatasetSpec) FieldAliases() []FieldAliases {
	out := make([]FieldAliases, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, FieldAliases{Field: f, Aliases: s.aliases[f]})
	}
	return out
}
