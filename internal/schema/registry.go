package schema

import (
	"fmt"

	apperrors "riskdash/internal/errors"
)

// Registry is an ordered, read-only set of dataset specs.
type Registry struct {
	specs []*DatasetSpec
	byKey map[string]*DatasetSpec
}

// NewRegistry builds a registry. Evaluation order follows the argument order.
func NewRegistry(specs ...*DatasetSpec) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*DatasetSpec, len(specs))}
	for _, spec := range specs {
		if spec == nil {
			return nil, apperrors.NewDefinitionError("registry received a nil dataset spec")
		}
		if _, dup := r.byKey[spec.Key]; dup {
			return nil, apperrors.NewDefinitionError(fmt.Sprintf("dataset key %s registered twice", spec.Key))
		}
		r.byKey[spec.Key] = spec
		r.specs = append(r.specs, spec)
	}
	return r, nil
}

// Specs returns the registered specs in evaluation order.
func (r *Registry) Specs() []*DatasetSpec {
	out := make([]*DatasetSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Lookup returns the spec registered under key.
func (r *Registry) Lookup(key string) (*DatasetSpec, bool) {
	spec, ok := r.byKey[key]
	return spec, ok
}

// Keys returns dataset keys in evaluation order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		keys = append(keys, spec.Key)
	}
	return keys
}

// FieldCandidates merges the alias lists of every canonical field across all
// specs. Fields keep first-declaration order; aliases are de-duplicated.
func (r *Registry) FieldCandidates() []FieldAliases {
	var out []FieldAliases
	index := make(map[string]int)
	seen := make(map[string]map[string]struct{})

	for _, spec := range r.specs {
		for _, f := range spec.fields {
			i, ok := index[f]
			if !ok {
				i = len(out)
				index[f] = i
				out = append(out, FieldAliases{Field: f})
				seen[f] = make(map[string]struct{})
			}
			for _, alias := range spec.aliases[f] {
				if _, dup := seen[f][alias]; dup {
					continue
				}
				seen[f][alias] = struct{}{}
				out[i].Aliases = append(out[i].Aliases, alias)
			}
		}
	}
	return out
}

// CandidatesFor returns the merged alias list of one canonical field, or nil.
func (r *Registry) CandidatesFor(field string) []string {
	for _, fa := range r.FieldCandidates() {
		if fa.Field == field {
			return fa.Aliases
		}
	}
	return nil
}
