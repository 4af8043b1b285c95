// Package resolve maps a loaded file's actual columns onto canonical fields
// declared by page expectations.
package resolve

import (
	"fmt"
	"strings"

	"riskdash/internal/header"
	"riskdash/internal/schema"
)

// MatchMode selects how the candidates of an expectation are resolved.
type MatchMode string

const (
	// MatchAll resolves every candidate independently and reports each miss.
	MatchAll MatchMode = "all"
	// MatchAny stops at the first candidate that resolves.
	MatchAny MatchMode = "any"
)

// HeaderExpectation declares that one or more canonical fields must be
// resolvable from an uploaded file. An empty Match means MatchAll.
type HeaderExpectation struct {
	Name       string    `json:"name" validate:"required"`
	Candidates []string  `json:"candidates" validate:"required,min=1,dive,required"`
	Required   bool      `json:"required"`
	Match      MatchMode `json:"match,omitempty" validate:"omitempty,oneof=all any"`
	Note       string    `json:"note,omitempty"`
}

// Mode returns the effective match mode.
func (e HeaderExpectation) Mode() MatchMode {
	if e.Match == "" || e.Match == MatchAll {
		return MatchAll
	}
	return MatchAny
}

// Summary renders the expectation as a one-line checklist entry.
func (e HeaderExpectation) Summary() string {
	requirement := "Optional"
	if e.Required {
		requirement = "Required"
	}
	line := fmt.Sprintf("- `%s` (%s): %s", e.Name, requirement, strings.Join(e.Candidates, " → "))
	if e.Note != "" {
		line += ". " + e.Note
	}
	return line
}

// Resolution is the outcome of matching one expectation.
type Resolution struct {
	Selected map[string]string `json:"selected"`
	Missing  []string          `json:"missing"`
}

// FindColumn returns the first column matching any alias of canonical.
func FindColumn(spec *schema.DatasetSpec, headers *header.Map, canonical string) (string, bool) {
	_, column, ok := headers.FirstMatch(spec.AliasFor(canonical))
	return column, ok
}

// Match resolves exp against columns using the aliases declared by spec.
//
// In all mode every unresolved candidate is reported by its canonical name.
// In any mode only the first resolvable candidate is selected; when none
// resolve and the expectation is required, a single entry joining every
// candidate with " / " is reported.
func Match(spec *schema.DatasetSpec, columns []string, exp HeaderExpectation) Resolution {
	return MatchMap(spec, header.Normalize(columns), exp)
}

// MatchMap is Match over an already normalized header map.
func MatchMap(spec *schema.DatasetSpec, headers *header.Map, exp HeaderExpectation) Resolution {
	res := Resolution{Selected: make(map[string]string)}

	if exp.Mode() == MatchAll {
		for _, canonical := range exp.Candidates {
			if column, ok := FindColumn(spec, headers, canonical); ok {
				res.Selected[canonical] = column
				continue
			}
			res.Missing = append(res.Missing, canonical)
		}
		return res
	}

	for _, canonical := range exp.Candidates {
		if column, ok := FindColumn(spec, headers, canonical); ok {
			res.Selected[canonical] = column
			return res
		}
	}
	if exp.Required {
		res.Missing = append(res.Missing, strings.Join(exp.Candidates, " / "))
	}
	return res
}

// ColumnMapping binds a canonical field to the source column chosen for it.
type ColumnMapping struct {
	Field  string `json:"field"`
	Column string `json:"column"`
}

// Harmonize resolves each canonical field in fields to a column, skipping the
// ones that do not resolve. The returned order follows fields.
func Harmonize(spec *schema.DatasetSpec, columns []string, fields []string) []ColumnMapping {
	headers := header.Normalize(columns)
	var out []ColumnMapping
	for _, f := range fields {
		if column, ok := FindColumn(spec, headers, f); ok {
			out = append(out, ColumnMapping{Field: f, Column: column})
		}
	}
	return out
}
