package detect

import (
	"fmt"
	"strings"

	"riskdash/internal/schema"
)

// Outcome tags a detection Result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FieldMatch records which raw header satisfied a canonical field.
type FieldMatch struct {
	Field  string `json:"field"`
	Alias  string `json:"alias"`
	Header string `json:"header"`
}

// MissingField is a required field that no header satisfied.
type MissingField struct {
	Field      string   `json:"field"`
	Candidates []string `json:"candidates"`
}

// Evaluation is the score of one spec against one file.
type Evaluation struct {
	Spec          *schema.DatasetSpec `json:"-"`
	Required      []FieldMatch        `json:"matched_required"`
	Optional      []FieldMatch        `json:"matched_optional"`
	Missing       []MissingField      `json:"missing_required"`
	ScoreRequired int                 `json:"score_required"`
	ScoreOptional int                 `json:"score_optional"`
	FilenameBonus int                 `json:"filename_bonus"`
	TotalScore    int                 `json:"total_score"`
}

// Viable reports whether every required field of the spec matched.
func (e Evaluation) Viable() bool {
	return len(e.Required) == len(e.Spec.RequiredFields)
}

// MatchedRequired returns canonical field → raw header for required matches.
func (e Evaluation) MatchedRequired() map[string]string {
	return toMap(e.Required)
}

// MatchedOptional returns canonical field → raw header for identifying matches.
func (e Evaluation) MatchedOptional() map[string]string {
	return toMap(e.Optional)
}

// IdentifyingHeaders lists the matched raw headers, required ones first.
func (e Evaluation) IdentifyingHeaders() []string {
	out := make([]string, 0, len(e.Required)+len(e.Optional))
	for _, m := range e.Required {
		out = append(out, m.Header)
	}
	for _, m := range e.Optional {
		out = append(out, m.Header)
	}
	return out
}

func toMap(matches []FieldMatch) map[string]string {
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		out[m.Field] = m.Header
	}
	return out
}

// Diagnostics describes why a file was assigned to its dataset.
type Diagnostics struct {
	DatasetKey       string              `json:"dataset_key"`
	DisplayName      string              `json:"display_name"`
	MatchedRequired  map[string]string   `json:"matched_required"`
	MatchedOptional  map[string]string   `json:"matched_optional"`
	FilenameBonus    int                 `json:"filename_bonus"`
	Score            int                 `json:"score"`
	HeaderSample     []string            `json:"header_sample"`
	HeaderCollisions map[string][]string `json:"header_collisions,omitempty"`

	// Set once the full table is loaded.
	RowCount int      `json:"row_count"`
	Columns  []string `json:"columns,omitempty"`
}

// Result is the tagged outcome of Detect. On success DatasetKey and
// Diagnostics are set; on failure BestGuess and Failure are.
type Result struct {
	Outcome     Outcome
	FileName    string
	DatasetKey  string
	Diagnostics *Diagnostics
	BestGuess   *Evaluation
	Evaluations []Evaluation
	Failure     *NoViableSchemaError
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Outcome == OutcomeSuccess || r.Failure == nil {
		return nil
	}
	return r.Failure
}

// NoViableSchemaError reports a file whose headers satisfy no registered spec.
type NoViableSchemaError struct {
	FileName    string
	DatasetKey  string
	DisplayName string
	Missing     []MissingField
}

func (e *NoViableSchemaError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s (candidates: %s)", m.Field, strings.Join(m.Candidates, ", ")))
	}
	detail := strings.Join(parts, ", ")
	if detail == "" {
		detail = "required headers"
	}
	return fmt.Sprintf("File '%s' resembles '%s' but is missing required headers: %s.", e.FileName, e.DisplayName, detail)
}
