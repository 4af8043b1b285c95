package resolve

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskdash/internal/schema"
)

func lookup(t *testing.T, key string) *schema.DatasetSpec {
	t.Helper()
	spec, ok := schema.Default().Lookup(key)
	require.True(t, ok)
	return spec
}

func TestMatch(t *testing.T) {
	reference := lookup(t, schema.InstrumentReference)

	tests := []struct {
		name         string
		columns      []string
		exp          HeaderExpectation
		wantSelected map[string]string
		wantMissing  []string
	}{
		{
			name:    "all mode reports each miss",
			columns: []string{"Instrument_ID", "balance"},
			exp: HeaderExpectation{
				Name:       "Instrument identifiers",
				Candidates: []string{"instrumentIdentifier", "portfolioIdentifier"},
				Required:   true,
				Match:      MatchAll,
			},
			wantSelected: map[string]string{"instrumentIdentifier": "Instrument_ID"},
			wantMissing:  []string{"portfolioIdentifier"},
		},
		{
			name:    "empty mode behaves as all",
			columns: []string{"instrumentIdentifier", "portfolio_id"},
			exp: HeaderExpectation{
				Name:       "Instrument identifiers",
				Candidates: []string{"instrumentIdentifier", "portfolioIdentifier"},
				Required:   true,
			},
			wantSelected: map[string]string{
				"instrumentIdentifier": "instrumentIdentifier",
				"portfolioIdentifier":  "portfolio_id",
			},
		},
		{
			name:    "any mode short circuits on first candidate",
			columns: []string{"collateralState", "borrower_state"},
			exp: HeaderExpectation{
				Name:       "State",
				Candidates: []string{"borrowerState", "collateralState"},
				Required:   true,
				Match:      MatchAny,
			},
			wantSelected: map[string]string{"borrowerState": "borrower_state"},
		},
		{
			name:    "any mode falls through to later candidate",
			columns: []string{"COLLATERAL_ZIP"},
			exp: HeaderExpectation{
				Name:       "Geography",
				Candidates: []string{"geographyCode", "borrowerZipCode", "collateralZipCode"},
				Required:   false,
				Match:      MatchAny,
			},
			wantSelected: map[string]string{"collateralZipCode": "COLLATERAL_ZIP"},
		},
		{
			name:    "required any miss reports one combined entry",
			columns: []string{"instrumentIdentifier"},
			exp: HeaderExpectation{
				Name:       "State",
				Candidates: []string{"borrowerState", "collateralState"},
				Required:   true,
				Match:      MatchAny,
			},
			wantSelected: map[string]string{},
			wantMissing:  []string{"borrowerState / collateralState"},
		},
		{
			name:    "optional any miss reports nothing",
			columns: []string{"instrumentIdentifier"},
			exp: HeaderExpectation{
				Name:       "Occupancy",
				Candidates: []string{"occupancyStatus"},
				Required:   false,
				Match:      MatchAny,
			},
			wantSelected: map[string]string{},
		},
		{
			name:    "optional all miss is still reported",
			columns: []string{"instrumentIdentifier"},
			exp: HeaderExpectation{
				Name:       "Portfolio identifier",
				Candidates: []string{"portfolioIdentifier"},
				Required:   false,
				Match:      MatchAll,
			},
			wantSelected: map[string]string{},
			wantMissing:  []string{"portfolioIdentifier"},
		},
		{
			name:    "unregistered field resolves by its own name",
			columns: []string{"Deal Name", "custom field"},
			exp: HeaderExpectation{
				Name:       "Custom",
				Candidates: []string{"customField"},
				Required:   true,
			},
			wantSelected: map[string]string{"customField": "custom field"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(reference, tt.columns, tt.exp)
			assert.Equal(t, tt.wantSelected, got.Selected)
			assert.Equal(t, tt.wantMissing, got.Missing)
		})
	}
}

func TestMatch_CollisionUsesFirstHeader(t *testing.T) {
	got := Match(lookup(t, schema.InstrumentRiskMetric),
		[]string{"reporting_date", "ReportingDate"},
		HeaderExpectation{Name: "Observation date", Candidates: []string{"reportingDate"}, Required: true})

	assert.Equal(t, map[string]string{"reportingDate": "reporting_date"}, got.Selected)
}

func TestHeaderExpectation_Summary(t *testing.T) {
	exp := HeaderExpectation{
		Name:       "Geography",
		Candidates: []string{"geographyCode", "borrowerZipCode"},
		Match:      MatchAny,
		Note:       "CBSA when available, ZIP fallback otherwise.",
	}
	assert.Equal(t, "- `Geography` (Optional): geographyCode → borrowerZipCode. CBSA when available, ZIP fallback otherwise.", exp.Summary())
}

func TestHeaderExpectation_Validation(t *testing.T) {
	validate := validator.New()

	tests := []struct {
		name    string
		exp     HeaderExpectation
		wantErr bool
	}{
		{"valid", HeaderExpectation{Name: "x", Candidates: []string{"a"}}, false},
		{"missing name", HeaderExpectation{Candidates: []string{"a"}}, true},
		{"no candidates", HeaderExpectation{Name: "x"}, true},
		{"blank candidate", HeaderExpectation{Name: "x", Candidates: []string{""}}, true},
		{"unknown mode", HeaderExpectation{Name: "x", Candidates: []string{"a"}, Match: "some"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.exp)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHarmonize(t *testing.T) {
	spec := lookup(t, schema.InstrumentRiskMetric)

	got := Harmonize(spec, []string{"Instrument ID", "as_of_date", "Forward PD"},
		[]string{"instrumentIdentifier", "reportingDate", "asOfDate", "forwardPD"})

	assert.Equal(t, []ColumnMapping{
		{Field: "instrumentIdentifier", Column: "Instrument ID"},
		{Field: "asOfDate", Column: "as_of_date"},
		{Field: "forwardPD", Column: "Forward PD"},
	}, got)
}
