package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "riskdash/internal/errors"
)

func TestDefault_Order(t *testing.T) {
	reg := Default()

	assert.Equal(t, []string{
		InstrumentReference,
		InstrumentRiskMetric,
		InstrumentResult,
		InstrumentCashFlow,
		ChargeOff,
	}, reg.Keys())
	assert.Same(t, reg, Default())
}

func TestDefault_SpecDefinitions(t *testing.T) {
	tests := []struct {
		key         string
		display     string
		prefixes    []string
		required    []string
		identifying int
	}{
		{InstrumentReference, "Instrument Reference", []string{"instrumentreference", "reference"}, []string{"instrumentIdentifier", "portfolioIdentifier"}, 11},
		{InstrumentRiskMetric, "Instrument Risk Metric", []string{"instrumentriskmetric", "riskmetric", "risk_metrics"}, []string{"instrumentIdentifier", "reportingDate"}, 7},
		{InstrumentResult, "Instrument Result", []string{"instrumentresult", "result"}, []string{"instrumentIdentifier", "portfolioIdentifier"}, 7},
		{InstrumentCashFlow, "Instrument Cash Flow", []string{"instrumentcashflow", "cashflow", "cash_flow"}, []string{"instrumentIdentifier", "portfolioIdentifier", "cashFlowDate"}, 13},
		{ChargeOff, "Charge-off", []string{"chargeoff", "charge_off", "default"}, []string{"instrumentIdentifier"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			spec, ok := Default().Lookup(tt.key)
			require.True(t, ok)

			assert.Equal(t, tt.display, spec.DisplayName)
			assert.Equal(t, tt.prefixes, spec.FilenamePrefixes)
			assert.Equal(t, tt.required, spec.RequiredFields)
			assert.Len(t, spec.IdentifyingFields, tt.identifying)

			for _, f := range spec.Fields() {
				assert.Equal(t, f, spec.AliasFor(f)[0])
			}
		})
	}
}

func TestDatasetSpec_AliasFor(t *testing.T) {
	spec, ok := Default().Lookup(InstrumentResult)
	require.True(t, ok)

	assert.Equal(t, []string{"undeclaredField"}, spec.AliasFor("undeclaredField"))
	assert.False(t, spec.HasField("undeclaredField"))
	assert.True(t, spec.HasField("amortizedCost"))
	assert.Contains(t, spec.AliasFor("amortizedCost"), "amortized_cost")
}

func TestNewDatasetSpec_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*DatasetSpec, error)
	}{
		{
			name: "missing key",
			build: func() (*DatasetSpec, error) {
				return NewDatasetSpec("", "X", nil, nil, nil)
			},
		},
		{
			name: "required field without aliases",
			build: func() (*DatasetSpec, error) {
				return NewDatasetSpec("x", "X", nil, []string{"id"}, nil, Field("other"))
			},
		},
		{
			name: "duplicate field",
			build: func() (*DatasetSpec, error) {
				return NewDatasetSpec("x", "X", nil, nil, nil, Field("id"), Field("id"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDefinition))
		})
	}
}

func TestNewRegistry_DuplicateKey(t *testing.T) {
	spec, err := NewDatasetSpec("x", "X", nil, nil, nil, Field("id"))
	require.NoError(t, err)

	_, err = NewRegistry(spec, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestRegistry_FieldCandidates(t *testing.T) {
	reg := Default()
	candidates := reg.FieldCandidates()

	require.NotEmpty(t, candidates)
	assert.Equal(t, FieldInstrumentIdentifier, candidates[0].Field)

	assert.Equal(t, []string{"lgd", "lossGivenDefault", "lossgivendefault"}, reg.CandidatesFor("lgd"))
	assert.Equal(t, []string{
		"chargeOffDate", "chargeoffdate", "charge_off_date",
		"chargeoff_date", "reportingDate", "reportingdate", "asOfDate", "asofdate",
	}, reg.CandidatesFor(FieldChargeOffDate))
	assert.Nil(t, reg.CandidatesFor("nope"))

	seen := map[string]bool{}
	for _, fa := range candidates {
		assert.False(t, seen[fa.Field], "field %s listed twice", fa.Field)
		seen[fa.Field] = true
	}
}
