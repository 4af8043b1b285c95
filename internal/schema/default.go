package schema

import "sync"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of the five risk dashboard dataset types in
// evaluation order: reference, risk metric, result, cash flow, charge-off.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := NewRegistry(
			must(instrumentReferenceSpec()),
			must(instrumentRiskMetricSpec()),
			must(instrumentResultSpec()),
			must(instrumentCashFlowSpec()),
			must(chargeOffSpec()),
		)
		defaultRegistry = must(reg, err)
	})
	return defaultRegistry
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func idAndDateFields(withPortfolio bool) []FieldAliases {
	fields := []FieldAliases{Field(FieldInstrumentIdentifier, "instrument_id")}
	if withPortfolio {
		fields = append(fields, Field(FieldPortfolioIdentifier, "portfolio_id"))
	}
	return append(fields,
		Field(FieldReportingDate, "reporting_date"),
		Field(FieldAsOfDate, "as_of_date"),
	)
}

func instrumentReferenceSpec() (*DatasetSpec, error) {
	fields := append(idAndDateFields(true),
		Field("borrowerZipCode", "borrower_zip_code", "borrower_zip"),
		Field("collateralZipCode", "collateral_zip_code", "collateral_zip"),
		Field("borrowerState", "borrower_state"),
		Field("collateralState", "collateral_state"),
		Field("geographyCode", "geography_code", "cbsa_code", "msa_code"),
		Field(OccupancyField, "occupancy_status"),
		Field("propertyStatus", "property_status"),
		Field("loanPropertyGroupIdentifier", "loan_property_group_identifier", "property_group_id"),
		Field("assetClass", "asset_class"),
		Field("dealName", "deal_name"),
		Field("cusip", "cusip_number"),
		Field("obligorName", "obligor_name", "borrowerName"),
	)
	return NewDatasetSpec(
		InstrumentReference,
		"Instrument Reference",
		[]string{"instrumentreference", "reference"},
		[]string{FieldInstrumentIdentifier, FieldPortfolioIdentifier},
		[]string{
			FieldReportingDate,
			FieldAsOfDate,
			"borrowerZipCode",
			"collateralZipCode",
			"borrowerState",
			"collateralState",
			"geographyCode",
			OccupancyField,
			"propertyStatus",
			"loanPropertyGroupIdentifier",
			"assetClass",
		},
		fields...,
	)
}

func instrumentRiskMetricSpec() (*DatasetSpec, error) {
	fields := append(idAndDateFields(false),
		Field("annualizedCumulativePD", "annualized_pd"),
		Field("forwardPD", "forward_pd"),
		Field("cumulativePD", "cumulative_pd"),
		Field("marginalPD", "marginal_pd"),
		Field("maturityRiskPD", "maturity_risk_pd"),
		Field("lgd", "lossGivenDefault"),
		Field("lossRateAnnualized", "loss_rate_annualized"),
		Field("lossRateCumulative", "loss_rate_cumulative"),
		Field("ead", "exposureAtDefault"),
		Field("ccf"),
		Field("ugd"),
		Field("prepaymentRate", "prepayment_rate"),
		Field("forwardPrepaymentRate", "forward_prepayment_rate"),
		Field("cumulativePrepaymentRate", "cumulative_prepayment_rate"),
		Field("expectedCreditLossAmount", "expected_credit_loss_amount"),
		Field("exposure"),
	)
	return NewDatasetSpec(
		InstrumentRiskMetric,
		"Instrument Risk Metric",
		[]string{"instrumentriskmetric", "riskmetric", "risk_metrics"},
		[]string{FieldInstrumentIdentifier, FieldReportingDate},
		[]string{"annualizedCumulativePD", "forwardPD", "cumulativePD", "marginalPD", "maturityRiskPD", "lgd", "ead"},
		fields...,
	)
}

func instrumentResultSpec() (*DatasetSpec, error) {
	fields := append(idAndDateFields(true),
		Field("riskClassification", "risk_classification"),
		Field("longTermRatingFromStageAllocation", "long_term_rating_stage_allocation"),
		Field("longTermRatingFromStageAllocationScenarioBased",
			"long_term_rating_stage_allocation_scenario", "long_term_rating_scenario"),
		Field("ifrsEADAmount", "ifrs_ead_amount"),
		Field("lossRateDelta", "loss_rate_delta"),
		Field("lossAllowanceDelta", "loss_allowance_delta"),
		Field("ifrsLossRateUnadjusted", "ifrs_loss_rate_unadjusted"),
		Field("lossAllowanceDeltaInInstrumentCurrency", "loss_allowance_delta_in_instrument_currency"),
		Field("annualizedPDOneYear", "annualized_pd_one_year"),
		Field("lgdLifetime", "lgd_lifetime"),
		Field("amortizedCost", "amortized_cost"),
	)
	return NewDatasetSpec(
		InstrumentResult,
		"Instrument Result",
		[]string{"instrumentresult", "result"},
		[]string{FieldInstrumentIdentifier, FieldPortfolioIdentifier},
		[]string{
			FieldReportingDate,
			FieldAsOfDate,
			"riskClassification",
			"longTermRatingFromStageAllocation",
			"longTermRatingFromStageAllocationScenarioBased",
			"ifrsEADAmount",
			"lossAllowanceDelta",
		},
		fields...,
	)
}

func instrumentCashFlowSpec() (*DatasetSpec, error) {
	fields := []FieldAliases{
		Field(FieldInstrumentIdentifier, "instrument_id"),
		Field(FieldPortfolioIdentifier, "portfolio_id"),
		Field(FieldCashFlowDate, "cash_flow_date"),
		Field(FieldReportingDate, "reporting_date"),
		Field(FieldAsOfDate, "as_of_date"),
		Field("beginningUnpaidPrincipalBalance", "beginning_principal_balance"),
		Field("grossCarryingAmount", "gross_carrying_amount"),
		Field("principalPayment", "principal_payment"),
		Field("interestPayment", "interest_payment"),
		Field("prepaymentAmount", "prepayment_amount"),
		Field("defaultAmount", "default_amount"),
		Field("principalRecoveryAmount", "principal_recovery_amount"),
		Field("eadAmount", "ead_amount"),
		Field("forwardPD", "forward_pd"),
		Field("cumulativePD", "cumulative_pd"),
		Field("lgd"),
		Field("discountFactorForAllowance", "discount_factor_allowance"),
		Field("discountFactorForFairValue", "discount_factor_fair_value"),
	}
	return NewDatasetSpec(
		InstrumentCashFlow,
		"Instrument Cash Flow",
		[]string{"instrumentcashflow", "cashflow", "cash_flow"},
		[]string{FieldInstrumentIdentifier, FieldPortfolioIdentifier, FieldCashFlowDate},
		[]string{
			FieldReportingDate,
			FieldAsOfDate,
			"beginningUnpaidPrincipalBalance",
			"grossCarryingAmount",
			"principalPayment",
			"interestPayment",
			"prepaymentAmount",
			"defaultAmount",
			"principalRecoveryAmount",
			"eadAmount",
			"forwardPD",
			"cumulativePD",
			"lgd",
		},
		fields...,
	)
}

func chargeOffSpec() (*DatasetSpec, error) {
	return NewDatasetSpec(
		ChargeOff,
		"Charge-off",
		[]string{"chargeoff", "charge_off", "default"},
		[]string{FieldInstrumentIdentifier},
		[]string{FieldChargeOffDate, "netChargeOffAmount", "chargeOffAmount"},
		Field(FieldInstrumentIdentifier, "instrument_id"),
		Field(FieldChargeOffDate, "charge_off_date", "chargeoff_date", FieldReportingDate, FieldAsOfDate),
		Field(FieldReportingDate, "reporting_date"),
		Field(FieldAsOfDate, "as_of_date"),
		Field("netChargeOffAmount", "net_charge_off_amount"),
		Field("chargeOffAmount", "charge_off_amount"),
	)
}
