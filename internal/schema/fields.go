package schema

// Dataset keys
const (
	InstrumentReference  = "instrument_reference"
	InstrumentRiskMetric = "instrument_risk_metric"
	InstrumentResult     = "instrument_result"
	InstrumentCashFlow   = "instrument_cashflow"
	ChargeOff            = "chargeoff"
)

// Canonical fields shared by several datasets
const (
	FieldInstrumentIdentifier = "instrumentIdentifier"
	FieldPortfolioIdentifier  = "portfolioIdentifier"
	FieldReportingDate        = "reportingDate"
	FieldAsOfDate             = "asOfDate"
	FieldCashFlowDate         = "cashFlowDate"
	FieldChargeOffDate        = "chargeOffDate"
)

// Priority lists consumed by the dashboard pages. Earlier entries win.
var (
	PDPriority = []string{
		"annualizedCumulativePD",
		"forwardPD",
		"cumulativePD",
		"marginalPD",
		"maturityRiskPD",
	}

	RatingPriority = []string{
		"riskClassification",
		"longTermRatingFromStageAllocation",
		"longTermRatingFromStageAllocationScenarioBased",
	}

	EADPriority = []string{"ead", "eadAmount", "ifrsEADAmount"}

	LGDFields = []string{"lgd"}

	ChargeOffAmountPriority = []string{"netChargeOffAmount", "chargeOffAmount"}

	DateFields = []string{FieldReportingDate, FieldAsOfDate, FieldCashFlowDate, FieldChargeOffDate}

	IdentifierFields = []string{FieldInstrumentIdentifier, FieldPortfolioIdentifier}

	GeographyPriority = []string{
		"geographyCode",
		"borrowerZipCode",
		"collateralZipCode",
		"borrowerState",
		"collateralState",
	}

	PropertyFields = []string{"propertyStatus", "loanPropertyGroupIdentifier", "assetClass"}
)

// OccupancyField is the canonical occupancy column.
const OccupancyField = "occupancyStatus"
