package pages

import (
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
)

// Page keys
const (
	RealEstatePD    = "real_estate_pd"
	RatingMigration = "rating_migration"
	Backtest        = "backtest"
	MacroLinkage    = "macro_linkage"
	DefaultCohorts  = "default_cohorts"
)

var (
	instrumentIDs      = []string{schema.FieldInstrumentIdentifier}
	instrumentAndFolio = []string{schema.FieldInstrumentIdentifier, schema.FieldPortfolioIdentifier}
	snapshotDates      = []string{schema.FieldReportingDate, schema.FieldAsOfDate}
	geography          = []string{"geographyCode", "borrowerZipCode", "collateralZipCode"}
	states             = []string{"borrowerState", "collateralState"}
)

func expect(name string, candidates []string, required bool, match resolve.MatchMode) resolve.HeaderExpectation {
	return resolve.HeaderExpectation{Name: name, Candidates: candidates, Required: required, Match: match}
}

// DefaultCatalog returns the dashboard pages in tab order.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		realEstatePDPage(),
		ratingMigrationPage(),
		backtestPage(),
		macroLinkagePage(),
		defaultCohortsPage(),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func realEstatePDPage() *Page {
	geo := expect("Geography", geography, false, resolve.MatchAny)
	geo.Note = "CBSA when available, ZIP fallback otherwise."

	return &Page{
		Key:     RealEstatePD,
		Title:   "Real Estate PD Heatmap",
		Subject: "Heatmap",
		Inputs: []PageInputConfig{
			{
				Key:         "reference_current",
				Title:       "Instrument Reference",
				DatasetKey:  schema.InstrumentReference,
				Required:    true,
				Description: "Instrument characteristics, geography, and segmentation attributes for the selected quarter.",
				Expectations: []resolve.HeaderExpectation{
					expect("Instrument identifier", instrumentIDs, true, resolve.MatchAll),
					expect("Portfolio identifier", []string{schema.FieldPortfolioIdentifier}, false, resolve.MatchAll),
					expect("Snapshot date", snapshotDates, false, resolve.MatchAny),
					geo,
					expect("State", states, true, resolve.MatchAny),
					expect("Occupancy", []string{schema.OccupancyField}, false, resolve.MatchAll),
					expect("Property grouping", schema.PropertyFields, false, resolve.MatchAny),
				},
			},
			{
				Key:         "result_current",
				Title:       "Instrument Result",
				DatasetKey:  schema.InstrumentResult,
				Required:    true,
				Description: "Credit quality metrics (PD, LGD) and balances for the same quarter.",
				Expectations: []resolve.HeaderExpectation{
					expect("Instrument identifier", instrumentIDs, true, resolve.MatchAll),
					expect("Portfolio identifier", []string{schema.FieldPortfolioIdentifier}, false, resolve.MatchAll),
					expect("Snapshot date", snapshotDates, false, resolve.MatchAny),
					expect("One-year PD", []string{"annualizedPDOneYear"}, true, resolve.MatchAll),
					expect("Lifetime LGD", []string{"lgdLifetime"}, true, resolve.MatchAll),
					expect("Amortized cost", []string{"amortizedCost"}, true, resolve.MatchAll),
				},
			},
		},
	}
}

func ratingMigrationPage() *Page {
	result := func(quarter, label, description string) PageInputConfig {
		return PageInputConfig{
			Key:         "result_" + label,
			Title:       "Instrument Result – " + title(label),
			DatasetKey:  schema.InstrumentResult,
			Required:    true,
			Description: description,
			Quarter:     quarter,
			Expectations: []resolve.HeaderExpectation{
				expect("Instrument identifiers", instrumentAndFolio, true, resolve.MatchAll),
				expect("Snapshot date", snapshotDates, true, resolve.MatchAny),
				expect("Risk rating (priority)", schema.RatingPriority, true, resolve.MatchAny),
			},
		}
	}
	risk := func(quarter, label, description string) PageInputConfig {
		return PageInputConfig{
			Key:         "risk_" + label,
			Title:       "Instrument Risk Metric – " + title(label) + " (optional)",
			DatasetKey:  schema.InstrumentRiskMetric,
			Required:    false,
			Description: description,
			Quarter:     quarter,
			Expectations: []resolve.HeaderExpectation{
				expect("Instrument identifiers", instrumentIDs, false, resolve.MatchAll),
				expect("Snapshot date", snapshotDates, false, resolve.MatchAny),
				expect("Probability of default", schema.PDPriority, false, resolve.MatchAny),
			},
		}
	}

	return &Page{
		Key:     RatingMigration,
		Title:   "Risk Rating Migration",
		Subject: "Migration",
		Inputs: []PageInputConfig{
			result("2023Q2", "q2_2023", "Starting-point classifications for the Q2 2023 cohort."),
			result("2025Q2", "q2_2025", "End-point classifications for the Q2 2025 cohort."),
			risk("2023Q2", "q2_2023", "Fallback PD measures used when ratings are missing in Q2 2023."),
			risk("2025Q2", "q2_2025", "Fallback PD measures used when ratings are missing in Q2 2025."),
		},
		Checks: []Check{QuarterCheck},
	}
}

// title turns a slot label such as q2_2023 into "Q2 2023".
func title(label string) string {
	if len(label) == 7 {
		return "Q" + label[1:2] + " " + label[3:]
	}
	return label
}

func backtestPage() *Page {
	return &Page{
		Key:     Backtest,
		Title:   "Backtest 2024",
		Subject: "Backtest",
		Notice:  "Backtest page is under construction.",
	}
}

func riskHistoryExpectations() []resolve.HeaderExpectation {
	return []resolve.HeaderExpectation{
		expect("Instrument identifiers", instrumentIDs, true, resolve.MatchAll),
		expect("Observation date", snapshotDates, true, resolve.MatchAny),
		expect("Probability of default", schema.PDPriority, true, resolve.MatchAny),
		expect("Loss given default", schema.LGDFields, false, resolve.MatchAll),
	}
}

func macroLinkagePage() *Page {
	return &Page{
		Key:     MacroLinkage,
		Title:   "Macro Linkage",
		Subject: "Macro linkage",
		Inputs: []PageInputConfig{
			{
				Key:          "risk_metrics_timeseries",
				Title:        "Instrument Risk Metric (2023 through 2025)",
				DatasetKey:   schema.InstrumentRiskMetric,
				Required:     true,
				Description:  "Time-series probability of default and LGD data spanning 2023 through mid 2025.",
				Expectations: riskHistoryExpectations(),
			},
			{
				Key:         "reference_enrichment",
				Title:       "Instrument Reference (Geography Enrichment)",
				DatasetKey:  schema.InstrumentReference,
				Required:    true,
				Description: "Provides ZIP, CBSA, state, and portfolio identifiers for geography mapping.",
				Expectations: []resolve.HeaderExpectation{
					expect("Instrument identifiers", instrumentAndFolio, true, resolve.MatchAll),
					expect("Latest snapshot date", snapshotDates, false, resolve.MatchAny),
					expect("Geography (CBSA/ZIP priority)", geography, true, resolve.MatchAny),
					expect("State fallback", states, true, resolve.MatchAny),
				},
			},
		},
		Checks: []Check{TimespanCheck},
	}
}

func defaultCohortsPage() *Page {
	return &Page{
		Key:     DefaultCohorts,
		Title:   "Defaulted Cohorts",
		Subject: "Default cohort",
		Inputs: []PageInputConfig{
			{
				Key:         "chargeoff_events",
				Title:       "Charge-off Events (preferred)",
				DatasetKey:  schema.ChargeOff,
				Required:    false,
				Description: "Primary default event source used when available.",
				Expectations: []resolve.HeaderExpectation{
					expect("Instrument identifiers", instrumentIDs, false, resolve.MatchAll),
					expect("Charge-off date", []string{schema.FieldChargeOffDate, schema.FieldReportingDate, schema.FieldAsOfDate}, false, resolve.MatchAny),
					expect("Charge-off amount", schema.ChargeOffAmountPriority, false, resolve.MatchAny),
				},
			},
			{
				Key:         "cashflow_events",
				Title:       "Instrument Cash Flow (default inference)",
				DatasetKey:  schema.InstrumentCashFlow,
				Required:    false,
				Description: "Used to infer defaults when charge-off files are unavailable. Requires defaultAmount and cashFlowDate.",
				Expectations: []resolve.HeaderExpectation{
					expect("Instrument identifiers", instrumentIDs, false, resolve.MatchAll),
					expect("Cash flow date", []string{schema.FieldCashFlowDate}, false, resolve.MatchAll),
					expect("Default amount", []string{"defaultAmount"}, false, resolve.MatchAll),
					expect("Principal recovery", []string{"principalRecoveryAmount"}, false, resolve.MatchAll),
				},
			},
			{
				Key:          "risk_metrics_history",
				Title:        "Instrument Risk Metric History",
				DatasetKey:   schema.InstrumentRiskMetric,
				Required:     true,
				Description:  "Time series of PD/LGD observations sufficient to cover at least 36 months prior to each default event.",
				Expectations: riskHistoryExpectations(),
			},
		},
		Checks: []Check{EventSourceCheck, HistoryCheck},
	}
}
