package testutil

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// CSV renders a header row and data rows as CSV bytes
func CSV(headers []string, rows ...[]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(headers)
	for _, row := range rows {
		_ = w.Write(row)
	}
	w.Flush()
	return buf.Bytes()
}

// ReferenceCSV returns a small instrument reference extract
func ReferenceCSV() []byte {
	return CSV(
		[]string{"instrumentIdentifier", "portfolioIdentifier", "reportingDate", "borrowerState", "geographyCode", "occupancyStatus", "propertyStatus"},
		[]string{"I-1", "P-1", "2024-06-30", "TX", "19100", "Owner", "Existing"},
		[]string{"I-2", "P-1", "2024-06-30", "CA", "31080", "Investor", "Existing"},
	)
}

// RiskMetricCSV returns an instrument risk metric history covering the given dates
func RiskMetricCSV(dates ...string) []byte {
	rows := make([][]string, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, []string{"I-1", d, "0.021", "0.45"})
	}
	return CSV([]string{"instrumentIdentifier", "reportingDate", "annualizedCumulativePD", "lgd"}, rows...)
}

// ResultCSV returns an instrument result extract with PD, LGD and balance columns
func ResultCSV() []byte {
	return CSV(
		[]string{"instrumentIdentifier", "portfolioIdentifier", "reportingDate", "riskClassification", "annualizedPDOneYear", "lgdLifetime", "amortizedCost"},
		[]string{"I-1", "P-1", "2025-06-30", "A", "0.012", "0.40", "125000"},
	)
}

// ChargeOffCSV returns charge-off events on the given dates
func ChargeOffCSV(dates ...string) []byte {
	rows := make([][]string, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, []string{"I-1", d, "1000"})
	}
	return CSV([]string{"instrumentIdentifier", "chargeOffDate", "netChargeOffAmount"}, rows...)
}

// WriteFixture writes content to name inside a temporary directory and returns the path
func WriteFixture(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}
