package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskdash/internal/schema"
)

// ColumnSource reads the values of one column of a loaded slot.
type ColumnSource interface {
	ColumnValues(ctx context.Context, status *InputStatus, column string) ([]string, error)
}

// Coverage window of the macro linkage series.
var (
	MacroExpectedStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	MacroExpectedEnd   = time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
)

// LeadMonths is the risk history a default event needs before it occurs.
const LeadMonths = 36

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"20060102",
	"2006-01",
}

// ParseDate parses a cell with the accepted date layouts.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDates parses every cell and drops the ones that are not dates.
func ParseDates(values []string) []time.Time {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		if t, ok := ParseDate(v); ok {
			out = append(out, t)
		}
	}
	return out
}

// MonthsBefore subtracts months from t, clamping the day to the length of the
// target month.
func MonthsBefore(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, -months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func bounds(dates []time.Time) (time.Time, time.Time) {
	lo, hi := dates[0], dates[0]
	for _, t := range dates[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return lo, hi
}

func day(t time.Time) string {
	return t.Format(dateLayout)
}

// slotDates returns the parsed dates of the first selected column among fields.
func slotDates(ctx context.Context, src ColumnSource, status *InputStatus, fields ...string) ([]time.Time, error) {
	if status == nil || !status.IsLoaded() {
		return nil, nil
	}
	column, ok := status.Selected(fields...)
	if !ok {
		return nil, nil
	}
	values, err := src.ColumnValues(ctx, status, column)
	if err != nil {
		return nil, err
	}
	return ParseDates(values), nil
}

// TimespanCheck requires the macro linkage risk series to cover
// 2023-01-01 through 2025-06-30.
func TimespanCheck(ctx context.Context, state *PanelState, src ColumnSource) ([]string, error) {
	status := state.Status("risk_metrics_timeseries")
	if status == nil || !status.IsLoaded() {
		return nil, nil
	}

	dates, err := slotDates(ctx, src, status, schema.FieldReportingDate, schema.FieldAsOfDate)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return []string{"Risk metric time series lacks valid reporting/as-of dates. " +
			"Ensure the file contains observations from 2023 through 2025."}, nil
	}

	var issues []string
	lo, hi := bounds(dates)
	if lo.After(MacroExpectedStart) {
		issues = append(issues, fmt.Sprintf(
			"Risk metric series begins on %s, but should include observations on or before 2023-01-01.", day(lo)))
	}
	if hi.Before(MacroExpectedEnd) {
		issues = append(issues, fmt.Sprintf(
			"Risk metric series ends on %s, but should extend through at least mid-2025.", day(hi)))
	}
	return issues, nil
}

// EventSourceCheck requires either the charge-off or the cash flow slot of the
// default cohort page to be loaded.
func EventSourceCheck(_ context.Context, state *PanelState, _ ColumnSource) ([]string, error) {
	for _, slot := range []string{"chargeoff_events", "cashflow_events"} {
		if st := state.Status(slot); st != nil && st.IsLoaded() {
			return nil, nil
		}
	}
	return []string{"Upload either the charge-off events file or the instrument cash flow file to define default cohorts."}, nil
}

func eventDates(ctx context.Context, state *PanelState, src ColumnSource) ([]time.Time, error) {
	dates, err := slotDates(ctx, src, state.Status("chargeoff_events"),
		schema.FieldChargeOffDate, schema.FieldReportingDate, schema.FieldAsOfDate)
	if err != nil || len(dates) > 0 {
		return dates, err
	}
	return slotDates(ctx, src, state.Status("cashflow_events"), schema.FieldCashFlowDate)
}

// HistoryCheck requires the risk history to start LeadMonths before the
// earliest default event and to reach the latest one.
func HistoryCheck(ctx context.Context, state *PanelState, src ColumnSource) ([]string, error) {
	events, err := eventDates(ctx, state, src)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []string{"Provide either a charge-off file or a cash flow file with default events to define the cohort."}, nil
	}

	status := state.Status("risk_metrics_history")
	if status == nil || !status.IsLoaded() {
		return []string{"Risk metric history is required to evaluate defaulted cohorts."}, nil
	}
	history, err := slotDates(ctx, src, status, schema.FieldReportingDate, schema.FieldAsOfDate)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return []string{"Risk metric history lacks valid reporting/as-of dates. Supply the full history."}, nil
	}

	var issues []string
	earliest, latest := bounds(events)
	first, last := bounds(history)
	requiredStart := MonthsBefore(earliest, LeadMonths)
	if first.After(requiredStart) {
		issues = append(issues, fmt.Sprintf(
			"Risk metric history begins on %s, but defaults as early as %s require history back to at least %s.",
			day(first), day(earliest), day(requiredStart)))
	}
	if last.Before(latest) {
		issues = append(issues, fmt.Sprintf(
			"Risk metric history ends on %s, which predates the latest default event (%s). Extend the history.",
			day(last), day(latest)))
	}
	return issues, nil
}

// Quarter formats t as 2006Q1.
func Quarter(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), (int(t.Month())-1)/3+1)
}

// QuarterCheck requires every loaded slot that declares a Quarter to hold
// observations from exactly that quarter.
func QuarterCheck(ctx context.Context, state *PanelState, src ColumnSource) ([]string, error) {
	var issues []string
	for _, in := range state.Page.Inputs {
		status := state.Status(in.Key)
		if in.Quarter == "" || !status.IsLoaded() {
			continue
		}

		dates, err := slotDates(ctx, src, status, schema.FieldReportingDate, schema.FieldAsOfDate)
		if err != nil {
			return nil, err
		}
		if len(dates) == 0 {
			issues = append(issues, fmt.Sprintf(
				"%s is missing reporting/as-of date columns needed for quarter validation.", in.Title))
			continue
		}

		seen := map[string]bool{}
		var quarters []string
		for _, d := range dates {
			q := Quarter(d)
			if !seen[q] {
				seen[q] = true
				quarters = append(quarters, q)
			}
		}
		switch {
		case len(quarters) != 1:
			issues = append(issues, fmt.Sprintf("%s contains multiple quarters (%s). Expected %s.",
				in.Title, strings.Join(quarters, ", "), in.Quarter))
		case quarters[0] != in.Quarter:
			issues = append(issues, fmt.Sprintf("%s appears to use %s data. Expected %s.",
				in.Title, quarters[0], in.Quarter))
		}
	}
	return issues, nil
}
