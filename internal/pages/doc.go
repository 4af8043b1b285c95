// Package pages declares the dashboard pages that consume uploaded datasets
// and evaluates whether their inputs are complete.
//
// Each Page owns an ordered list of input slots (PageInputConfig). A slot names
// the dataset type it accepts and the header expectations the file must meet.
// An InputStatus records what happened when a file was placed in a slot; a
// PanelState aggregates the statuses of one page into the readiness verdict.
//
// Pages may also carry date coverage checks that run once every required slot
// is loaded, for example the 36 month look-back the default cohort page needs.
package pages
