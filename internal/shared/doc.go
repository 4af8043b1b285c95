// Package shared groups helpers used across the riskdash codebase that belong to
// no single domain package.
//
// The testutil subpackage provides a buffered slog handler for asserting log
// output and CSV fixture builders for the dataset types the intake pipeline
// recognizes.
package shared
