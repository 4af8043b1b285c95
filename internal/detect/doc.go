// Package detect classifies a tabular file into one of the registered dataset
// types by scoring its header row and filename against every spec.
//
// Scoring per spec:
//
//	score_required = 5 × matched required fields
//	score_optional = matched identifying fields
//	filename_bonus = 2 if the lowercased name starts with a prefix,
//	                 1 if it only contains one, else 0
//	total          = score_required + score_optional + filename_bonus
//
// Only specs whose required fields all matched are viable. Viable specs are
// ranked by (total, score_required, score_optional), descending, and the first
// one wins; equal keys keep registry order. When nothing is viable the
// highest-scoring spec is reported as the best guess together with the
// required fields it lacked.
//
// The Engine holds no mutable state and may be shared between goroutines.
package detect
