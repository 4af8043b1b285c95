// Package schema holds the registry of dataset specifications recognized by the
// intake pipeline.
//
// A DatasetSpec declares the canonical fields of one dataset type, which of them
// are required, which are identifying, the filename prefixes that hint at the
// type, and the ordered alias list for every canonical field. The first alias of
// each list is always the canonical name itself.
//
// The registry is static: Default returns the five dataset types understood by the
// risk dashboard in their fixed evaluation order. Specs are read-only after
// construction and safe to share between goroutines.
package schema
