// Package schema defines collection specifications for the record
// store: per-collection validation hooks, secondary index extractors,
// and the sortable field used for range queries.
//
// The registry is populated once at store construction. Validation
// runs before any write; a batch with one invalid member is rejected
// whole.
package schema
