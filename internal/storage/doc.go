// Package storage provides the Badger-backed record store for
// tillvault.
//
// The store persists named collections of schema-validated JSON
// records, maintains in-memory secondary indexes (unique, non-unique,
// and a sortable field for range queries), allocates monotonic named
// counters, and applies versioned schema migrations at open.
//
// Multi-record writes (PutMany, DeleteAll plus bulk insert during
// restore) run in a single Badger transaction and are all-or-nothing.
// Cross-call sequences are not transactional; the intent log in
// storage/intent covers crash recovery for those.
package storage
