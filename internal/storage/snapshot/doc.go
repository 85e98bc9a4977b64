// Package snapshot aggregates every collection of the record store
// into one versioned, checksummed, optionally gzip-compressed blob,
// and restores such a blob back into the store.
//
// The checksum covers the canonical serialization of the snapshot
// minus the checksum field itself. A snapshot whose recomputed digest
// disagrees is untrusted and is never restored. Restore clears each
// collection and bulk-inserts its table in one storage transaction;
// atomicity across collections is not guaranteed, and a failed
// restore should send the caller back into the recovery cascade.
package snapshot
