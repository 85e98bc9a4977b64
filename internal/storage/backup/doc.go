// Package backup keeps a bounded rotation of snapshot generations
// outside the primary store, schedules debounced backups after
// mutations, and drives the startup recovery cascade.
//
// Three generation slots exist: latest, prev1, prev2. Saving shifts
// prev1 to prev2 and latest to prev1, then writes the new snapshot as
// latest. On startup failure the cascade tries each generation in
// order and restores the first one that validates.
package backup
