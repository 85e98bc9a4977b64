// Package intent provides a write-ahead intent log for multi-step
// operations that span several storage transactions.
//
// A caller stages an intent before applying steps, records each
// applied step, and marks the intent complete afterwards. On open,
// intents that were begun but never completed are handed back to the
// caller for compensation. The log is a single append-only file of
// length+CRC framed JSON events; a torn trailing frame is truncated
// away on open.
package intent
