// Package main provides the entry point for tillvault.
//
// The CLI tool manages a single shop's local data store:
//
//   - Product catalog and stock adjustments
//   - Sale recording, reversal, and summaries
//   - Backup rotation, export, and import
//   - Shop settings
//   - Long-running serve mode with health and metrics endpoints
//
// Usage:
//
//	tillvault [command] [flags]
//	tillvault sale record --item prod-...:2 --payment cash
//	tillvault backup create
//
// All data lives on this machine; no server is involved.
package main
