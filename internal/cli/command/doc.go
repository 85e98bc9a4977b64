// Package command provides CLI command definitions for tillvault.
//
// Command groups:
//
//   - product: catalog management and stock adjustments
//   - sale: recording, reversing, and summarizing sales
//   - backup: rotation slots, export and import
//   - settings: shop settings
//   - config: effective configuration and build info
//   - serve: long-running mode with health and metrics endpoints
//
// Every command opens the local shop directly; configuration comes
// from defaults, the optional config file, TILLVAULT_* environment
// variables, and flags, in that order.
package command
