// Package metric provides Prometheus metrics for TillVault.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: metric definitions, registry, and HTTP handler
//
// Metrics include:
//
//   - Sale counters and revenue totals
//   - Backup write and recovery counters
//   - Storage statistics (registered by the record store)
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
