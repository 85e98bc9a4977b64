// Package metric provides Prometheus metrics for TillVault.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Sale ledger metrics.
	SalesRecorded   prometheus.Counter
	SalesReversed   prometheus.Counter
	SaleAmountTotal prometheus.Counter
	SaleFailures    *prometheus.CounterVec

	// Backup metrics.
	BackupsWritten  prometheus.Counter
	BackupFailures  prometheus.Counter
	BackupSizeBytes prometheus.Gauge
	RecoveryRuns    *prometheus.CounterVec
}

// New creates the metrics and registers them, together with the Go
// runtime collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		SalesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "sales",
			Name:      "recorded_total",
			Help:      "Number of sales recorded.",
		}),
		SalesReversed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "sales",
			Name:      "reversed_total",
			Help:      "Number of sales reversed.",
		}),
		SaleAmountTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "sales",
			Name:      "amount_cents_total",
			Help:      "Gross revenue recorded, in cents.",
		}),
		SaleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "sales",
			Name:      "failures_total",
			Help:      "Sale operations rejected, by error code.",
		}, []string{"code"}),
		BackupsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "backup",
			Name:      "written_total",
			Help:      "Snapshot backups written.",
		}),
		BackupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "backup",
			Name:      "failures_total",
			Help:      "Snapshot backups that failed.",
		}),
		BackupSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tillvault",
			Subsystem: "backup",
			Name:      "size_bytes",
			Help:      "On-disk size of all backup rotation slots.",
		}),
		RecoveryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tillvault",
			Subsystem: "backup",
			Name:      "recovery_total",
			Help:      "Startup recoveries, by generation used.",
		}, []string{"generation"}),
	}

	reg.MustRegister(
		m.SalesRecorded,
		m.SalesReversed,
		m.SaleAmountTotal,
		m.SaleFailures,
		m.BackupsWritten,
		m.BackupFailures,
		m.BackupSizeBytes,
		m.RecoveryRuns,
	)
	return m
}

// Registry exposes the underlying registry so other components (the
// record store) can register their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
