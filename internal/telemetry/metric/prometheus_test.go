package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Error("registry field is nil")
	}
	if m.SalesRecorded == nil {
		t.Error("SalesRecorded is nil")
	}
	if m.BackupsWritten == nil {
		t.Error("BackupsWritten is nil")
	}
	if m.RecoveryRuns == nil {
		t.Error("RecoveryRuns is nil")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SalesRecorded.Inc()
	m.SaleAmountTotal.Add(700)
	m.RecoveryRuns.WithLabelValues("prev1").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := string(body)

	for _, want := range []string{
		"tillvault_sales_recorded_total 1",
		"tillvault_sales_amount_cents_total 700",
		`tillvault_backup_recovery_total{generation="prev1"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_SaleFailuresLabels(t *testing.T) {
	m := New()
	m.SaleFailures.WithLabelValues("TV-PROD-4090").Inc()
	m.SaleFailures.WithLabelValues("TV-PROD-4090").Inc()
	m.SaleFailures.WithLabelValues("TV-SALE-4030").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `tillvault_sales_failures_total{code="TV-PROD-4090"} 2`) {
		t.Error("labelled failure counter missing")
	}
}
