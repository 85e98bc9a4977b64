package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/intent"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires the full service stack over a throwaway store.
type testEnv struct {
	store    *storage.Store
	alloc    *storage.Allocator
	intents  *intent.Log
	audit    *AuditService
	settings *SettingsService
	products *ProductService
	sales    *SaleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	store, err := storage.Open(context.Background(), storage.DefaultConfig(t.TempDir()),
		schema.DefaultRegistry(), storage.DefaultMigrations(), logger)
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	intents, pending, err := intent.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Open intent log: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("fresh intent log has %d pending intents", len(pending))
	}
	t.Cleanup(func() { intents.Close() })

	alloc := storage.NewAllocator(store)
	audit := NewAuditService(store, logger)
	settings := NewSettingsService(store, audit, logger)
	products := NewProductService(store, audit, logger)
	sales := NewSaleService(store, products, alloc, intents, audit, settings, nil, logger)

	return &testEnv{
		store:    store,
		alloc:    alloc,
		intents:  intents,
		audit:    audit,
		settings: settings,
		products: products,
		sales:    sales,
	}
}

// seedProduct adds a product with the given stock and returns it.
func (e *testEnv) seedProduct(t *testing.T, name string, price, stock int64) *domain.Product {
	t.Helper()
	p, err := e.products.Create(context.Background(), &CreateProductRequest{
		Name:     name,
		Category: "test",
		Price:    price,
		Stock:    stock,
		MinStock: 1,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", name, err)
	}
	return p
}

// productStock re-reads a product's current stock level.
func (e *testEnv) productStock(t *testing.T, id string) int64 {
	t.Helper()
	p, err := e.products.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get product %s: %v", id, err)
	}
	return p.Stock
}
