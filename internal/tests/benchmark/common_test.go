package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/core/service"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/intent"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

// ProductCounts defines catalog sizes for benchmarking.
var ProductCounts = []int{100, 1000, 10000}

// SmallProductCounts for quick benchmarks.
var SmallProductCounts = []int{100, 1000}

// benchEnv wires the service stack over a throwaway Badger store.
type benchEnv struct {
	store    *storage.Store
	sales    *service.SaleService
	products *service.ProductService
}

func newBenchEnv(b *testing.B) *benchEnv {
	b.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.Open(context.Background(), storage.DefaultConfig(b.TempDir()),
		schema.DefaultRegistry(), storage.DefaultMigrations(), logger)
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	b.Cleanup(func() { store.Close() })

	intents, _, err := intent.Open(b.TempDir(), logger)
	if err != nil {
		b.Fatalf("open intent log: %v", err)
	}
	b.Cleanup(func() { intents.Close() })

	alloc := storage.NewAllocator(store)
	audit := service.NewAuditService(store, logger)
	settings := service.NewSettingsService(store, audit, logger)
	products := service.NewProductService(store, audit, logger)

	return &benchEnv{
		store:    store,
		sales:    service.NewSaleService(store, products, alloc, intents, audit, settings, nil, logger),
		products: products,
	}
}

// seedProducts fills the catalog with count products carrying ample
// stock.
func seedProducts(b *testing.B, env *benchEnv, count int) []*domain.Product {
	b.Helper()
	ctx := context.Background()
	products := make([]*domain.Product, count)
	for i := 0; i < count; i++ {
		p, err := env.products.Create(ctx, &service.CreateProductRequest{
			Name:     fmt.Sprintf("Product %06d", i),
			Category: fmt.Sprintf("category-%d", i%20),
			Price:    int64(100 + i%900),
			Stock:    1 << 30,
		})
		if err != nil {
			b.Fatalf("seed product %d: %v", i, err)
		}
		products[i] = p
	}
	return products
}

// saleItemFor builds a one-line sale for the given product.
func saleItemFor(p *domain.Product) []domain.SaleItem {
	return []domain.SaleItem{{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    1,
		UnitPrice:   p.Price,
	}}
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}
