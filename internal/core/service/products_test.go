package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/tillvault-go/internal/core/domain"
)

func TestProductService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	p, err := env.products.Create(ctx, &CreateProductRequest{
		Name:     "Coffee",
		Barcode:  "4006381333931",
		Category: "beverages",
		Price:    350,
		Stock:    10,
		MinStock: 3,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !domain.IsValidID(p.ID, domain.ProductIDPrefix) {
		t.Errorf("ID = %q", p.ID)
	}

	got, err := env.products.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Coffee" || got.Stock != 10 || got.MinStock != 3 {
		t.Errorf("Get = %+v", got)
	}

	byBarcode, err := env.products.GetByBarcode(ctx, "4006381333931")
	if err != nil {
		t.Fatalf("GetByBarcode: %v", err)
	}
	if byBarcode.ID != p.ID {
		t.Errorf("GetByBarcode = %s, want %s", byBarcode.ID, p.ID)
	}

	entries, err := env.audit.ListByAction(ctx, domain.AuditActionProductCreated)
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(entries) != 1 || entries[0].EntityID != p.ID {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestProductService_GetMissing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.products.Get(context.Background(), "prod-00000000000000000000000000")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("Get = %v, want ErrProductNotFound", err)
	}
	_, err = env.products.GetByBarcode(context.Background(), "0000000000000")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("GetByBarcode = %v, want ErrProductNotFound", err)
	}
}

func TestProductService_DuplicateBarcode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	req := &CreateProductRequest{Name: "Coffee", Barcode: "4006381333931", Price: 350, Stock: 1}
	if _, err := env.products.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	req.Name = "Other Coffee"
	if _, err := env.products.Create(ctx, req); !errors.Is(err, domain.ErrUniqueViolation) {
		t.Fatalf("duplicate Create = %v, want ErrUniqueViolation", err)
	}
}

func TestProductService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.seedProduct(t, "Coffee", 350, 10)

	p.Price = 400
	if err := env.products.Update(ctx, p, "staff-1"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := env.products.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Price != 400 {
		t.Errorf("Price = %d, want 400", got.Price)
	}

	if err := env.products.Delete(ctx, p.ID, "staff-1", "discontinued"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.products.Get(ctx, p.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
	if err := env.products.Delete(ctx, p.ID, "staff-1", ""); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("second Delete = %v, want ErrProductNotFound", err)
	}
}

func TestProductService_AdjustStock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p := env.seedProduct(t, "Coffee", 350, 10)

	got, err := env.products.AdjustStock(ctx, p.ID, -4, "staff-1", "breakage")
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if got.Stock != 6 {
		t.Errorf("Stock = %d, want 6", got.Stock)
	}

	// Stock never goes negative; the whole adjustment is rejected.
	if _, err := env.products.AdjustStock(ctx, p.ID, -7, "", ""); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("AdjustStock = %v, want ErrInsufficientStock", err)
	}
	if got := env.productStock(t, p.ID); got != 6 {
		t.Errorf("Stock after rejected adjustment = %d, want 6", got)
	}

	if _, err := env.products.AdjustStock(ctx, p.ID, 0, "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero delta = %v, want ErrInvalidArgument", err)
	}

	entries, err := env.audit.ListByAction(ctx, domain.AuditActionStockAdjusted)
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].Meta.Quantity != -4 || entries[0].Reason != "breakage" {
		t.Errorf("audit entry = %+v", entries[0])
	}
}

func TestProductService_ApplyStockDelta(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// The sale ledger moves stock through this contract.
	var _ ProductCatalog = env.products

	p := env.seedProduct(t, "Coffee", 350, 4)
	if _, err := env.products.ApplyStockDelta(ctx, p.ID, -4); err != nil {
		t.Fatalf("ApplyStockDelta: %v", err)
	}
	if got := env.productStock(t, p.ID); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
	if _, err := env.products.ApplyStockDelta(ctx, p.ID, -1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("ApplyStockDelta below zero = %v, want ErrInsufficientStock", err)
	}
	if _, err := env.products.ApplyStockDelta(ctx, "prod-00000000000000000000000000", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("ApplyStockDelta missing = %v, want ErrProductNotFound", err)
	}

	// No audit entry of its own; the caller owns the trail.
	entries, err := env.audit.ListByAction(ctx, domain.AuditActionStockAdjusted)
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("audit entries = %d, want 0", len(entries))
	}
}

func TestProductService_SearchAndCategories(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, spec := range []struct {
		name, category string
	}{
		{"Espresso Beans", "beverages"},
		{"Decaf Espresso", "beverages"},
		{"Green Tea", "beverages"},
		{"Paper Cups", "supplies"},
	} {
		if _, err := env.products.Create(ctx, &CreateProductRequest{
			Name: spec.name, Category: spec.category, Price: 100, Stock: 5,
		}); err != nil {
			t.Fatalf("Create %s: %v", spec.name, err)
		}
	}

	matched, err := env.products.Search(ctx, "espresso")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matched) != 2 {
		t.Errorf("Search = %d matches, want 2", len(matched))
	}
	if _, err := env.products.Search(ctx, ""); !errors.Is(err, domain.ErrMissingArgument) {
		t.Fatalf("empty Search = %v, want ErrMissingArgument", err)
	}

	categories, err := env.products.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(categories) != 2 || categories[0] != "beverages" || categories[1] != "supplies" {
		t.Errorf("ListCategories = %v", categories)
	}

	beverages, err := env.products.ListByCategory(ctx, "beverages")
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if len(beverages) != 3 {
		t.Errorf("beverages = %d, want 3", len(beverages))
	}
}

func TestProductService_LowStockAlerts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	ok, err := env.products.Create(ctx, &CreateProductRequest{
		Name: "Plenty", Price: 100, Stock: 10, MinStock: 2,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	low, err := env.products.Create(ctx, &CreateProductRequest{
		Name: "Scarce", Price: 100, Stock: 2, MinStock: 2,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	alerts, err := env.products.LowStockAlerts(ctx)
	if err != nil {
		t.Fatalf("LowStockAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != low.ID {
		t.Errorf("LowStockAlerts = %+v", alerts)
	}
	_ = ok
}
