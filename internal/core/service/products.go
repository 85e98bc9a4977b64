package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

// ProductService manages the product catalog and stock levels.
type ProductService struct {
	store  *storage.Store
	audit  *AuditService
	logger *slog.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(store *storage.Store, audit *AuditService, logger *slog.Logger) *ProductService {
	return &ProductService{
		store:  store,
		audit:  audit,
		logger: logger,
	}
}

// CreateProductRequest contains parameters for product creation.
type CreateProductRequest struct {
	Name     string // Required
	Barcode  string // Optional, unique when set
	Category string // Optional
	Price    int64  // Cents
	Stock    int64  // Initial stock
	MinStock int64  // Low-stock threshold
	StaffID  string // Operator, for the audit trail
}

// Create adds a product to the catalog.
func (p *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*domain.Product, error) {
	product, err := domain.NewProduct(req.Name, req.Barcode, req.Category, req.Price, req.Stock)
	if err != nil {
		return nil, err
	}
	product.MinStock = req.MinStock
	if err := p.store.Put(ctx, schema.CollectionProducts, product); err != nil {
		return nil, err
	}
	p.audit.RecordBestEffort(ctx, domain.AuditActionProductCreated,
		"product", product.ID, req.StaffID, "", domain.AuditMeta{Quantity: product.Stock})
	return product, nil
}

// Update replaces a product record. The product must already exist.
func (p *ProductService) Update(ctx context.Context, product *domain.Product, staffID string) error {
	if _, err := p.Get(ctx, product.ID); err != nil {
		return err
	}
	product.UpdatedAt = domain.NowMillis()
	if err := p.store.Put(ctx, schema.CollectionProducts, product); err != nil {
		return err
	}
	p.audit.RecordBestEffort(ctx, domain.AuditActionProductUpdated,
		"product", product.ID, staffID, "", domain.AuditMeta{})
	return nil
}

// Delete removes a product from the catalog. Historical sales keep
// their item snapshots, so deletion never rewrites the ledger.
func (p *ProductService) Delete(ctx context.Context, id, staffID, reason string) error {
	if _, err := p.Get(ctx, id); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, schema.CollectionProducts, id); err != nil {
		return err
	}
	p.audit.RecordBestEffort(ctx, domain.AuditActionProductDeleted,
		"product", id, staffID, reason, domain.AuditMeta{})
	return nil
}

// Get retrieves one product by id.
func (p *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	record, err := p.store.GetByID(ctx, schema.CollectionProducts, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound.WithDetails(id)
		}
		return nil, err
	}
	return record.(*domain.Product), nil
}

// GetByBarcode retrieves one product by its barcode.
func (p *ProductService) GetByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	records, err := p.store.GetByIndex(ctx, schema.CollectionProducts, "barcode", barcode)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrProductNotFound.WithDetails("barcode " + barcode)
	}
	return records[0].(*domain.Product), nil
}

// List returns the whole catalog sorted by name.
func (p *ProductService) List(ctx context.Context) ([]*domain.Product, error) {
	records, err := p.store.GetAll(ctx, schema.CollectionProducts)
	if err != nil {
		return nil, err
	}
	products := make([]*domain.Product, 0, len(records))
	for _, r := range records {
		products = append(products, r.(*domain.Product))
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	return products, nil
}

// ListByCategory returns the products of one category sorted by name.
func (p *ProductService) ListByCategory(ctx context.Context, category string) ([]*domain.Product, error) {
	records, err := p.store.GetByIndex(ctx, schema.CollectionProducts, "category", category)
	if err != nil {
		return nil, err
	}
	products := make([]*domain.Product, 0, len(records))
	for _, r := range records {
		products = append(products, r.(*domain.Product))
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	return products, nil
}

// ListCategories returns the distinct categories in use, sorted.
func (p *ProductService) ListCategories(ctx context.Context) ([]string, error) {
	products, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var categories []string
	for _, product := range products {
		if product.Category != "" && !seen[product.Category] {
			seen[product.Category] = true
			categories = append(categories, product.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Search returns products whose name contains the query,
// case-insensitively, sorted by name.
func (p *ProductService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	if query == "" {
		return nil, domain.ErrMissingArgument.WithDetails("search query is required")
	}
	products, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var matched []*domain.Product
	for _, product := range products {
		if strings.Contains(strings.ToLower(product.Name), needle) {
			matched = append(matched, product)
		}
	}
	return matched, nil
}

// LowStockAlerts returns products at or below their minimum stock
// threshold, sorted by name.
func (p *ProductService) LowStockAlerts(ctx context.Context) ([]*domain.Product, error) {
	products, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	var low []*domain.Product
	for _, product := range products {
		if product.LowStock() {
			low = append(low, product)
		}
	}
	return low, nil
}

// AdjustStock applies a signed delta to a product's stock level.
// Adjustments that would take stock negative are rejected whole.
func (p *ProductService) AdjustStock(ctx context.Context, id string, delta int64, staffID, reason string) (*domain.Product, error) {
	if delta == 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("stock delta must be non-zero")
	}
	product, err := p.ApplyStockDelta(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	p.audit.RecordBestEffort(ctx, domain.AuditActionStockAdjusted,
		"product", product.ID, staffID, reason, domain.AuditMeta{Quantity: delta})
	return product, nil
}

// ApplyStockDelta moves a product's stock by delta without an audit
// entry of its own; callers that represent an operator action audit
// on top of it. The resulting stock must not go negative.
func (p *ProductService) ApplyStockDelta(ctx context.Context, id string, delta int64) (*domain.Product, error) {
	product, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Stock+delta < 0 {
		return nil, domain.ErrInsufficientStock.WithDetails(
			fmt.Sprintf("%s has %d in stock, adjustment %d", product.Name, product.Stock, delta),
		)
	}
	product.Stock += delta
	product.UpdatedAt = domain.NowMillis()
	if err := p.store.Put(ctx, schema.CollectionProducts, product); err != nil {
		return nil, err
	}
	return product, nil
}
