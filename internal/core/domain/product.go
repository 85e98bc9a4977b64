package domain

import "strings"

// Product is a catalog entry with a stock level.
//
// Barcode is unique across the catalog when present. Price is integer
// cents, Stock a non-negative count.
type Product struct {
	// ID is the unique product identifier.
	// Format: prod-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	Name     string `json:"name"`
	Barcode  string `json:"barcode,omitempty"`
	Category string `json:"category,omitempty"`

	Price int64 `json:"price"`
	Stock int64 `json:"stock"`

	// MinStock triggers a low-stock alert when Stock falls to or
	// below it. Zero disables the alert.
	MinStock int64 `json:"min_stock,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewProduct creates a product with a generated id and timestamps.
func NewProduct(name, barcode, category string, price, stock int64) (*Product, error) {
	id, err := GenerateID(ProductIDPrefix)
	if err != nil {
		return nil, err
	}
	now := NowMillis()
	p := &Product{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Barcode:   strings.TrimSpace(barcode),
		Category:  strings.TrimSpace(category),
		Price:     price,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks structural invariants of the product.
func (p *Product) Validate() error {
	if p.ID == "" {
		return ErrValidation.WithDetails("product id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrValidation.WithDetails("product name is required")
	}
	if p.Price < 0 {
		return ErrValidation.WithDetails("product price must not be negative")
	}
	if p.Stock < 0 {
		return ErrValidation.WithDetails("product stock must not be negative")
	}
	if p.MinStock < 0 {
		return ErrValidation.WithDetails("product min stock must not be negative")
	}
	return nil
}

// LowStock reports whether the product is at or below its alert
// threshold.
func (p *Product) LowStock() bool {
	return p.MinStock > 0 && p.Stock <= p.MinStock
}
