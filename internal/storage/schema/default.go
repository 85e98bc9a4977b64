package schema

import (
	"github.com/yndnr/tillvault-go/internal/core/domain"
)

// Collection names used by the shop store.
const (
	CollectionProducts  = "products"
	CollectionSales     = "sales"
	CollectionReceipts  = "receipts"
	CollectionAuditLogs = "audit_logs"
	CollectionCounters  = "counters"
	CollectionSettings  = "settings"
)

// DefaultRegistry builds the registry for all shop collections.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(&CollectionSpec{
		Name: CollectionProducts,
		New:  func() any { return &domain.Product{} },
		ID:   func(v any) string { return v.(*domain.Product).ID },
		Validate: func(v any) error {
			return v.(*domain.Product).Validate()
		},
		Indexes: []IndexSpec{
			{
				Field:  "barcode",
				Unique: true,
				Key: func(v any) (string, bool) {
					p := v.(*domain.Product)
					return p.Barcode, p.Barcode != ""
				},
			},
			{
				Field: "category",
				Key: func(v any) (string, bool) {
					p := v.(*domain.Product)
					return p.Category, p.Category != ""
				},
			},
		},
		SortField: "created_at",
		SortKey: func(v any) (int64, bool) {
			return v.(*domain.Product).CreatedAt, true
		},
	})

	r.MustRegister(&CollectionSpec{
		Name: CollectionSales,
		New:  func() any { return &domain.Sale{} },
		ID:   func(v any) string { return v.(*domain.Sale).ID },
		Validate: func(v any) error {
			return v.(*domain.Sale).Validate()
		},
		Indexes: []IndexSpec{
			{
				Field: "status",
				Key: func(v any) (string, bool) {
					return string(v.(*domain.Sale).Status), true
				},
			},
		},
		SortField: "date",
		SortKey: func(v any) (int64, bool) {
			return v.(*domain.Sale).Date, true
		},
	})

	r.MustRegister(&CollectionSpec{
		Name: CollectionReceipts,
		New:  func() any { return &domain.Receipt{} },
		ID:   func(v any) string { return v.(*domain.Receipt).ID },
		Validate: func(v any) error {
			return v.(*domain.Receipt).Validate()
		},
		Indexes: []IndexSpec{
			// Duplicate receipt numbers indicate a concurrency bug
			// in the allocator; the unique index makes them fatal.
			{
				Field:  "number",
				Unique: true,
				Key: func(v any) (string, bool) {
					return FormatNumberKey(v.(*domain.Receipt).Number), true
				},
			},
			{
				Field:  "sale_id",
				Unique: true,
				Key: func(v any) (string, bool) {
					r := v.(*domain.Receipt)
					return r.SaleID, r.SaleID != ""
				},
			},
		},
		SortField: "issued_at",
		SortKey: func(v any) (int64, bool) {
			return v.(*domain.Receipt).IssuedAt, true
		},
	})

	r.MustRegister(&CollectionSpec{
		Name: CollectionAuditLogs,
		New:  func() any { return &domain.AuditEntry{} },
		ID:   func(v any) string { return v.(*domain.AuditEntry).ID },
		Validate: func(v any) error {
			return v.(*domain.AuditEntry).Validate()
		},
		Indexes: []IndexSpec{
			{
				Field: "action",
				Key: func(v any) (string, bool) {
					return string(v.(*domain.AuditEntry).Action), true
				},
			},
		},
		SortField: "timestamp",
		SortKey: func(v any) (int64, bool) {
			return v.(*domain.AuditEntry).Timestamp, true
		},
	})

	r.MustRegister(&CollectionSpec{
		Name: CollectionCounters,
		New:  func() any { return &domain.Counter{} },
		ID:   func(v any) string { return v.(*domain.Counter).ID },
		Validate: func(v any) error {
			return v.(*domain.Counter).Validate()
		},
	})

	r.MustRegister(&CollectionSpec{
		Name: CollectionSettings,
		New:  func() any { return &domain.Settings{} },
		ID:   func(v any) string { return v.(*domain.Settings).ID },
		Validate: func(v any) error {
			return v.(*domain.Settings).Validate()
		},
	})

	return r
}
