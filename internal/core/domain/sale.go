package domain

import (
	"fmt"
	"time"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	// SaleStatusCompleted is the state of a successfully recorded sale.
	SaleStatusCompleted SaleStatus = "completed"

	// SaleStatusReversed means the sale has been reversed and its
	// stock restored. There is no transition out of reversed.
	SaleStatusReversed SaleStatus = "reversed"
)

// DefaultReversalWindowHours bounds how long after completion a sale
// may still be reversed when settings do not configure a window.
const DefaultReversalWindowHours = 24

// SaleItem is a single line item of a sale. Quantities are positive
// integers and prices are integer cents.
type SaleItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Subtotal    int64  `json:"subtotal"`
}

// Sale is a point-of-sale transaction.
//
// Timestamps are Unix milliseconds, money amounts are integer cents.
// A sale is created in completed status and may transition once to
// reversed within the reversal window.
type Sale struct {
	// ID is the unique sale identifier.
	// Format: sale-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// Date is when the sale was recorded. The reversal window is
	// measured from here.
	Date int64 `json:"date"`

	Items []SaleItem `json:"items"`

	// TotalAmount is the sum of item subtotals, in cents.
	TotalAmount int64 `json:"total_amount"`

	PaymentMethod string `json:"payment_method"`

	// StaffID identifies the operator who recorded the sale.
	StaffID string `json:"staff_id,omitempty"`

	// Customer is a free-form customer reference. Treated as
	// sensitive: the logger redacts it.
	Customer string `json:"customer,omitempty"`

	// Receipt is attached after issuance. Nil when receipt building
	// failed; the sale is still valid without it.
	Receipt *Receipt `json:"receipt,omitempty"`

	Status SaleStatus `json:"status"`

	// ReversedAt is set when the sale transitions to reversed.
	ReversedAt int64 `json:"reversed_at,omitempty"`

	// ReversalReason is the operator-supplied reason for a reversal.
	ReversalReason string `json:"reversal_reason,omitempty"`
}

// NewSale creates a completed sale from the given items. Item
// subtotals and the total are computed here; the receipt is attached
// later by the ledger.
func NewSale(items []SaleItem, paymentMethod, staffID, customer string) (*Sale, error) {
	if len(items) == 0 {
		return nil, ErrEmptySale
	}
	id, err := GenerateID(SaleIDPrefix)
	if err != nil {
		return nil, err
	}
	var total int64
	for i := range items {
		items[i].Subtotal = items[i].Quantity * items[i].UnitPrice
		total += items[i].Subtotal
	}
	s := &Sale{
		ID:            id,
		Date:          NowMillis(),
		Items:         items,
		TotalAmount:   total,
		PaymentMethod: paymentMethod,
		StaffID:       staffID,
		Customer:      customer,
		Status:        SaleStatusCompleted,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks structural invariants of the sale.
func (s *Sale) Validate() error {
	if s.ID == "" {
		return ErrValidation.WithDetails("sale id is required")
	}
	if s.Date <= 0 {
		return ErrValidation.WithDetails("sale date is required")
	}
	if len(s.Items) == 0 {
		return ErrEmptySale
	}
	if s.PaymentMethod == "" {
		return ErrValidation.WithDetails("payment method is required")
	}
	var total int64
	for i, it := range s.Items {
		if it.ProductID == "" {
			return ErrValidation.WithDetails(fmt.Sprintf("item %d: product id is required", i))
		}
		if it.Quantity <= 0 {
			return ErrValidation.WithDetails(fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if it.UnitPrice < 0 {
			return ErrValidation.WithDetails(fmt.Sprintf("item %d: unit price must not be negative", i))
		}
		if it.Subtotal != it.Quantity*it.UnitPrice {
			return ErrValidation.WithDetails(fmt.Sprintf("item %d: subtotal mismatch", i))
		}
		total += it.Subtotal
	}
	if s.TotalAmount != total {
		return ErrValidation.WithDetails("total amount does not match item subtotals")
	}
	switch s.Status {
	case SaleStatusCompleted, SaleStatusReversed:
	default:
		return ErrValidation.WithDetails("unknown sale status: " + string(s.Status))
	}
	if s.Receipt != nil {
		if err := s.Receipt.Validate(); err != nil {
			return err
		}
		if s.Receipt.SaleID != s.ID {
			return ErrValidation.WithDetails("receipt does not belong to this sale")
		}
	}
	return nil
}

// CanReverse reports whether the sale may still be reversed under the
// given reversal window. Only completed sales within the window
// qualify.
func (s *Sale) CanReverse(windowHours int) bool {
	if s.Status != SaleStatusCompleted {
		return false
	}
	window := time.Duration(windowHours) * time.Hour
	return NowMillis()-s.Date <= window.Milliseconds()
}

// MarkReversed flips the sale to reversed with the given reason.
func (s *Sale) MarkReversed(reason string) {
	s.Status = SaleStatusReversed
	s.ReversedAt = NowMillis()
	s.ReversalReason = reason
}

// ItemsCount returns the number of line items.
func (s *Sale) ItemsCount() int {
	return len(s.Items)
}
