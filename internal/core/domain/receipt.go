package domain

// Receipt is the issued record of a sale. Receipt issuance is
// best-effort: a failure leaves the sale without a receipt and never
// blocks the sale itself.
type Receipt struct {
	// ID is the unique receipt identifier.
	// Format: rcpt-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	SaleID string `json:"sale_id"`

	// Number comes from the "receipt_number" counter. Unique and
	// strictly increasing in issuance order; gaps are acceptable.
	Number int64 `json:"number"`

	IssuedAt int64 `json:"issued_at"`

	// Total mirrors the sale's total amount at issuance, in cents.
	Total int64 `json:"total"`

	PaymentMethod string `json:"payment_method"`
}

// NewReceipt creates a receipt for the given sale.
func NewReceipt(saleID string, number, total int64, paymentMethod string) (*Receipt, error) {
	id, err := GenerateID(ReceiptIDPrefix)
	if err != nil {
		return nil, err
	}
	r := &Receipt{
		ID:            id,
		SaleID:        saleID,
		Number:        number,
		IssuedAt:      NowMillis(),
		Total:         total,
		PaymentMethod: paymentMethod,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks structural invariants of the receipt.
func (r *Receipt) Validate() error {
	if r.ID == "" {
		return ErrValidation.WithDetails("receipt id is required")
	}
	if r.SaleID == "" {
		return ErrValidation.WithDetails("receipt sale id is required")
	}
	if r.Number <= 0 {
		return ErrValidation.WithDetails("receipt number must be positive")
	}
	if r.IssuedAt <= 0 {
		return ErrValidation.WithDetails("receipt issue time is required")
	}
	if r.Total < 0 {
		return ErrValidation.WithDetails("receipt total must not be negative")
	}
	if r.PaymentMethod == "" {
		return ErrValidation.WithDetails("receipt payment method is required")
	}
	return nil
}
