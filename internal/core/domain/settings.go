package domain

// SettingsID is the fixed identifier of the single settings record.
// The settings collection holds exactly one row; writes with any other
// id are rejected rather than silently rewritten.
const SettingsID = "settings"

// Settings is the single-row shop configuration record.
type Settings struct {
	ID string `json:"id"`

	ShopName    string `json:"shop_name"`
	ShopAddress string `json:"shop_address,omitempty"`
	Currency    string `json:"currency"`

	// ReversalWindowHours bounds sale reversals. Defaults to
	// DefaultReversalWindowHours when zero.
	ReversalWindowHours int `json:"reversal_window_hours"`

	// ReceiptFooter is appended to rendered receipts.
	ReceiptFooter string `json:"receipt_footer,omitempty"`

	UpdatedAt int64 `json:"updated_at"`
}

// DefaultSettings returns the settings used for a fresh store.
func DefaultSettings() *Settings {
	return &Settings{
		ID:                  SettingsID,
		ShopName:            "Shop",
		Currency:            "USD",
		ReversalWindowHours: DefaultReversalWindowHours,
		UpdatedAt:           NowMillis(),
	}
}

// Validate checks structural invariants of the settings record,
// including the single-row id invariant.
func (s *Settings) Validate() error {
	if s.ID != SettingsID {
		return ErrValidation.WithDetails("settings id must be \"" + SettingsID + "\"")
	}
	if s.ShopName == "" {
		return ErrValidation.WithDetails("shop name is required")
	}
	if s.Currency == "" {
		return ErrValidation.WithDetails("currency is required")
	}
	if s.ReversalWindowHours < 0 {
		return ErrValidation.WithDetails("reversal window hours must not be negative")
	}
	return nil
}

// EffectiveReversalWindowHours returns the configured window or the
// default when unset.
func (s *Settings) EffectiveReversalWindowHours() int {
	if s.ReversalWindowHours == 0 {
		return DefaultReversalWindowHours
	}
	return s.ReversalWindowHours
}
