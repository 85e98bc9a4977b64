package domain

// Well-known counter names. Counters are monotonic named sequences;
// gaps are acceptable, duplicates are not.
const (
	CounterReceiptNumber = "receipt_number"
)

// Counter is the persisted state of a named sequence, one row per
// name. Value is non-decreasing except via explicit administrative
// reset.
type Counter struct {
	ID          string `json:"id"`
	Value       int64  `json:"value"`
	LastUpdated int64  `json:"last_updated"`
}

// Validate checks structural invariants of the counter.
func (c *Counter) Validate() error {
	if c.ID == "" {
		return ErrValidation.WithDetails("counter id is required")
	}
	if c.Value < 0 {
		return ErrValidation.WithDetails("counter value must not be negative")
	}
	return nil
}
