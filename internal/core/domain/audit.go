package domain

// AuditAction is the closed vocabulary of auditable actions.
type AuditAction string

const (
	AuditActionSaleRecorded    AuditAction = "sale_recorded"
	AuditActionSaleReversed    AuditAction = "sale_reversed"
	AuditActionStockAdjusted   AuditAction = "stock_adjusted"
	AuditActionProductCreated  AuditAction = "product_created"
	AuditActionProductUpdated  AuditAction = "product_updated"
	AuditActionProductDeleted  AuditAction = "product_deleted"
	AuditActionBackupWritten   AuditAction = "backup_written"
	AuditActionBackupRestored  AuditAction = "backup_restored"
	AuditActionCounterReset    AuditAction = "counter_reset"
	AuditActionSettingsChanged AuditAction = "settings_changed"
)

// validAuditActions gates writes to the closed vocabulary.
var validAuditActions = map[AuditAction]bool{
	AuditActionSaleRecorded:    true,
	AuditActionSaleReversed:    true,
	AuditActionStockAdjusted:   true,
	AuditActionProductCreated:  true,
	AuditActionProductUpdated:  true,
	AuditActionProductDeleted:  true,
	AuditActionBackupWritten:   true,
	AuditActionBackupRestored:  true,
	AuditActionCounterReset:    true,
	AuditActionSettingsChanged: true,
}

// AuditMeta is the typed metadata payload of an audit entry. Only the
// fields relevant to the action are set; free-form maps are not
// accepted.
type AuditMeta struct {
	// Sale-related actions.
	Total        int64 `json:"total,omitempty"`
	ItemsCount   int   `json:"items_count,omitempty"`
	OriginalDate int64 `json:"original_date,omitempty"`

	// Stock and counter actions.
	Quantity int64 `json:"quantity,omitempty"`
	Value    int64 `json:"value,omitempty"`

	// Backup actions.
	Generation string `json:"generation,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`

	// Settings actions.
	Field string `json:"field,omitempty"`
}

// AuditEntry records a single auditable action. Entries are
// append-only and never mutated or deleted by normal operation.
type AuditEntry struct {
	// ID is the unique audit entry identifier.
	// Format: audt-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	Action AuditAction `json:"action"`

	// EntityType and EntityID name the subject of the action,
	// e.g. "sale"/"sale-…".
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`

	// StaffID identifies the operator, when known.
	StaffID string `json:"staff_id,omitempty"`

	// Reason is the operator-supplied reason, when the action has
	// one (reversals, resets).
	Reason string `json:"reason,omitempty"`

	Timestamp int64 `json:"timestamp"`

	Meta AuditMeta `json:"metadata"`
}

// NewAuditEntry creates an audit entry for the given action. Unknown
// actions are rejected.
func NewAuditEntry(action AuditAction, entityType, entityID string, meta AuditMeta) (*AuditEntry, error) {
	if !validAuditActions[action] {
		return nil, ErrValidation.WithDetails("unknown audit action: " + string(action))
	}
	if entityType == "" {
		return nil, ErrValidation.WithDetails("audit entity type is required")
	}
	id, err := GenerateID(AuditIDPrefix)
	if err != nil {
		return nil, err
	}
	return &AuditEntry{
		ID:         id,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  NowMillis(),
		Meta:       meta,
	}, nil
}

// Validate checks structural invariants of the audit entry.
func (e *AuditEntry) Validate() error {
	if e.ID == "" {
		return ErrValidation.WithDetails("audit entry id is required")
	}
	if !validAuditActions[e.Action] {
		return ErrValidation.WithDetails("unknown audit action: " + string(e.Action))
	}
	if e.EntityType == "" {
		return ErrValidation.WithDetails("audit entity type is required")
	}
	if e.Timestamp <= 0 {
		return ErrValidation.WithDetails("audit timestamp is required")
	}
	return nil
}
