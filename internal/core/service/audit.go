package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

// AuditService appends to and queries the audit trail. Entries are
// append-only; nothing in normal operation mutates or deletes them.
type AuditService struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(store *storage.Store, logger *slog.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

// Record appends one audit entry. StaffID and reason are optional.
func (a *AuditService) Record(ctx context.Context, action domain.AuditAction, entityType, entityID, staffID, reason string, meta domain.AuditMeta) (*domain.AuditEntry, error) {
	entry, err := domain.NewAuditEntry(action, entityType, entityID, meta)
	if err != nil {
		return nil, err
	}
	entry.StaffID = staffID
	entry.Reason = reason
	if err := a.store.Put(ctx, schema.CollectionAuditLogs, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordBestEffort appends an audit entry and only logs on failure.
// Used where the audited operation must not fail because the trail
// could not be written.
func (a *AuditService) RecordBestEffort(ctx context.Context, action domain.AuditAction, entityType, entityID, staffID, reason string, meta domain.AuditMeta) {
	if _, err := a.Record(ctx, action, entityType, entityID, staffID, reason, meta); err != nil {
		a.logger.Warn("audit entry dropped",
			"action", action, "entity_id", entityID, "error", err)
	}
}

// ListByRange returns entries with timestamps in [from, to],
// ascending.
func (a *AuditService) ListByRange(ctx context.Context, from, to int64) ([]*domain.AuditEntry, error) {
	records, err := a.store.GetRange(ctx, schema.CollectionAuditLogs, from, to)
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.AuditEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.(*domain.AuditEntry))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries, nil
}

// ListByAction returns all entries for one action, ascending by
// timestamp.
func (a *AuditService) ListByAction(ctx context.Context, action domain.AuditAction) ([]*domain.AuditEntry, error) {
	records, err := a.store.GetByIndex(ctx, schema.CollectionAuditLogs, "action", string(action))
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.AuditEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, r.(*domain.AuditEntry))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries, nil
}
