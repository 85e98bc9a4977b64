package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

// SettingsService reads and writes the single-row shop settings
// record. The write path enforces the single-row invariant; a
// settings table that somehow holds more than one row is flagged in
// the log, never silently rewritten.
type SettingsService struct {
	store  *storage.Store
	audit  *AuditService
	logger *slog.Logger
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(store *storage.Store, audit *AuditService, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		audit:  audit,
		logger: logger,
	}
}

// Get returns the settings record, or the defaults when none is
// stored yet. Extra rows are reported and the canonical row is used.
func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	records, err := s.store.GetAll(ctx, schema.CollectionSettings)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return domain.DefaultSettings(), nil
	}
	if len(records) > 1 {
		s.logger.Warn("settings table holds multiple rows",
			"count", len(records))
	}
	for _, r := range records {
		if st := r.(*domain.Settings); st.ID == domain.SettingsID {
			return st, nil
		}
	}
	// No row carries the canonical id. Fall back to the first one
	// found rather than inventing values.
	return records[0].(*domain.Settings), nil
}

// Update replaces the settings record. The id must be the canonical
// one; Settings.Validate rejects everything else at the write path.
func (s *SettingsService) Update(ctx context.Context, settings *domain.Settings, staffID string) error {
	settings.UpdatedAt = domain.NowMillis()
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.store.Put(ctx, schema.CollectionSettings, settings); err != nil {
		return err
	}
	s.audit.RecordBestEffort(ctx, domain.AuditActionSettingsChanged,
		"settings", settings.ID, staffID, "", domain.AuditMeta{})
	return nil
}

// ReversalWindowHours returns the effective reversal window,
// defaulting when settings are absent or unset.
func (s *SettingsService) ReversalWindowHours(ctx context.Context) (int, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.EffectiveReversalWindowHours(), nil
}
