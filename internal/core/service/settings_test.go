package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/tillvault-go/internal/core/domain"
)

func TestSettingsService_GetDefaults(t *testing.T) {
	env := newTestEnv(t)
	settings, err := env.settings.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if settings.ID != domain.SettingsID {
		t.Errorf("ID = %q", settings.ID)
	}
	if settings.EffectiveReversalWindowHours() != domain.DefaultReversalWindowHours {
		t.Errorf("window = %d", settings.EffectiveReversalWindowHours())
	}
}

func TestSettingsService_UpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	settings := domain.DefaultSettings()
	settings.ShopName = "Corner Store"
	settings.ReversalWindowHours = 48
	if err := env.settings.Update(ctx, settings, "staff-1"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := env.settings.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ShopName != "Corner Store" || got.ReversalWindowHours != 48 {
		t.Errorf("Get = %+v", got)
	}

	window, err := env.settings.ReversalWindowHours(ctx)
	if err != nil {
		t.Fatalf("ReversalWindowHours: %v", err)
	}
	if window != 48 {
		t.Errorf("window = %d, want 48", window)
	}

	entries, err := env.audit.ListByAction(ctx, domain.AuditActionSettingsChanged)
	if err != nil {
		t.Fatalf("ListByAction: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(entries))
	}
}

func TestSettingsService_RejectsWrongID(t *testing.T) {
	env := newTestEnv(t)
	settings := domain.DefaultSettings()
	settings.ID = "settings-2"
	err := env.settings.Update(context.Background(), settings, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Update = %v, want ErrValidation", err)
	}
}
