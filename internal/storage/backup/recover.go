package backup

import (
	"context"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage/snapshot"
)

// Recover walks the generations newest to oldest and restores the
// first snapshot that validates into the engine's store. The store
// must already be open (typically freshly reinitialized after the
// primary failed to come up). Returns the generation that was used.
func (m *Manager) Recover(ctx context.Context, eng *snapshot.Engine) (Generation, error) {
	for _, gen := range Generations() {
		s := m.LoadSnapshot(gen)
		if s == nil {
			continue
		}
		if err := eng.Restore(ctx, s); err != nil {
			m.logger.Warn("restore from generation failed",
				"generation", gen, "error", err)
			continue
		}
		m.logger.Info("recovered from backup generation",
			"generation", gen, "records", s.RecordCount())
		return gen, nil
	}
	return "", domain.ErrRecoveryRequired.WithDetails("no valid backup generation in " + m.cfg.Dir)
}
