package shop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/tillvault-go/internal/config"
	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/core/service"
	"github.com/yndnr/tillvault-go/internal/storage"
	"github.com/yndnr/tillvault-go/internal/storage/backup"
	"github.com/yndnr/tillvault-go/internal/storage/intent"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
	"github.com/yndnr/tillvault-go/internal/storage/snapshot"
	"github.com/yndnr/tillvault-go/internal/telemetry/metric"
)

// intentSubdir keeps the intent log out of the Badger directory.
const intentSubdir = "intent"

// Options configures Open.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metric.Metrics // optional
}

// Shop is one open shop: storage, backups, and the domain services.
type Shop struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.Metrics

	store     *storage.Store
	intents   *intent.Log
	engine    *snapshot.Engine
	backups   *backup.Manager
	scheduler *backup.Scheduler

	Sales    *service.SaleService
	Products *service.ProductService
	Audit    *service.AuditService
	Settings *service.SettingsService
}

// Open brings up the whole stack. When the primary store cannot be
// opened, the corrupt directory is set aside and the recovery cascade
// restores the newest valid backup generation into a fresh store. A
// store that opens but holds no records is recovered the same way
// when a backup exists.
func Open(ctx context.Context, opts Options) (*Shop, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}

	backups, err := backup.NewManager(backup.Config{
		Dir:      cfg.Backup.Dir,
		Compress: cfg.Backup.Compress,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, recoveredFrom, err := openStore(ctx, cfg, backups, logger)
	if err != nil {
		return nil, err
	}

	intentDir := filepath.Join(cfg.Storage.DataDir, intentSubdir)
	if err := os.MkdirAll(intentDir, 0750); err != nil {
		store.Close()
		return nil, fmt.Errorf("create intent directory: %w", err)
	}
	intents, pending, err := intent.Open(intentDir, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &Shop{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
		store:   store,
		intents: intents,
		engine:  snapshot.NewEngine(store, snapshot.DigestTier(cfg.Backup.DigestTier), logger),
		backups: backups,
	}
	s.scheduler = backup.NewScheduler(cfg.Backup.QuietPeriod, s.runScheduledBackup, logger)

	alloc := storage.NewAllocator(store)
	s.Audit = service.NewAuditService(store, logger)
	s.Settings = service.NewSettingsService(store, s.Audit, logger)
	s.Products = service.NewProductService(store, s.Audit, logger)
	s.Sales = service.NewSaleService(store, s.Products, alloc, intents, s.Audit, s.Settings, s.scheduler, logger)

	if opts.Metrics != nil {
		s.Sales.RegisterMetrics(opts.Metrics)
		store.RegisterMetrics(opts.Metrics.Registry())
		if recoveredFrom != "" {
			opts.Metrics.RecoveryRuns.WithLabelValues(string(recoveredFrom)).Inc()
		}
	}
	if recoveredFrom != "" {
		s.Audit.RecordBestEffort(ctx, domain.AuditActionBackupRestored,
			"backup", "", "", "startup recovery", domain.AuditMeta{
				Generation: string(recoveredFrom),
			})
	}

	// Compensate whatever a crash left half-done before serving.
	if len(pending) > 0 {
		if err := s.Sales.ReplayIntents(ctx, pending); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// openStore opens the primary store, falling back to the recovery
// cascade when it cannot come up or comes up with no records at all.
// Returns the generation recovered from, empty when the store opened
// normally.
func openStore(ctx context.Context, cfg *config.Config, backups *backup.Manager, logger *slog.Logger) (*storage.Store, backup.Generation, error) {
	storeCfg := storeConfig(cfg)
	registry := schema.DefaultRegistry()
	migrations := storage.DefaultMigrations()

	store, err := storage.Open(ctx, storeCfg, registry, migrations, logger)
	if err == nil {
		gen, rerr := recoverIfEmpty(ctx, cfg, store, backups, logger)
		if rerr != nil {
			store.Close()
			return nil, "", rerr
		}
		return store, gen, nil
	}
	logger.Error("primary store failed to open, starting recovery cascade",
		"dir", cfg.Storage.DataDir, "error", err)

	// Set the corrupt directory aside rather than deleting it.
	aside := fmt.Sprintf("%s.corrupt-%d", cfg.Storage.DataDir, time.Now().Unix())
	if err := os.Rename(cfg.Storage.DataDir, aside); err != nil {
		return nil, "", fmt.Errorf("set corrupt store aside: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0750); err != nil {
		return nil, "", err
	}
	logger.Warn("corrupt store directory set aside", "path", aside)

	store, err = storage.Open(ctx, storeCfg, registry, migrations, logger)
	if err != nil {
		return nil, "", err
	}

	engine := snapshot.NewEngine(store, snapshot.DigestTier(cfg.Backup.DigestTier), logger)
	gen, err := backups.Recover(ctx, engine)
	if err != nil {
		store.Close()
		return nil, "", err
	}
	return store, gen, nil
}

// recoverIfEmpty restores the newest valid backup generation into a
// store that opened without a single record. A wiped or replaced data
// directory looks exactly like a first run; the difference is whether
// a backup exists to restore.
func recoverIfEmpty(ctx context.Context, cfg *config.Config, store *storage.Store, backups *backup.Manager, logger *slog.Logger) (backup.Generation, error) {
	empty, err := store.Empty(ctx)
	if err != nil {
		return "", err
	}
	if !empty {
		return "", nil
	}
	engine := snapshot.NewEngine(store, snapshot.DigestTier(cfg.Backup.DigestTier), logger)
	gen, err := backups.Recover(ctx, engine)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrRecoveryRequired.Code) {
			// No backup to restore: a genuine first run.
			return "", nil
		}
		return "", err
	}
	logger.Warn("empty primary store restored from backup", "generation", gen)
	return gen, nil
}

// storeConfig maps the application config onto the store's.
func storeConfig(cfg *config.Config) storage.Config {
	sc := storage.DefaultConfig(cfg.Storage.DataDir)
	sc.Badger.GCInterval = cfg.Storage.GCInterval.String()
	sc.Badger.CacheSize = cfg.Storage.CacheSize
	sc.Badger.SyncWrites = cfg.Storage.SyncWrites
	return sc
}

// runScheduledBackup is the debounced backup body.
func (s *Shop) runScheduledBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	snap, err := s.engine.Aggregate(ctx)
	if err != nil {
		s.countBackupFailure()
		s.logger.Error("scheduled backup aggregation failed", "error", err)
		return
	}
	if err := s.backups.SaveSnapshot(snap); err != nil {
		s.countBackupFailure()
		s.logger.Error("scheduled backup write failed", "error", err)
		return
	}
	s.countBackupSuccess()
	s.Audit.RecordBestEffort(ctx, domain.AuditActionBackupWritten,
		"backup", "", "", "", domain.AuditMeta{Generation: string(backup.GenLatest)})
}

func (s *Shop) countBackupSuccess() {
	if s.metrics == nil {
		return
	}
	s.metrics.BackupsWritten.Inc()
	if meta, err := s.backups.Meta(); err == nil {
		s.metrics.BackupSizeBytes.Set(float64(meta.TotalSize))
	}
}

func (s *Shop) countBackupFailure() {
	if s.metrics != nil {
		s.metrics.BackupFailures.Inc()
	}
}

// Backup writes a backup now, subject to the manual-trigger rate
// limit.
func (s *Shop) Backup(ctx context.Context) error {
	if err := s.backups.Backup(ctx, s.engine); err != nil {
		if err != backup.ErrThrottled {
			s.countBackupFailure()
		}
		return err
	}
	s.countBackupSuccess()
	s.Audit.RecordBestEffort(ctx, domain.AuditActionBackupWritten,
		"backup", "", "", "", domain.AuditMeta{Generation: string(backup.GenLatest)})
	return nil
}

// BackupMeta returns the rotation metadata record.
func (s *Shop) BackupMeta() (backup.Meta, error) {
	return s.backups.Meta()
}

// LoadBackup reads and validates one backup generation. Nil when the
// slot is absent or invalid.
func (s *Shop) LoadBackup(gen backup.Generation) *snapshot.Snapshot {
	return s.backups.LoadSnapshot(gen)
}

// Export serializes the current state as a portable backup blob.
// The conventional filename for it is ExportFileName.
func (s *Shop) Export(ctx context.Context, compress bool) ([]byte, error) {
	snap, err := s.engine.Aggregate(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Serialize(snap, compress)
}

// ExportFileName returns the date-stamped export filename.
func (s *Shop) ExportFileName() string {
	return backup.ExportFileName(time.Now())
}

// Restore replaces the current state with one backup generation.
func (s *Shop) Restore(ctx context.Context, gen backup.Generation) (*snapshot.Snapshot, error) {
	snap := s.backups.LoadSnapshot(gen)
	if snap == nil {
		return nil, domain.ErrSnapshotMalformed.WithDetails("generation " + string(gen) + " is missing or invalid")
	}
	if err := s.engine.Restore(ctx, snap); err != nil {
		return nil, err
	}
	s.Audit.RecordBestEffort(ctx, domain.AuditActionBackupRestored,
		"backup", "", "", "manual restore", domain.AuditMeta{
			Generation: string(gen),
		})
	return snap, nil
}

// Import validates an exported blob and restores it, replacing the
// current state.
func (s *Shop) Import(ctx context.Context, data []byte) error {
	snap, err := snapshot.Deserialize(data)
	if err != nil {
		return err
	}
	if err := s.engine.Restore(ctx, snap); err != nil {
		return err
	}
	s.Audit.RecordBestEffort(ctx, domain.AuditActionBackupRestored,
		"backup", "", "", "import", domain.AuditMeta{
			SizeBytes: int64(len(data)),
		})
	return nil
}

// Store exposes the record store for callers below the service
// surface (summaries over raw collections, tooling).
func (s *Shop) Store() *storage.Store {
	return s.store
}

// Close tears the stack down: pending backup cancelled, intent log
// and store closed.
func (s *Shop) Close() error {
	if s.scheduler != nil {
		s.scheduler.Close()
	}
	if s.intents != nil {
		if err := s.intents.Close(); err != nil {
			s.logger.Warn("intent log close failed", "error", err)
		}
	}
	return s.store.Close()
}
