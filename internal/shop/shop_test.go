package shop

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/tillvault-go/internal/config"
	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/core/service"
	"github.com/yndnr/tillvault-go/internal/storage/backup"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Backup.Dir = filepath.Join(t.TempDir(), "backups")
	cfg.Backup.QuietPeriod = 50 * time.Millisecond
	return cfg
}

func openShop(t *testing.T, cfg *config.Config) *Shop {
	t.Helper()
	s, err := Open(context.Background(), Options{Config: cfg, Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func seedProduct(t *testing.T, s *Shop, name string, price, stock int64) *domain.Product {
	t.Helper()
	p, err := s.Products.Create(context.Background(), &service.CreateProductRequest{
		Name:  name,
		Price: price,
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return p
}

func recordSale(t *testing.T, s *Shop, p *domain.Product, qty int64) *domain.Sale {
	t.Helper()
	sale, err := s.Sales.RecordSale(context.Background(), &service.RecordSaleRequest{
		Items: []domain.SaleItem{
			{ProductID: p.ID, ProductName: p.Name, Quantity: qty, UnitPrice: p.Price},
		},
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("RecordSale() error = %v", err)
	}
	return sale
}

func TestShop_OpenCloseReopen(t *testing.T) {
	cfg := testConfig(t)

	s := openShop(t, cfg)
	p := seedProduct(t, s, "Espresso", 350, 10)
	sale := recordSale(t, s, p, 2)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s = openShop(t, cfg)
	defer s.Close()

	got, err := s.Sales.GetSale(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("GetSale() after reopen error = %v", err)
	}
	if got.TotalAmount != 700 {
		t.Errorf("TotalAmount = %d, want 700", got.TotalAmount)
	}
	product, err := s.Products.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if product.Stock != 8 {
		t.Errorf("Stock = %d, want 8", product.Stock)
	}
}

func TestShop_RecoversFromBackup(t *testing.T) {
	cfg := testConfig(t)

	s := openShop(t, cfg)
	p := seedProduct(t, s, "Espresso", 350, 10)
	recordSale(t, s, p, 3)
	if err := s.Backup(context.Background()); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A mangled manifest makes the store unopenable.
	manifest := filepath.Join(cfg.Storage.DataDir, "MANIFEST")
	if err := os.WriteFile(manifest, []byte("not a manifest"), 0600); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}

	s = openShop(t, cfg)
	defer s.Close()

	product, err := s.Products.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() after recovery error = %v", err)
	}
	if product.Stock != 7 {
		t.Errorf("recovered Stock = %d, want 7", product.Stock)
	}

	// The corrupt store is set aside, not deleted.
	matches, err := filepath.Glob(cfg.Storage.DataDir + ".corrupt-*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("set-aside directories = %d, want 1", len(matches))
	}

	// Recovery leaves an audit trace.
	entries, err := s.Audit.ListByAction(context.Background(), domain.AuditActionBackupRestored)
	if err != nil {
		t.Fatalf("ListByAction() error = %v", err)
	}
	if len(entries) == 0 {
		t.Error("no backup_restored audit entry after recovery")
	}
}

func TestShop_EmptyStoreRecoversFromOlderGeneration(t *testing.T) {
	cfg := testConfig(t)

	s := openShop(t, cfg)
	p := seedProduct(t, s, "Espresso", 350, 10)
	sale := recordSale(t, s, p, 3)
	if err := s.Backup(context.Background()); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Rotate the slots so prev1 holds the good snapshot, then mangle
	// latest and wipe the data directory. The store reopens clean and
	// empty; only prev1 can bring the records back.
	mgr, err := backup.NewManager(backup.Config{Dir: cfg.Backup.Dir}, testLogger())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	snap := mgr.LoadSnapshot(backup.GenLatest)
	if snap == nil {
		t.Fatal("LoadSnapshot(latest) = nil, want a valid snapshot")
	}
	if err := mgr.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	latest := filepath.Join(cfg.Backup.Dir, "latest.json")
	if err := os.WriteFile(latest, []byte("junk"), 0600); err != nil {
		t.Fatalf("corrupt latest slot: %v", err)
	}
	if err := os.RemoveAll(cfg.Storage.DataDir); err != nil {
		t.Fatalf("wipe data dir: %v", err)
	}

	s = openShop(t, cfg)
	defer s.Close()

	product, err := s.Products.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() after recovery error = %v", err)
	}
	if product.Stock != 7 {
		t.Errorf("recovered Stock = %d, want 7", product.Stock)
	}
	if _, err := s.Sales.GetSale(context.Background(), sale.ID); err != nil {
		t.Errorf("GetSale() after recovery error = %v", err)
	}

	entries, err := s.Audit.ListByAction(context.Background(), domain.AuditActionBackupRestored)
	if err != nil {
		t.Fatalf("ListByAction() error = %v", err)
	}
	var fromPrev1 bool
	for _, e := range entries {
		if e.Meta.Generation == string(backup.GenPrev1) {
			fromPrev1 = true
		}
	}
	if !fromPrev1 {
		t.Error("no backup_restored audit entry naming prev1")
	}
}

func TestShop_FreshStoreWithoutBackupsOpensEmpty(t *testing.T) {
	cfg := testConfig(t)

	s := openShop(t, cfg)
	defer s.Close()

	empty, err := s.Store().Empty(context.Background())
	if err != nil {
		t.Fatalf("Empty() error = %v", err)
	}
	if !empty {
		t.Error("first-run store is not empty")
	}
	meta, err := s.BackupMeta()
	if err != nil {
		t.Fatalf("BackupMeta() error = %v", err)
	}
	if meta.Count != 0 {
		t.Errorf("fresh shop backup count = %d, want 0", meta.Count)
	}
}

func TestShop_RecoveryRequiredWithoutBackups(t *testing.T) {
	cfg := testConfig(t)

	s := openShop(t, cfg)
	seedProduct(t, s, "Espresso", 350, 10)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	manifest := filepath.Join(cfg.Storage.DataDir, "MANIFEST")
	if err := os.WriteFile(manifest, []byte("not a manifest"), 0600); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}

	_, err := Open(context.Background(), Options{Config: cfg, Logger: testLogger()})
	if !domain.IsDomainError(err, domain.ErrRecoveryRequired.Code) {
		t.Fatalf("Open() error = %v, want %s", err, domain.ErrRecoveryRequired.Code)
	}
}

func TestShop_ScheduledBackupDebounces(t *testing.T) {
	cfg := testConfig(t)
	// Wide enough that the whole burst lands inside one quiet window.
	cfg.Backup.QuietPeriod = 300 * time.Millisecond

	s := openShop(t, cfg)
	defer s.Close()

	p := seedProduct(t, s, "Espresso", 350, 100)
	for i := 0; i < 5; i++ {
		recordSale(t, s, p, 1)
	}

	deadline := time.Now().Add(2 * time.Second)
	var meta backup.Meta
	for time.Now().Before(deadline) {
		m, err := s.BackupMeta()
		if err == nil && m.Count > 0 {
			meta = m
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if meta.Count != 1 {
		t.Fatalf("backup count = %d, want 1 after a burst of sales", meta.Count)
	}

	snap := s.LoadBackup(backup.GenLatest)
	if snap == nil {
		t.Fatal("LoadBackup(latest) = nil, want a valid snapshot")
	}
}

func TestShop_ExportImport(t *testing.T) {
	cfg := testConfig(t)

	s := openShop(t, cfg)
	p := seedProduct(t, s, "Espresso", 350, 10)
	data, err := s.Export(context.Background(), true)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	name := s.ExportFileName()
	if filepath.Ext(name) != ".json" {
		t.Errorf("ExportFileName() = %q, want .json extension", name)
	}
	s.Close()

	cfg2 := testConfig(t)
	s2 := openShop(t, cfg2)
	defer s2.Close()

	if err := s2.Import(context.Background(), data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	product, err := s2.Products.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get() after import error = %v", err)
	}
	if product.Name != "Espresso" {
		t.Errorf("Name = %q, want Espresso", product.Name)
	}
}
