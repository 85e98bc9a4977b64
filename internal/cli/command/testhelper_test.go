package command

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/yndnr/tillvault-go/internal/config"
	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/shop"
)

// testDirs returns fresh data and backup directories.
func testDirs(t *testing.T) (string, string) {
	t.Helper()
	return filepath.Join(t.TempDir(), "data"), filepath.Join(t.TempDir(), "backups")
}

// runApp runs the CLI with the given arguments against the dirs.
func runApp(t *testing.T, dataDir, backupDir string, args ...string) error {
	t.Helper()
	full := append([]string{"tillvault", "--data-dir", dataDir, "--backup-dir", backupDir}, args...)
	return App().Run(full)
}

// mustRun fails the test when the command errors.
func mustRun(t *testing.T, dataDir, backupDir string, args ...string) {
	t.Helper()
	if err := runApp(t, dataDir, backupDir, args...); err != nil {
		t.Fatalf("tillvault %v error = %v", args, err)
	}
}

// withShop opens the shop on the test dirs, runs fn, and closes it.
// Used to assert state between command invocations.
func withShop(t *testing.T, dataDir, backupDir string, fn func(*shop.Shop)) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = dataDir
	cfg.Backup.Dir = backupDir
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := shop.Open(context.Background(), shop.Options{Config: cfg, Logger: log})
	if err != nil {
		t.Fatalf("open shop for assertions: %v", err)
	}
	defer s.Close()
	fn(s)
}

// onlyProduct returns the single product in the catalog.
func onlyProduct(t *testing.T, s *shop.Shop) *domain.Product {
	t.Helper()
	products, err := s.Products.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	return products[0]
}
