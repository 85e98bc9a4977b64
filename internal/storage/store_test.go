package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, t.TempDir())
}

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(context.Background(), DefaultConfig(dir), schema.DefaultRegistry(), DefaultMigrations(), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestProduct(t *testing.T, name, barcode string, stock int64) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(name, barcode, "beverages", 350, stock)
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	return p
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProduct(t, "Coffee", "4006381333931", 10)
	if err := s.Put(ctx, schema.CollectionProducts, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.GetByID(ctx, schema.CollectionProducts, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	loaded := got.(*domain.Product)
	if loaded.Name != "Coffee" || loaded.Stock != 10 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByID(context.Background(), schema.CollectionProducts, "prod-missing")
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestStore_PutValidates(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, "Coffee", "", 10)
	p.Price = -1
	err := s.Put(context.Background(), schema.CollectionProducts, p)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestStore_UnknownCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAll(context.Background(), "widgets")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestStore_UniqueIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1 := newTestProduct(t, "Coffee", "4006381333931", 10)
	if err := s.Put(ctx, schema.CollectionProducts, p1); err != nil {
		t.Fatalf("Put: %v", err)
	}

	p2 := newTestProduct(t, "Tea", "4006381333931", 5)
	err := s.Put(ctx, schema.CollectionProducts, p2)
	if !errors.Is(err, domain.ErrUniqueViolation) {
		t.Errorf("expected ErrUniqueViolation, got %v", err)
	}

	// Replacing the same record under the same barcode is fine.
	p1.Stock = 8
	if err := s.Put(ctx, schema.CollectionProducts, p1); err != nil {
		t.Errorf("Put same record: %v", err)
	}
}

func TestStore_PutMany_AllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good := newTestProduct(t, "Coffee", "", 10)
	bad := newTestProduct(t, "Tea", "", 5)
	bad.Stock = -1

	err := s.PutMany(ctx, schema.CollectionProducts, []any{good, bad})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// The invalid member rejects the whole batch; nothing visible.
	n, err := s.Count(ctx, schema.CollectionProducts)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestStore_PutMany_BatchUniqueCollision(t *testing.T) {
	s := newTestStore(t)
	p1 := newTestProduct(t, "Coffee", "4006381333931", 10)
	p2 := newTestProduct(t, "Tea", "4006381333931", 5)

	err := s.PutMany(context.Background(), schema.CollectionProducts, []any{p1, p2})
	if !errors.Is(err, domain.ErrUniqueViolation) {
		t.Errorf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestStore_GetByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	coffee := newTestProduct(t, "Coffee", "", 10)
	tea := newTestProduct(t, "Tea", "", 5)
	snack, err := domain.NewProduct("Chips", "", "snacks", 199, 20)
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	if err := s.PutMany(ctx, schema.CollectionProducts, []any{coffee, tea, snack}); err != nil {
		t.Fatalf("PutMany: %v", err)
	}

	got, err := s.GetByIndex(ctx, schema.CollectionProducts, "category", "beverages")
	if err != nil {
		t.Fatalf("GetByIndex: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}

	_, err = s.GetByIndex(ctx, schema.CollectionProducts, "flavor", "salty")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unindexed field, got %v", err)
	}
}

func TestStore_GetRange_Inclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := make(map[int64]string)
	for _, ts := range []int64{100, 200, 300, 400} {
		e, err := domain.NewAuditEntry(domain.AuditActionSaleRecorded, "sale", "", domain.AuditMeta{})
		if err != nil {
			t.Fatalf("NewAuditEntry: %v", err)
		}
		e.Timestamp = ts
		if err := s.Put(ctx, schema.CollectionAuditLogs, e); err != nil {
			t.Fatalf("Put: %v", err)
		}
		entries[ts] = e.ID
	}

	got, err := s.GetRange(ctx, schema.CollectionAuditLogs, 200, 300)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (bounds inclusive)", len(got))
	}
	for _, record := range got {
		e := record.(*domain.AuditEntry)
		if e.Timestamp < 200 || e.Timestamp > 300 {
			t.Errorf("timestamp %d outside [200,300]", e.Timestamp)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProduct(t, "Coffee", "4006381333931", 10)
	if err := s.Put(ctx, schema.CollectionProducts, p); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, schema.CollectionProducts, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, schema.CollectionProducts, p.ID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound after delete, got %v", err)
	}

	// The barcode is free again.
	p2 := newTestProduct(t, "Tea", "4006381333931", 5)
	if err := s.Put(ctx, schema.CollectionProducts, p2); err != nil {
		t.Errorf("Put after delete: %v", err)
	}

	// Deleting an absent id is a no-op.
	if err := s.Delete(ctx, schema.CollectionProducts, "prod-gone"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestStore_DeleteAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p := newTestProduct(t, "Coffee", "", 10)
		if err := s.Put(ctx, schema.CollectionProducts, p); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := s.DeleteAll(ctx, schema.CollectionProducts); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	n, err := s.Count(ctx, schema.CollectionProducts)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestStore_IndexRebuildOnReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	coffee := newTestProduct(t, "Coffee", "4006381333931", 10)
	if err := s.Put(ctx, schema.CollectionProducts, coffee); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := domain.NewAuditEntry(domain.AuditActionSaleRecorded, "sale", "", domain.AuditMeta{})
	if err != nil {
		t.Fatalf("NewAuditEntry: %v", err)
	}
	e.Timestamp = 250
	if err := s.Put(ctx, schema.CollectionAuditLogs, e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestStore(t, dir)
	got, err := reopened.GetByIndex(ctx, schema.CollectionProducts, "barcode", "4006381333931")
	if err != nil {
		t.Fatalf("GetByIndex: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("barcode index lost on reopen: len = %d", len(got))
	}
	ranged, err := reopened.GetRange(ctx, schema.CollectionAuditLogs, 200, 300)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(ranged) != 1 {
		t.Errorf("range index lost on reopen: len = %d", len(ranged))
	}
}

func TestStore_ClosedHandle(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	p := newTestProduct(t, "Coffee", "", 10)
	if err := s.Put(context.Background(), schema.CollectionProducts, p); !errors.Is(err, domain.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.GetAll(context.Background(), schema.CollectionProducts); !errors.Is(err, domain.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestStore_SchemaVersion(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != CurrentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", v, CurrentSchemaVersion)
	}
}

func TestStore_MigrationsApplyInOrder(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var applied []int64
	migrations := []Migration{
		{Version: 2, Name: "second", Apply: func(ctx context.Context, s *Store) error {
			applied = append(applied, 2)
			return nil
		}},
		{Version: 1, Name: "first", Apply: func(ctx context.Context, s *Store) error {
			applied = append(applied, 1)
			return nil
		}},
	}
	s, err := Open(ctx, DefaultConfig(dir), schema.DefaultRegistry(), migrations, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(applied) != 2 || applied[0] != 1 || applied[1] != 2 {
		t.Errorf("applied = %v, want [1 2]", applied)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: both already applied, nothing reruns.
	applied = nil
	s, err = Open(ctx, DefaultConfig(dir), schema.DefaultRegistry(), migrations, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if len(applied) != 0 {
		t.Errorf("migrations reran on reopen: %v", applied)
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion = %d, want 2", v)
	}
}

func TestStore_Empty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Empty(ctx)
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	if !empty {
		t.Error("fresh store should be empty")
	}

	p := newTestProduct(t, "Coffee", "", 10)
	if err := s.Put(ctx, schema.CollectionProducts, p); err != nil {
		t.Fatalf("Put: %v", err)
	}
	empty, err = s.Empty(ctx)
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	if empty {
		t.Error("store with a record should not be empty")
	}
}
