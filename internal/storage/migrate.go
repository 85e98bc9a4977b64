package storage

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/tillvault-go/internal/core/domain"
)

// Migration upgrades the store's data from one schema version to the
// next. Migrations run in ascending Version order inside Open, before
// the store serves its first request.
type Migration struct {
	Version int64
	Name    string
	Apply   func(ctx context.Context, s *Store) error
}

// SchemaVersion returns the applied schema version, 0 for a fresh
// store.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	var version int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeySchemaVersion))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version, err = strconv.ParseInt(string(raw), 10, 64)
		return err
	})
	if err != nil {
		return 0, mapStorageErr("read schema version", err)
	}
	return version, nil
}

// setSchemaVersion persists the schema version marker.
func (s *Store) setSchemaVersion(version int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaKeySchemaVersion), []byte(strconv.FormatInt(version, 10)))
	})
	return mapStorageErr("write schema version", err)
}

// applyMigrations runs every migration with a version greater than
// the applied one, recording progress after each so a crash resumes
// where it left off.
func (s *Store) applyMigrations(ctx context.Context, migrations []Migration) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	target := current
	for _, m := range sorted {
		if m.Version > target {
			target = m.Version
		}
	}

	for _, m := range sorted {
		if m.Version <= current {
			continue
		}
		s.logger.Info("applying schema migration",
			"version", m.Version,
			"name", m.Name)
		if m.Apply != nil {
			if err := m.Apply(ctx, s); err != nil {
				return domain.ErrStorage.
					WithDetails("migration " + m.Name + " failed").
					WithCause(err)
			}
		}
		if err := s.setSchemaVersion(m.Version); err != nil {
			return err
		}
	}

	// Fresh stores with no migrations still record the target
	// version so later upgrades have a baseline.
	if current == 0 && target == 0 && len(sorted) == 0 {
		return s.setSchemaVersion(CurrentSchemaVersion)
	}
	return nil
}

// CurrentSchemaVersion is the schema version written by this build
// when no migrations are registered.
const CurrentSchemaVersion = 1

// DefaultMigrations returns the migrations for the shop collections.
// Version 1 is the baseline and performs no data changes.
func DefaultMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "baseline",
			Apply:   nil,
		},
	}
}
