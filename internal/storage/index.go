package storage

import (
	"sync"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
	"github.com/yndnr/tillvault-go/pkg/cmap"
)

// idSet is a concurrent-safe set of record IDs.
type idSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

func newIDSet() *idSet {
	return &idSet{items: make(map[string]struct{})}
}

func (s *idSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = struct{}{}
}

func (s *idSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *idSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *idSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]string, 0, len(s.items))
	for id := range s.items {
		items = append(items, id)
	}
	return items
}

// collectionIndex maintains the in-memory secondary indexes of one
// collection: unique field→key→id maps, non-unique field→key→id-set
// maps, and the sortable field values for range queries.
//
// Indexes are rebuilt from the storage engine on Open and updated on
// every committed write.
type collectionIndex struct {
	spec *schema.CollectionSpec

	unique map[string]*cmap.Map[string, string]
	multi  map[string]*cmap.Map[string, *idSet]

	// sortVals maps record id to the sortable field value. Range
	// queries scan it; callers that need ordering sort the results.
	sortVals *cmap.Map[string, int64]
}

func newCollectionIndex(spec *schema.CollectionSpec) *collectionIndex {
	ci := &collectionIndex{
		spec:   spec,
		unique: make(map[string]*cmap.Map[string, string]),
		multi:  make(map[string]*cmap.Map[string, *idSet]),
	}
	for _, idx := range spec.Indexes {
		if idx.Unique {
			ci.unique[idx.Field] = cmap.New[string, string]()
		} else {
			ci.multi[idx.Field] = cmap.New[string, *idSet]()
		}
	}
	if spec.SortField != "" {
		ci.sortVals = cmap.New[string, int64]()
	}
	return ci
}

// CheckUnique verifies that the record's unique index keys do not
// collide with a different record. Called before the write is
// committed.
func (ci *collectionIndex) CheckUnique(record any) error {
	id := ci.spec.ID(record)
	for _, idx := range ci.spec.Indexes {
		if !idx.Unique {
			continue
		}
		key, ok := idx.Key(record)
		if !ok {
			continue
		}
		if existing, found := ci.unique[idx.Field].Get(key); found && existing != id {
			return domain.ErrUniqueViolation.WithDetails(
				ci.spec.Name + "." + idx.Field + " = " + key)
		}
	}
	return nil
}

// Add registers a record's keys. The caller has already committed the
// record and removed any previous version's keys.
func (ci *collectionIndex) Add(record any) {
	id := ci.spec.ID(record)
	for _, idx := range ci.spec.Indexes {
		key, ok := idx.Key(record)
		if !ok {
			continue
		}
		if idx.Unique {
			ci.unique[idx.Field].Set(key, id)
		} else {
			set, _ := ci.multi[idx.Field].GetOrSet(key, newIDSet())
			set.Add(id)
		}
	}
	if ci.sortVals != nil {
		if v, ok := ci.spec.SortKey(record); ok {
			ci.sortVals.Set(id, v)
		}
	}
}

// Remove unregisters a record's keys.
func (ci *collectionIndex) Remove(record any) {
	id := ci.spec.ID(record)
	for _, idx := range ci.spec.Indexes {
		key, ok := idx.Key(record)
		if !ok {
			continue
		}
		if idx.Unique {
			if existing, found := ci.unique[idx.Field].Get(key); found && existing == id {
				ci.unique[idx.Field].Delete(key)
			}
		} else {
			if set, found := ci.multi[idx.Field].Get(key); found {
				set.Remove(id)
				if set.Len() == 0 {
					ci.multi[idx.Field].Delete(key)
				}
			}
		}
	}
	if ci.sortVals != nil {
		ci.sortVals.Delete(id)
	}
}

// Lookup returns the ids indexed under the given field and key.
func (ci *collectionIndex) Lookup(field, key string) []string {
	if m, ok := ci.unique[field]; ok {
		if id, found := m.Get(key); found {
			return []string{id}
		}
		return nil
	}
	if m, ok := ci.multi[field]; ok {
		if set, found := m.Get(key); found {
			return set.Items()
		}
	}
	return nil
}

// HasIndex reports whether the field is indexed.
func (ci *collectionIndex) HasIndex(field string) bool {
	if _, ok := ci.unique[field]; ok {
		return true
	}
	_, ok := ci.multi[field]
	return ok
}

// Range returns the ids whose sortable field value lies within
// [from, to] inclusive. Order is unspecified.
func (ci *collectionIndex) Range(from, to int64) []string {
	if ci.sortVals == nil {
		return nil
	}
	var ids []string
	ci.sortVals.Range(func(id string, v int64) bool {
		if v >= from && v <= to {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Clear drops all index state, used before a rebuild or a
// delete-all.
func (ci *collectionIndex) Clear() {
	for _, m := range ci.unique {
		m.Clear()
	}
	for _, m := range ci.multi {
		m.Clear()
	}
	if ci.sortVals != nil {
		ci.sortVals.Clear()
	}
}
