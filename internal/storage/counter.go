package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/storage/schema"
)

// Allocator issues monotonically increasing values from named
// sequences persisted in the counters collection.
//
// The allocator and its callers do not share a transaction: a value
// may be persisted and then never consumed when the caller fails
// afterwards. That yields monotonic but possibly non-contiguous
// sequences. Gaps are acceptable; duplicates are not and are caught
// by the unique index on the consuming collection.
type Allocator struct {
	store *Store
	mu    sync.Mutex
}

// NewAllocator creates an allocator over the given store.
func NewAllocator(store *Store) *Allocator {
	return &Allocator{store: store}
}

// Increment adds delta to the named sequence and returns the new
// value. An absent sequence starts at 0.
func (a *Allocator) Increment(ctx context.Context, name string, delta int64) (int64, error) {
	if name == "" {
		return 0, domain.ErrInvalidArgument.WithDetails("counter name is required")
	}
	if delta <= 0 {
		return 0, domain.ErrInvalidArgument.WithDetails("counter delta must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.read(ctx, name)
	if err != nil {
		return 0, err
	}
	next := current + delta
	counter := &domain.Counter{
		ID:          name,
		Value:       next,
		LastUpdated: domain.NowMillis(),
	}
	if err := a.store.Put(ctx, schema.CollectionCounters, counter); err != nil {
		return 0, err
	}
	return next, nil
}

// SetValue forcibly overwrites the named sequence. Administrative
// resets only; normal flow never decreases a counter.
func (a *Allocator) SetValue(ctx context.Context, name string, value int64) error {
	if name == "" {
		return domain.ErrInvalidArgument.WithDetails("counter name is required")
	}
	if value < 0 {
		return domain.ErrInvalidArgument.WithDetails("counter value must not be negative")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	counter := &domain.Counter{
		ID:          name,
		Value:       value,
		LastUpdated: domain.NowMillis(),
	}
	return a.store.Put(ctx, schema.CollectionCounters, counter)
}

// Value returns the current value of the named sequence, 0 if
// absent.
func (a *Allocator) Value(ctx context.Context, name string) (int64, error) {
	return a.read(ctx, name)
}

// All returns every sequence as a name to value map, used by the
// snapshot aggregate.
func (a *Allocator) All(ctx context.Context) (map[string]int64, error) {
	records, err := a.store.GetAll(ctx, schema.CollectionCounters)
	if err != nil {
		return nil, err
	}
	counters := make(map[string]int64, len(records))
	for _, record := range records {
		c := record.(*domain.Counter)
		counters[c.ID] = c.Value
	}
	return counters, nil
}

func (a *Allocator) read(ctx context.Context, name string) (int64, error) {
	record, err := a.store.GetByID(ctx, schema.CollectionCounters, name)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.(*domain.Counter).Value, nil
}
