package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yndnr/tillvault-go/internal/core/domain"
)

func TestAllocator_Increment(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)
	ctx := context.Background()

	v, err := a.Increment(ctx, domain.CounterReceiptNumber, 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if v != 1 {
		t.Errorf("first Increment = %d, want 1", v)
	}
	v, err = a.Increment(ctx, domain.CounterReceiptNumber, 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if v != 2 {
		t.Errorf("second Increment = %d, want 2", v)
	}
}

func TestAllocator_IncrementDelta(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)
	ctx := context.Background()

	// Gaps are acceptable: an unconsumed increment just advances
	// the sequence.
	if _, err := a.Increment(ctx, "order_number", 5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	v, err := a.Increment(ctx, "order_number", 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if v != 6 {
		t.Errorf("Increment = %d, want 6", v)
	}
}

func TestAllocator_InvalidArgs(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)
	ctx := context.Background()

	if _, err := a.Increment(ctx, "", 1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("empty name: got %v", err)
	}
	if _, err := a.Increment(ctx, "x", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("zero delta: got %v", err)
	}
	if err := a.SetValue(ctx, "x", -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("negative value: got %v", err)
	}
}

func TestAllocator_SetValue(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)
	ctx := context.Background()

	if err := a.SetValue(ctx, domain.CounterReceiptNumber, 100); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, err := a.Increment(ctx, domain.CounterReceiptNumber, 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if v != 101 {
		t.Errorf("Increment after SetValue = %d, want 101", v)
	}
}

func TestAllocator_ValueAbsent(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)

	v, err := a.Value(context.Background(), "never_used")
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != 0 {
		t.Errorf("Value(absent) = %d, want 0", v)
	}
}

func TestAllocator_MonotonicUnderConcurrency(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)
	ctx := context.Background()

	const workers = 8
	const each = 25

	var wg sync.WaitGroup
	results := make(chan int64, workers*each)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				v, err := a.Increment(ctx, domain.CounterReceiptNumber, 1)
				if err != nil {
					t.Errorf("Increment: %v", err)
					return
				}
				results <- v
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("duplicate counter value %d", v)
		}
		seen[v] = true
	}
	if len(seen) != workers*each {
		t.Errorf("issued %d values, want %d", len(seen), workers*each)
	}
}

func TestAllocator_All(t *testing.T) {
	s := newTestStore(t)
	a := NewAllocator(s)
	ctx := context.Background()

	if _, err := a.Increment(ctx, "a", 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if _, err := a.Increment(ctx, "b", 3); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	all, err := a.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if all["a"] != 1 || all["b"] != 3 {
		t.Errorf("All = %v", all)
	}
}

func TestAllocator_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	a := NewAllocator(s)
	if _, err := a.Increment(ctx, domain.CounterReceiptNumber, 1); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestStore(t, dir)
	a2 := NewAllocator(reopened)
	v, err := a2.Increment(ctx, domain.CounterReceiptNumber, 1)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if v != 2 {
		t.Errorf("Increment after reopen = %d, want 2", v)
	}
}
