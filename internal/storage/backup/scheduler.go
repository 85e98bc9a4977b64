package backup

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultQuietPeriod is the debounce window for scheduled backups.
const DefaultQuietPeriod = 3 * time.Second

// Scheduler coalesces bursts of mutations into a single backup run
// after a quiet period. One pending timer exists per scheduler;
// scheduling again replaces it rather than stacking. The scheduler is
// owned by the tenant session and injected into whoever mutates the
// store.
type Scheduler struct {
	quiet  time.Duration
	run    func()
	logger *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewScheduler creates a scheduler that invokes run after the quiet
// period elapses without another Schedule call. A zero quiet period
// uses the default.
func NewScheduler(quiet time.Duration, run func(), logger *slog.Logger) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		quiet:  quiet,
		run:    run,
		logger: logger,
	}
}

// Schedule arms the debounce timer, replacing any pending one. Only
// the last call in a burst actually runs. Callers must not assume
// durability when this returns.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.quiet, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		s.run()
	})
}

// Cancel drops any pending run.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Flush runs a pending backup immediately instead of waiting out the
// quiet period. A no-op when nothing is pending.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	pending := s.timer != nil && !s.closed
	if pending {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	if pending {
		s.run()
	}
}

// Pending reports whether a run is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Close cancels any pending run and rejects further scheduling.
// Closing the store must cancel its debounced backup.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
