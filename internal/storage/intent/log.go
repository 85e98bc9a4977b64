package intent

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log is the append-only intent log for one tenant directory. All
// writes are synced before returning; intents are rare (one per
// multi-step operation), so per-frame fsync is affordable.
type Log struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	pending map[string]*Pending
	closed  bool
}

// Open opens (or creates) the intent log in dir and returns the log
// plus any intents left incomplete by a crash. The caller compensates
// the pending intents and then calls Compact.
//
// A torn or corrupt trailing frame is truncated away.
func Open(dir string, logger *slog.Logger) (*Log, []*Pending, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(dir, FileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, DefaultFilePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("intent: open log: %w", err)
	}

	l := &Log{
		path:    path,
		logger:  logger,
		file:    file,
		pending: make(map[string]*Pending),
	}

	goodEnd, err := readFrames(file, func(op opType, ev *wireEvent) {
		switch op {
		case opBegin:
			l.pending[ev.IntentID] = &Pending{
				ID:        ev.IntentID,
				Kind:      ev.Kind,
				EntityID:  ev.EntityID,
				Payload:   ev.Payload,
				StartedAt: ev.Timestamp,
			}
		case opStep:
			if p, ok := l.pending[ev.IntentID]; ok && ev.Step != nil {
				p.Steps = append(p.Steps, *ev.Step)
			}
		case opComplete:
			delete(l.pending, ev.IntentID)
		}
	})
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	// Drop a torn tail so later appends start on a frame boundary.
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("intent: stat log: %w", err)
	}
	if info.Size() > goodEnd {
		logger.Warn("truncating torn intent log tail",
			"path", path,
			"from", info.Size(),
			"to", goodEnd)
		if err := file.Truncate(goodEnd); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("intent: truncate log: %w", err)
		}
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("intent: seek log: %w", err)
	}

	incomplete := make([]*Pending, 0, len(l.pending))
	for _, p := range l.pending {
		incomplete = append(incomplete, p)
	}
	if len(incomplete) > 0 {
		logger.Warn("incomplete intents found", "count", len(incomplete))
	}
	return l, incomplete, nil
}

// Txn is a handle to one staged intent.
type Txn struct {
	id  string
	log *Log
}

// ID returns the intent identifier.
func (t *Txn) ID() string {
	return t.id
}

// Begin stages a new intent. Payload carries whatever the
// compensator needs to undo the operation (for reversals, the
// original sale).
func (l *Log) Begin(kind Kind, entityID string, payload json.RawMessage) (*Txn, error) {
	id, err := newIntentID()
	if err != nil {
		return nil, fmt.Errorf("intent: generate id: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLogClosed
	}

	ev := &wireEvent{
		IntentID:  id,
		Kind:      kind,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := l.appendLocked(opBegin, ev); err != nil {
		return nil, err
	}
	l.pending[id] = &Pending{
		ID:        id,
		Kind:      kind,
		EntityID:  entityID,
		Payload:   payload,
		StartedAt: ev.Timestamp,
	}
	return &Txn{id: id, log: l}, nil
}

// Resume returns a handle for a replayed intent so the compensator
// can mark it completed. The id comes from a Pending returned by
// Open.
func (l *Log) Resume(id string) *Txn {
	return &Txn{id: id, log: l}
}

// Step records an applied sub-operation. Call after the
// sub-operation's own write committed.
func (t *Txn) Step(step Step) error {
	l := t.log
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	p, ok := l.pending[t.id]
	if !ok {
		return ErrUnknownIntent
	}
	ev := &wireEvent{
		IntentID:  t.id,
		Step:      &step,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := l.appendLocked(opStep, ev); err != nil {
		return err
	}
	p.Steps = append(p.Steps, step)
	return nil
}

// Complete marks the intent done; it will not replay.
func (t *Txn) Complete() error {
	l := t.log
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	if _, ok := l.pending[t.id]; !ok {
		return ErrUnknownIntent
	}
	ev := &wireEvent{
		IntentID:  t.id,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := l.appendLocked(opComplete, ev); err != nil {
		return err
	}
	delete(l.pending, t.id)
	return nil
}

// PendingCount returns the number of staged-but-incomplete intents.
func (l *Log) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Compact truncates the log when no intents are pending. A no-op
// otherwise.
func (l *Log) Compact() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	if len(l.pending) > 0 {
		return nil
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("intent: compact: %w", err)
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("intent: compact seek: %w", err)
	}
	return l.file.Sync()
}

// Close syncs and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("intent: sync on close: %w", err)
	}
	return l.file.Close()
}

func (l *Log) appendLocked(op opType, ev *wireEvent) error {
	frame, err := encodeFrame(op, ev)
	if err != nil {
		return err
	}
	if _, err := l.file.Write(frame); err != nil {
		return fmt.Errorf("intent: append frame: %w", err)
	}
	return l.file.Sync()
}
