package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/tillvault-go/internal/storage/snapshot"
)

// Generation names the rotation slots, newest first.
type Generation string

const (
	GenLatest Generation = "latest"
	GenPrev1  Generation = "prev1"
	GenPrev2  Generation = "prev2"
)

// Generations returns the rotation slots in recovery order.
func Generations() []Generation {
	return []Generation{GenLatest, GenPrev1, GenPrev2}
}

const (
	metaFileName = "meta.json"

	// Exported snapshot files keep a .json name even when the body
	// is gzip; the codec tag lives in the content, not the name.
	slotExtension = ".json"

	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// ErrThrottled rejects manual backups that arrive faster than the
// configured rate.
var ErrThrottled = errors.New("backup: manual backup throttled")

// Meta is the small metadata record kept beside the slots.
type Meta struct {
	LastBackup int64 `json:"last_backup"`
	Count      int64 `json:"count"`
	TotalSize  int64 `json:"total_size"`
}

// Config configures the rotation manager.
type Config struct {
	// Dir is the backup directory. Must live outside the primary
	// store's directory so a corrupted store cannot take its own
	// backups down with it.
	Dir string

	// Compress gzips snapshot bodies.
	Compress bool

	// ManualRate throttles explicit backup triggers. Zero means one
	// per two seconds.
	ManualRate rate.Limit
}

// DefaultConfig returns the default rotation configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		Compress:   true,
		ManualRate: rate.Every(2 * time.Second),
	}
}

// Manager persists snapshots into the rotation slots.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewManager creates the rotation manager and its directory.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("backup: create dir: %w", err)
	}
	limit := cfg.ManualRate
	if limit == 0 {
		limit = rate.Every(2 * time.Second)
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// slotPath returns the file path of a generation slot.
func (m *Manager) slotPath(gen Generation) string {
	return filepath.Join(m.cfg.Dir, string(gen)+slotExtension)
}

// SaveSnapshot rotates the slots and writes the snapshot as latest.
func (m *Manager) SaveSnapshot(s *snapshot.Snapshot) error {
	data, err := snapshot.Serialize(s, m.cfg.Compress)
	if err != nil {
		return err
	}

	// Shift prev1 -> prev2, latest -> prev1. A missing source slot
	// just skips the shift.
	if err := shiftSlot(m.slotPath(GenPrev1), m.slotPath(GenPrev2)); err != nil {
		return err
	}
	if err := shiftSlot(m.slotPath(GenLatest), m.slotPath(GenPrev1)); err != nil {
		return err
	}

	// Temp file + rename so a crash never leaves a torn latest.
	tempPath := m.slotPath(GenLatest) + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("backup: create temp file: %w", err)
	}
	defer os.Remove(tempPath)
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("backup: write snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("backup: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("backup: close: %w", err)
	}
	if err := os.Rename(tempPath, m.slotPath(GenLatest)); err != nil {
		return fmt.Errorf("backup: rename: %w", err)
	}

	if err := m.updateMeta(); err != nil {
		return err
	}

	m.logger.Info("backup written",
		"size", len(data),
		"records", s.RecordCount(),
		"compressed", m.cfg.Compress)
	return nil
}

// Backup aggregates and saves under the manual-trigger rate limit.
func (m *Manager) Backup(ctx context.Context, eng *snapshot.Engine) error {
	if !m.limiter.Allow() {
		return ErrThrottled
	}
	s, err := eng.Aggregate(ctx)
	if err != nil {
		return err
	}
	return m.SaveSnapshot(s)
}

// LoadSnapshot reads and validates one generation. Absent or invalid
// slots return nil; the condition is logged, never raised.
func (m *Manager) LoadSnapshot(gen Generation) *snapshot.Snapshot {
	data, err := os.ReadFile(m.slotPath(gen))
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("backup slot unreadable", "generation", gen, "error", err)
		}
		return nil
	}
	s, err := snapshot.Deserialize(data)
	if err != nil {
		m.logger.Warn("backup slot unparseable", "generation", gen, "error", err)
		return nil
	}
	if !s.Valid() {
		m.logger.Warn("backup slot failed checksum", "generation", gen)
		return nil
	}
	return s
}

// Meta reads the metadata record. A fresh rotation returns zeroes.
func (m *Manager) Meta() (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, metaFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return meta, fmt.Errorf("backup: read meta: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("backup: parse meta: %w", err)
	}
	return meta, nil
}

// updateMeta recomputes the metadata record from the slots.
func (m *Manager) updateMeta() error {
	meta, err := m.Meta()
	if err != nil {
		// A corrupt meta file starts over; the slots are the
		// source of truth.
		meta = Meta{}
	}
	meta.LastBackup = time.Now().UnixMilli()
	meta.Count++
	meta.TotalSize = 0
	for _, gen := range Generations() {
		if info, err := os.Stat(m.slotPath(gen)); err == nil {
			meta.TotalSize += info.Size()
		}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("backup: marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.cfg.Dir, metaFileName), data, DefaultFilePerm); err != nil {
		return fmt.Errorf("backup: write meta: %w", err)
	}
	return nil
}

// ExportFileName builds the date-stamped export name,
// shop-backup-<ISO date>.json. The .json extension is kept even for
// gzip bodies.
func ExportFileName(t time.Time) string {
	return "shop-backup-" + t.Format("2006-01-02") + slotExtension
}

// shiftSlot renames src over dst, skipping absent sources.
func shiftSlot(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("backup: rotate %s: %w", filepath.Base(src), err)
	}
	return nil
}
