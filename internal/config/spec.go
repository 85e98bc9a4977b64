// Package config defines the application configuration structure.
package config

import "time"

// Config is the root configuration for tillvault.
type Config struct {
	Storage StorageSection `koanf:"storage"`
	Backup  BackupSection  `koanf:"backup"`
	Log     LogSection     `koanf:"log"`
}

// StorageSection configures the primary record store.
type StorageSection struct {
	// DataDir holds the Badger store and the intent log.
	DataDir string `koanf:"data_dir"`

	// GCInterval is the interval between value log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// CacheSize is the Badger block cache size in bytes.
	CacheSize int64 `koanf:"cache_size"`

	// SyncWrites enables fsync after each write.
	SyncWrites bool `koanf:"sync_writes"`
}

// BackupSection configures snapshot backups.
type BackupSection struct {
	// Dir is the backup rotation directory. Must not live inside
	// DataDir.
	Dir string `koanf:"dir"`

	// Compress gzips backup slots.
	Compress bool `koanf:"compress"`

	// QuietPeriod is the debounce window for automatic backups
	// after a mutation.
	QuietPeriod time.Duration `koanf:"quiet_period"`

	// DigestTier selects the snapshot checksum: "sha256" or "mm3".
	DigestTier string `koanf:"digest_tier"`
}

// LogSection configures logging output.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
