package storage

// Config configures the record store for one tenant directory.
type Config struct {
	// Dir is the storage directory, one per logical tenant.
	Dir string

	// Badger-specific tuning.
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 32MB
	CacheSize int64

	// SyncWrites enables fsync after each write.
	// Default: true (single local store is the system of record)
	SyncWrites bool
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir: dir,
		Badger: BadgerConfig{
			GCInterval:  "10m",
			GCThreshold: 0.5,
			CacheSize:   32 << 20, // 32MB
			SyncWrites:  true,
		},
	}
}
