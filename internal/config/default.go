// Package config defines the application configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultDataDir   = "/var/lib/tillvault/data"
	DefaultBackupDir = "/var/lib/tillvault/backups"

	DefaultGCInterval  = 10 * time.Minute
	DefaultCacheSize   = 32 << 20 // 32MB
	DefaultQuietPeriod = 3 * time.Second
	DefaultDigestTier  = "sha256"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			DataDir:    DefaultDataDir,
			GCInterval: DefaultGCInterval,
			CacheSize:  DefaultCacheSize,
			SyncWrites: true,
		},
		Backup: BackupSection{
			Dir:         DefaultBackupDir,
			Compress:    true,
			QuietPeriod: DefaultQuietPeriod,
			DigestTier:  DefaultDigestTier,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
