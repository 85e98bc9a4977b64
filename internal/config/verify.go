// Package config defines the application configuration structure.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Verify validates the configuration and creates the data and backup
// directories when missing.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyBackup(&cfg.Backup, cfg.Storage.DataDir); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	return nil
}

func verifyBackup(cfg *BackupSection, dataDir string) error {
	if cfg.Dir == "" {
		return errors.New("backup.dir is required")
	}
	// A backup directory inside the store it backs up is lost with
	// the store.
	absBackup, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return err
	}
	absData, err := filepath.Abs(dataDir)
	if err != nil {
		return err
	}
	if absBackup == absData || strings.HasPrefix(absBackup, absData+string(filepath.Separator)) {
		return errors.New("backup.dir must not live inside storage.data_dir")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create backup directory: " + err.Error())
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	switch cfg.DigestTier {
	case "":
		cfg.DigestTier = DefaultDigestTier
	case "sha256", "mm3":
	default:
		return errors.New("backup.digest_tier must be \"sha256\" or \"mm3\"")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		return errors.New("log.format must be json or text")
	}
	return nil
}
