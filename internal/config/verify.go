package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/internal/storage/kv"
	"github.com/yndnr/acctledger/internal/storage/wal"
	"github.com/yndnr/acctledger/internal/telemetry/logger"
	"github.com/yndnr/acctledger/pkg/hashing"
)

// Verify validates the configuration.
func Verify(cfg *LedgerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return errors.Join(
		verifyStorage(&cfg.Storage),
		verifyLog(&cfg.Log),
	)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error

	if cfg.DBPath == "" {
		errs = append(errs, errors.New("storage.db_path is required"))
	}
	if _, err := domain.NewPrecision(cfg.DecimalPlaces); err != nil {
		errs = append(errs, fmt.Errorf("storage.decimal_places: %w", err))
	}
	switch cfg.Engine {
	case kv.EngineFile, kv.EngineBadger, kv.EngineMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.engine must be %q, %q or %q, got %q", kv.EngineFile, kv.EngineBadger, kv.EngineMemory, cfg.Engine))
	}
	if _, err := hashing.ByName(cfg.AliasHash); err != nil {
		errs = append(errs, fmt.Errorf("storage.alias_hash: %w", err))
	}
	if cfg.CheckpointInterval < 0 {
		errs = append(errs, errors.New("storage.checkpoint_interval must not be negative"))
	}
	if _, err := wal.ParseSyncMode(cfg.WAL.SyncMode); err != nil {
		errs = append(errs, fmt.Errorf("storage.wal.sync_mode: %w", err))
	}
	if cfg.WAL.SyncInterval < 0 {
		errs = append(errs, errors.New("storage.wal.sync_interval must not be negative"))
	}
	if cfg.Snapshot.Keep < 1 {
		errs = append(errs, errors.New("storage.snapshot.keep must be at least 1"))
	}
	if cfg.Engine == kv.EngineBadger && cfg.Badger.GCInterval != "" {
		if d, err := time.ParseDuration(cfg.Badger.GCInterval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("storage.badger.gc_interval %q is not a positive duration", cfg.Badger.GCInterval))
		}
	}

	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "", "text", "console", "json":
		return nil
	}
	return fmt.Errorf("log.format must be text or json, got %q", cfg.Format)
}
