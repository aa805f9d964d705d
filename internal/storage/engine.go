package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/internal/storage/kv"
	"github.com/yndnr/acctledger/internal/storage/snapshot"
	"github.com/yndnr/acctledger/internal/storage/wal"
	"github.com/yndnr/acctledger/internal/telemetry/metric"
	"github.com/yndnr/acctledger/pkg/hashing"
)

// Default configuration values.
const (
	DefaultCheckpointInterval = time.Minute
	DefaultWALDir             = "wal"
	DefaultSnapshotDir        = "snapshots"
)

// Config configures the storage engine.
type Config struct {
	// DataDir is the storage root (db_path).
	DataDir string

	// KV selects and configures the record backend.
	KV kv.Config

	// WAL configuration
	WAL wal.Config

	// Snapshot configuration
	Snapshot snapshot.Config

	// AliasHash names the alias index hash (blake2b or sha256).
	AliasHash string

	// CheckpointInterval is the interval between WAL checkpoints.
	// Zero disables the background loop.
	CheckpointInterval time.Duration

	// Logger is the structured logger.
	Logger *slog.Logger

	// Metrics receives store metrics. May be nil.
	Metrics *metric.Ledger

	// Registerer, when set, receives backend metrics.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:            dataDir,
		KV:                 kv.DefaultConfig(dataDir),
		WAL:                wal.DefaultConfig(filepath.Join(dataDir, DefaultWALDir)),
		Snapshot:           snapshot.DefaultConfig(filepath.Join(dataDir, DefaultSnapshotDir)),
		AliasHash:          hashing.AlgBlake2b,
		CheckpointInterval: DefaultCheckpointInterval,
		Logger:             slog.Default(),
	}
}

// Engine wires the record backend, the intent log and backups around an
// AccountStore.
type Engine struct {
	cfg Config

	backend  kv.Backend
	wal      *wal.Writer
	snapshot *snapshot.Manager
	store    *AccountStore

	logger *slog.Logger

	loopOnce  sync.Once
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a storage engine.
//
// This opens every component but does NOT replay the intent log.
// Call Recover() after New() and before serving writes.
func New(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.KV.Dir == "" {
		cfg.KV.Dir = cfg.DataDir
	}
	if cfg.WAL.Dir == "" {
		cfg.WAL.Dir = filepath.Join(cfg.DataDir, DefaultWALDir)
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = filepath.Join(cfg.DataDir, DefaultSnapshotDir)
	}
	if cfg.AliasHash == "" {
		cfg.AliasHash = hashing.AlgBlake2b
	}
	cfg.Snapshot.AliasHash = cfg.AliasHash

	hash, err := hashing.ByName(cfg.AliasHash)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	backend, err := kv.Open(cfg.KV, kv.WithLogger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("storage: open %s backend: %w", cfg.KV.Engine, err)
	}
	if bb, ok := backend.(*kv.BadgerBackend); ok && cfg.Registerer != nil {
		bb.RegisterMetrics(cfg.Registerer)
	}

	walWriter, err := wal.NewWriter(cfg.WAL)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("storage: create wal writer: %w", err)
	}

	snapMgr, err := snapshot.NewManager(cfg.Snapshot)
	if err != nil {
		walWriter.Close()
		backend.Close()
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}

	store := NewAccountStore(backend, hash,
		WithWAL(walWriter),
		WithStoreLogger(cfg.Logger),
		WithStoreMetrics(cfg.Metrics),
	)

	return &Engine{
		cfg:      cfg,
		backend:  backend,
		wal:      walWriter,
		snapshot: snapMgr,
		store:    store,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Store returns the account store.
func (e *Engine) Store() *AccountStore {
	return e.store
}

// Recover finishes interrupted writes and starts background checkpoints.
//
// Recovery process:
//  1. Read every WAL segment (torn tails end their segment)
//  2. Re-apply intents with neither commit nor abort, skipping those the
//     stored record has already passed
//  3. Checkpoint so the replayed segments can be compacted
func (e *Engine) Recover(ctx context.Context) error {
	startTime := time.Now()
	e.logger.Debug("storage recovery started", "dir", e.cfg.DataDir)

	reader, err := wal.NewReader(e.cfg.WAL.Dir)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	entries, err := reader.ReadAll()
	reader.Close()
	if err != nil {
		return fmt.Errorf("read wal: %w", err)
	}
	if reader.Truncated > 0 {
		e.logger.Warn("wal segments truncated", "count", reader.Truncated)
	}

	applied, skipped := 0, 0
	for _, entry := range wal.Unresolved(entries) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := e.store.applyIntent(ctx, entry)
		if errors.Is(err, wal.ErrCorruptedEntry) {
			e.logger.Warn("skipping intent without account", "tx_id", entry.TxID)
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("replay intent %s: %w", entry.TxID, err)
		}
		if !ok {
			skipped++
			continue
		}
		applied++
		e.cfg.Metrics.IntentReplayed()
		e.logger.Info("interrupted write completed",
			"tx_id", entry.TxID,
			"identity", entry.Identity,
			"version", entry.Account.Version)
	}

	if err := e.Checkpoint(ctx); err != nil {
		return fmt.Errorf("checkpoint after recovery: %w", err)
	}

	e.logger.Info("recovery completed",
		"entries", len(entries),
		"intents_applied", applied,
		"intents_skipped", skipped,
		"elapsed", time.Since(startTime))

	e.startLoop()
	return nil
}

// Checkpoint rotates the WAL and removes segments that can no longer hold
// an open intent.
func (e *Engine) Checkpoint(_ context.Context) error {
	e.store.gate.Lock()
	segment, err := e.wal.Rotate()
	e.store.gate.Unlock()
	if err != nil {
		return fmt.Errorf("rotate wal: %w", err)
	}

	removed, err := wal.NewCompactor(e.cfg.WAL.Dir).Compact(segment)
	if err != nil {
		return fmt.Errorf("compact wal: %w", err)
	}
	if removed > 0 {
		e.logger.Debug("wal compacted", "removed", removed, "segment", segment)
	}
	return nil
}

// CreateBackup writes a snapshot of every account and prunes old ones.
func (e *Engine) CreateBackup(ctx context.Context) (*snapshot.Info, error) {
	accounts, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}

	info, err := e.snapshot.Create(accounts)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	e.logger.Info("backup created",
		"id", info.ID,
		"account_count", info.AccountCount,
		"size_bytes", info.Size)

	if _, err := e.snapshot.Prune(); err != nil {
		e.logger.Warn("snapshot cleanup failed", "error", err)
	}
	return info, nil
}

// Restore writes every account of a backup back into the store. idOrPath
// is a backup id, a path, or "" for the latest valid backup. Accounts that
// fail are skipped and reported in the joined error.
func (e *Engine) Restore(ctx context.Context, idOrPath string) (int, error) {
	var (
		accounts []*domain.Account
		info     *snapshot.Info
		err      error
	)
	if idOrPath == "" {
		accounts, info, err = e.snapshot.Load()
	} else {
		var path string
		if path, err = e.snapshot.Path(idOrPath); err == nil {
			accounts, info, err = snapshot.LoadFile(path)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if info.AliasHash != "" && info.AliasHash != e.cfg.AliasHash {
		e.logger.Warn("backup was taken with a different alias hash, index is rebuilt",
			"backup_hash", info.AliasHash,
			"current_hash", e.cfg.AliasHash)
	}

	restored := 0
	var errs []error
	for _, acc := range accounts {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		if err := e.store.RestoreAccount(ctx, acc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", acc.Identity, err))
			continue
		}
		restored++
	}

	e.logger.Info("backup restored",
		"id", info.ID,
		"restored", restored,
		"failed", len(errs))
	return restored, errors.Join(errs...)
}

// ListBackups lists backups, oldest first.
func (e *Engine) ListBackups() ([]*snapshot.Info, error) {
	return e.snapshot.List()
}

func (e *Engine) startLoop() {
	if e.cfg.CheckpointInterval <= 0 {
		return
	}
	e.loopOnce.Do(func() {
		go e.checkpointLoop()
	})
}

// checkpointLoop runs periodic checkpoints.
func (e *Engine) checkpointLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Checkpoint(context.Background()); err != nil {
				e.logger.Error("checkpoint failed", "error", err)
			}
		case <-e.stopCh:
			return
		}
	}
}

// Close stops the background loop and closes every component.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.stopCh)
		// Consuming loopOnce here also keeps a later Recover from starting it.
		started := true
		e.loopOnce.Do(func() { started = false })
		if started {
			<-e.doneCh
		}

		err = errors.Join(e.wal.Close(), e.backend.Close())
		if err != nil {
			e.logger.Error("storage engine shutdown failed", "error", err)
		}
	})
	return err
}
