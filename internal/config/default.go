package config

import "time"

// Default configuration values.
const (
	DefaultDBPath        = "./ledger"
	DefaultDecimalPlaces = 8
	DefaultEngine        = "file"
	DefaultAliasHash     = "blake2b"

	DefaultCheckpointInterval = time.Minute

	DefaultWALSyncMode     = "sync"
	DefaultWALSyncInterval = 100 * time.Millisecond
	DefaultWALMaxFileSize  = 16 << 20

	DefaultSnapshotKeep = 5

	DefaultBadgerGCInterval = "10m"
	DefaultBadgerCacheSize  = 16 << 20

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Default returns the default ledger configuration.
func Default() *LedgerConfig {
	return &LedgerConfig{
		Storage: StorageSection{
			DBPath:             DefaultDBPath,
			DecimalPlaces:      DefaultDecimalPlaces,
			Engine:             DefaultEngine,
			AliasHash:          DefaultAliasHash,
			SyncWrites:         true,
			CheckpointInterval: DefaultCheckpointInterval,
			WAL: WALSection{
				SyncMode:     DefaultWALSyncMode,
				SyncInterval: DefaultWALSyncInterval,
				MaxFileSize:  DefaultWALMaxFileSize,
			},
			Snapshot: SnapshotSection{
				Keep: DefaultSnapshotKeep,
			},
			Badger: BadgerSection{
				GCInterval: DefaultBadgerGCInterval,
				CacheSize:  DefaultBadgerCacheSize,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
