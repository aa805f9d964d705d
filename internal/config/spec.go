package config

import "time"

// LedgerConfig is the root configuration.
type LedgerConfig struct {
	Storage StorageSection `koanf:"storage" yaml:"storage" json:"storage"`
	Log     LogSection     `koanf:"log" yaml:"log" json:"log"`
}

// StorageSection configures where and how accounts are stored.
type StorageSection struct {
	// DBPath is the root directory of the ledger.
	DBPath string `koanf:"db_path" yaml:"db_path" json:"db_path"`

	// DecimalPlaces is the display precision of amounts (0..18).
	DecimalPlaces int `koanf:"decimal_places" yaml:"decimal_places" json:"decimal_places"`

	// Engine selects the record backend: "file", "badger" or "memory".
	Engine string `koanf:"engine" yaml:"engine" json:"engine"`

	// AliasHash names the alias index hash: "blake2b" or "sha256".
	// Changing it on an existing ledger orphans every index entry.
	AliasHash string `koanf:"alias_hash" yaml:"alias_hash" json:"alias_hash"`

	// SyncWrites fsyncs every record file (file engine).
	SyncWrites bool `koanf:"sync_writes" yaml:"sync_writes" json:"sync_writes"`

	// CheckpointInterval is how often a long-lived engine compacts its WAL.
	// Zero disables the background loop.
	CheckpointInterval time.Duration `koanf:"checkpoint_interval" yaml:"checkpoint_interval" json:"checkpoint_interval"`

	WAL      WALSection      `koanf:"wal" yaml:"wal" json:"wal"`
	Snapshot SnapshotSection `koanf:"snapshot" yaml:"snapshot" json:"snapshot"`
	Badger   BadgerSection   `koanf:"badger" yaml:"badger" json:"badger"`
}

// WALSection configures the intent log.
type WALSection struct {
	SyncMode     string        `koanf:"sync_mode" yaml:"sync_mode" json:"sync_mode"`
	SyncInterval time.Duration `koanf:"sync_interval" yaml:"sync_interval" json:"sync_interval"`
	MaxFileSize  int64         `koanf:"max_file_size" yaml:"max_file_size" json:"max_file_size"`
}

// SnapshotSection configures backups.
type SnapshotSection struct {
	Keep int `koanf:"keep" yaml:"keep" json:"keep"`
}

// BadgerSection tunes the badger engine.
type BadgerSection struct {
	GCInterval string `koanf:"gc_interval" yaml:"gc_interval" json:"gc_interval"`
	CacheSize  int64  `koanf:"cache_size" yaml:"cache_size" json:"cache_size"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level" json:"level"`
	Format string `koanf:"format" yaml:"format" json:"format"`
}
