// Package kv provides the key-value backends that hold ledger records.
//
// Keys are logical paths of the form "<namespace>/<name>", for example
// "accounts/pk1.account" or "usernames/<hash>.uname". The file backend maps
// them one-to-one onto files below its root directory; the badger and
// memory backends store them verbatim.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv backend closed")
	ErrInvalidKey  = errors.New("invalid key")
)

// Supported engines.
const (
	EngineFile   = "file"
	EngineBadger = "badger"
	EngineMemory = "memory"
)

// Backend defines the interface for record storage.
//
// Implementations must be safe for concurrent use. A successful Set must
// never expose a partially written value to a concurrent Get.
type Backend interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan iterates over keys with a given prefix in lexical order.
	// Callback returns false to stop iteration.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error

	// Close releases the backend.
	Close() error
}

// Config configures a backend.
type Config struct {
	// Engine specifies the backend type ("file" or "badger").
	// Default: "file"
	Engine string

	// Dir is the storage root directory.
	Dir string

	// SyncWrites fsyncs every file write (file engine).
	// Default: true
	SyncWrites bool

	// Badger-specific configuration
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
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites enables sync writes (fsync after each write).
	// Default: true
	SyncWrites bool
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Engine:     EngineFile,
		Dir:        dir,
		SyncWrites: true,
		Badger:     DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        16 << 20, // 16MB
		ValueLogFileSize: 64 << 20, // 64MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// Open creates the backend selected by cfg.Engine.
func Open(cfg Config, opts ...Option) (Backend, error) {
	switch cfg.Engine {
	case "", EngineFile:
		return NewFileBackend(cfg, opts...)
	case EngineBadger:
		return NewBadgerBackend(cfg, opts...)
	case EngineMemory:
		return NewMemoryBackend(opts...), nil
	default:
		return nil, fmt.Errorf("kv: unknown engine %q", cfg.Engine)
	}
}

// SplitKey splits a logical key into namespace and name.
func SplitKey(key string) (namespace, name string, err error) {
	namespace, name, ok := strings.Cut(key, "/")
	if !ok || namespace == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.ContainsAny(namespace, "/\\\x00") || strings.ContainsAny(name, "/\\\x00") ||
		namespace == "." || namespace == ".." || name == "." || name == ".." {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return namespace, name, nil
}
