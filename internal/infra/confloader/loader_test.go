package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Storage struct {
		DBPath        string        `koanf:"db_path"`
		DecimalPlaces int           `koanf:"decimal_places"`
		SyncWrites    bool          `koanf:"sync_writes"`
		WAL           struct {
			SyncMode     string        `koanf:"sync_mode"`
			SyncInterval time.Duration `koanf:"sync_interval"`
		} `koanf:"wal"`
	} `koanf:"storage"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func defaults() *testConfig {
	cfg := &testConfig{}
	cfg.Storage.DBPath = "./ledger"
	cfg.Storage.DecimalPlaces = 8
	cfg.Storage.SyncWrites = true
	cfg.Storage.WAL.SyncMode = "sync"
	cfg.Storage.WAL.SyncInterval = 100 * time.Millisecond
	cfg.Log.Level = "warn"
	return cfg
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	cfg := defaults()
	l := NewLoader(WithEnvPrefix("CONFLOADER_NONE_"))
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *cfg != *defaults() {
		t.Errorf("Load with no sources changed config: %+v", cfg)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() = false after Load")
	}
}

func TestLoader_Load_File(t *testing.T) {
	path := writeFile(t, `
storage:
  db_path: /var/lib/ledger
  decimal_places: 4
  wal:
    sync_interval: 250ms
`)

	cfg := defaults()
	if err := NewLoader(WithConfigFile(path), WithEnvPrefix("CONFLOADER_NONE_")).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DBPath != "/var/lib/ledger" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.DecimalPlaces != 4 {
		t.Errorf("DecimalPlaces = %d", cfg.Storage.DecimalPlaces)
	}
	if cfg.Storage.WAL.SyncInterval != 250*time.Millisecond {
		t.Errorf("SyncInterval = %v", cfg.Storage.WAL.SyncInterval)
	}
	if cfg.Storage.WAL.SyncMode != "sync" {
		t.Errorf("SyncMode default lost: %q", cfg.Storage.WAL.SyncMode)
	}
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	if err := NewLoader(WithConfigFile("/nonexistent/config.yaml")).Load(defaults()); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestLoader_Load_EnvUnderscoreKeys(t *testing.T) {
	t.Setenv("CLTEST_STORAGE_DB_PATH", "/env/ledger")
	t.Setenv("CLTEST_STORAGE_WAL_SYNC_MODE", "batch")
	t.Setenv("CLTEST_STORAGE_SYNC_WRITES", "false")
	t.Setenv("CLTEST_LOG_LEVEL", "debug")

	cfg := defaults()
	if err := NewLoader(WithEnvPrefix("CLTEST_")).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DBPath != "/env/ledger" {
		t.Errorf("DBPath = %q, want /env/ledger", cfg.Storage.DBPath)
	}
	if cfg.Storage.WAL.SyncMode != "batch" {
		t.Errorf("SyncMode = %q, want batch", cfg.Storage.WAL.SyncMode)
	}
	if cfg.Storage.SyncWrites {
		t.Error("SyncWrites = true, want false from env")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeFile(t, `
storage:
  db_path: /from/file
  decimal_places: 2
log:
  level: error
`)
	t.Setenv("CLPRIO_STORAGE_DB_PATH", "/from/env")
	t.Setenv("CLPRIO_STORAGE_DECIMAL_PLACES", "6")

	cfg := defaults()
	l := NewLoader(
		WithConfigFile(path),
		WithEnvPrefix("CLPRIO_"),
		WithOverrides(map[string]any{"storage.db_path": "/from/flag"}),
	)
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DBPath != "/from/flag" {
		t.Errorf("DBPath = %q, flag should win", cfg.Storage.DBPath)
	}
	if cfg.Storage.DecimalPlaces != 6 {
		t.Errorf("DecimalPlaces = %d, env should beat file", cfg.Storage.DecimalPlaces)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, file should beat default", cfg.Log.Level)
	}
}

func TestLoader_LoadMap_Getters(t *testing.T) {
	l := NewLoader()
	err := l.LoadMap(map[string]any{
		"storage.db_path":        "/m",
		"storage.decimal_places": 3,
		"storage.sync_writes":    true,
	})
	if err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if got := l.GetString("storage.db_path"); got != "/m" {
		t.Errorf("GetString = %q", got)
	}
	if got := l.GetInt("storage.decimal_places"); got != 3 {
		t.Errorf("GetInt = %d", got)
	}
	if !l.GetBool("storage.sync_writes") {
		t.Error("GetBool = false")
	}
	if l.Get("storage.db_path") == nil {
		t.Error("Get returned nil")
	}
	if len(l.Keys()) != 3 {
		t.Errorf("Keys() = %v", l.Keys())
	}
	if _, ok := l.All()["storage.db_path"]; !ok {
		t.Errorf("All() = %v", l.All())
	}
}

func TestEnvKeyIndex(t *testing.T) {
	idx := envKeyIndex(&testConfig{})

	want := map[string]string{
		"storage_db_path":           "storage.db_path",
		"storage_wal_sync_mode":     "storage.wal.sync_mode",
		"storage_wal_sync_interval": "storage.wal.sync_interval",
		"log_level":                 "log.level",
	}
	for env, key := range want {
		if idx[env] != key {
			t.Errorf("idx[%q] = %q, want %q", env, idx[env], key)
		}
	}
	if _, ok := idx["storage_wal"]; ok {
		t.Error("struct section indexed as a leaf")
	}
	if len(envKeyIndex(nil)) != 0 {
		t.Error("envKeyIndex(nil) not empty")
	}
}

func TestMapProvider_ReadBytes(t *testing.T) {
	if _, err := (mapProvider{}).ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes err = %v", err)
	}
}
