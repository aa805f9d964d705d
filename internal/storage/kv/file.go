package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// FileBackend stores each key as one file: "<ns>/<name>" lives at
// "<dir>/<ns>/<name>". Writes go to a temp file that is renamed into place.
type FileBackend struct {
	dir    string
	sync   bool
	logger *slog.Logger

	mkdirMu sync.Mutex
	made    map[string]struct{}

	closed atomic.Bool
}

// NewFileBackend creates a file backend rooted at cfg.Dir.
func NewFileBackend(cfg Config, opts ...Option) (*FileBackend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file backend: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("file backend: create dir: %w", err)
	}
	o := buildOptions(opts)

	o.logger.Debug("file backend opened", "dir", cfg.Dir, "sync_writes", cfg.SyncWrites)

	return &FileBackend{
		dir:    cfg.Dir,
		sync:   cfg.SyncWrites,
		logger: o.logger,
		made:   make(map[string]struct{}),
	}, nil
}

// Dir returns the root directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Path returns the file path backing key.
func (b *FileBackend) Path(key string) (string, error) {
	ns, name, err := SplitKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.dir, ns, name), nil
}

// Get reads the file for key.
func (b *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	path, err := b.Path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set replaces the file for key atomically.
func (b *FileBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	ns, name, err := SplitKey(key)
	if err != nil {
		return err
	}

	dir := filepath.Join(b.dir, ns)
	if err := b.ensureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if b.sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("sync %s: %w", key, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key.
func (b *FileBackend) Delete(ctx context.Context, key string) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	path, err := b.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Scan lists the namespace directory named by the prefix. The prefix must
// contain the namespace and its separator, e.g. "accounts/".
func (b *FileBackend) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	ns, namePrefix, ok := strings.Cut(prefix, "/")
	if !ok || ns == "" {
		return fmt.Errorf("%w: scan prefix %q has no namespace", ErrInvalidKey, prefix)
	}

	entries, err := os.ReadDir(filepath.Join(b.dir, ns))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("list %s: %w", ns, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, namePrefix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(b.dir, ns, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read %s/%s: %w", ns, name, err)
		}
		if !fn(ns+"/"+name, data) {
			break
		}
	}
	return nil
}

// Close marks the backend closed.
func (b *FileBackend) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *FileBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (b *FileBackend) ensureDir(dir string) error {
	b.mkdirMu.Lock()
	defer b.mkdirMu.Unlock()

	if _, ok := b.made[dir]; ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	b.made[dir] = struct{}{}
	return nil
}
