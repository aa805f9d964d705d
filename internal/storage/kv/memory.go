package kv

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/yndnr/acctledger/pkg/cmap"
)

// MemoryBackend keeps every value in a sharded map. Nothing survives
// Close; it backs tests and dry runs.
type MemoryBackend struct {
	items  *cmap.Map[[]byte]
	closed atomic.Bool
	logger *slog.Logger
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts ...Option) *MemoryBackend {
	o := buildOptions(opts)
	return &MemoryBackend{
		items:  cmap.New[[]byte](),
		logger: o.logger,
	}
}

// Get returns a copy of the value for key.
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	if _, _, err := SplitKey(key); err != nil {
		return nil, err
	}
	v, ok := b.items.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if _, _, err := SplitKey(key); err != nil {
		return err
	}
	b.items.Set(key, append([]byte(nil), value...))
	return nil
}

// Delete removes key.
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if _, _, err := SplitKey(key); err != nil {
		return err
	}
	b.items.Delete(key)
	return nil
}

// Scan visits keys with prefix in lexical order.
func (b *MemoryBackend) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	for _, key := range b.items.KeysWithPrefix(prefix) {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := b.items.Get(key)
		if !ok {
			continue
		}
		if !fn(key, append([]byte(nil), v...)) {
			break
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (b *MemoryBackend) Len() int {
	return b.items.Count()
}

// Close drops every value.
func (b *MemoryBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.logger.Debug("memory backend closed", "keys", b.items.Count())
	b.items.Clear()
	return nil
}

func (b *MemoryBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}
