package keylock

import (
	"sort"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards.
const DefaultShardCount = 32

// Table is a set of mutexes addressed by string key.
type Table struct {
	shards    []*shard
	shardMask uint64
}

type shard struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a table with the default shard count.
func New() *Table {
	return NewWithShards(DefaultShardCount)
}

// NewWithShards creates a table with the given shard count.
// shardCount must be a power of 2; other values fall back to the default.
func NewWithShards(shardCount int) *Table {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		shardCount = DefaultShardCount
	}

	t := &Table{
		shards:    make([]*shard, shardCount),
		shardMask: uint64(shardCount - 1),
	}
	for i := range t.shards {
		t.shards[i] = &shard{locks: make(map[string]*entry)}
	}
	return t
}

func (t *Table) shardFor(key string) *shard {
	return t.shards[murmur3.Sum64([]byte(key))&t.shardMask]
}

// Lock blocks until key is held exclusively and returns its release func.
// The release func must be called exactly once.
func (t *Table) Lock(key string) (unlock func()) {
	s := t.shardFor(key)

	s.mu.Lock()
	e, ok := s.locks[key]
	if !ok {
		e = &entry{}
		s.locks[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			s.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}
}

// LockMany locks every distinct key in sorted order and returns a func
// releasing them all.
func (t *Table) LockMany(keys ...string) (unlock func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	unlocks := make([]func(), 0, len(uniq))
	for _, k := range uniq {
		unlocks = append(unlocks, t.Lock(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Len returns the number of keys currently held or awaited.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
