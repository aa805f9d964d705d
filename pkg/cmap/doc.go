// Package cmap provides a concurrent string-keyed map.
//
// Keys are spread over a power-of-two number of shards by murmur3 hash,
// each guarded by its own RWMutex:
//
//	m := cmap.New[[]byte]()
//	m.Set("accounts/pk1.account", data)
//	v, ok := m.Get("accounts/pk1.account")
//
// Range locks one shard at a time and so does not observe a consistent
// snapshot across shards.
package cmap
