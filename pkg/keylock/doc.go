// Package keylock provides a sharded table of per-key mutexes.
//
// It serializes work on the same key (an account identity, an alias hash)
// while letting unrelated keys proceed in parallel:
//
//   - Sharding: keys are spread over power-of-two shards with murmur3
//   - Refcounting: a key's mutex is dropped once no holder or waiter remains
//   - Ordered multi-key locking: LockMany sorts keys to avoid deadlock
//
// Usage:
//
//	t := keylock.New()
//	unlock := t.Lock("acct:pk1")
//	defer unlock()
package keylock
