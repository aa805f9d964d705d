// Package storage persists ledger accounts.
//
// The engine combines a key-value backend, an intent log (WAL) and
// backups:
//
//   - Backend: "file" lays records out as {root}/accounts/{identity}.account
//     and the alias index as {root}/usernames/{hash(alias)}.uname; "badger"
//     and "memory" hold the same keys
//   - AccountStore: per-identity locking, version checks on Put, and alias
//     index maintenance
//   - WAL: every Put logs an intent before touching the backend and a commit
//     after, so Recover can finish a write that stopped between the alias
//     index and the record
//   - Snapshot: checksummed backups of every account
//
// The alias index is derived data. Lookups treat dangling or stale entries
// as not found, and VerifyAliasIndex reports (and optionally removes) them.
package storage
