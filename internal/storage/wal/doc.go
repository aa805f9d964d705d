// Package wal provides the intent log that makes account writes recoverable.
//
// An account Put touches two keys (the alias index entry and the record).
// Before either is written the store appends an INTENT carrying the full
// post-image of the record; once both writes succeed it appends a COMMIT,
// and on a failed write an ABORT. On startup, intents with neither are
// re-applied, finishing writes that a crash interrupted.
//
// Entry Types:
//
//   - INTENT: account post-image plus the alias index key to write
//   - COMMIT: the intent's writes completed
//   - ABORT: the intent's writes failed and must not be replayed
//
// Format:
//
//	wal-<segment-id>.log
//	[magic:8 "ACLGWAL\x01"]
//	[Entry]*
//	[checksum:32 SHA-256 of all bytes above] (finalized segments only)
//
// Entry wire format:
//
//	[Length:4][CRC32:4][Type:1][Payload:Length-5]
//
// Where:
//   - Length = CRC32 + Type + Payload (big-endian uint32)
//   - CRC32 covers Type+Payload (IEEE)
//   - Payload is JSON
package wal
