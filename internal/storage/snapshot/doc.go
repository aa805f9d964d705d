// Package snapshot provides ledger backups.
//
// A snapshot is a full, checksummed dump of every account record. The alias
// index is not stored; it is rebuilt from the records on restore.
//
//	backup-<ulid>.snap
//	[magic:8 "ACLGSNAP"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON array of accounts)
//	[checksum:32 SHA-256 of all bytes above]
//
// Snapshot ids are ULIDs, so lexical order is creation order.
package snapshot
