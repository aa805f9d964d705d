package wal

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/acctledger/internal/core/domain"
)

// Errors for WAL operations.
var (
	ErrCorruptedEntry   = errors.New("wal: corrupted entry")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrInvalidEntryType = errors.New("wal: invalid entry type")
	ErrClosed           = errors.New("wal: writer is closed")
)

// OpType represents the type of record in the WAL.
type OpType uint8

const (
	OpTypeUnspecified OpType = iota
	OpTypeIntent
	OpTypeCommit
	OpTypeAbort
)

// String returns the lower-case op name.
func (o OpType) String() string {
	switch o {
	case OpTypeIntent:
		return "intent"
	case OpTypeCommit:
		return "commit"
	case OpTypeAbort:
		return "abort"
	default:
		return "unspecified"
	}
}

// Entry is one WAL record.
//
// Timestamp uses Unix milliseconds.
type Entry struct {
	OpType    OpType
	Timestamp int64
	TxID      string
	Identity  string

	// AliasKey is the alias index key the intent writes, empty when the
	// put leaves the index untouched. Intent only.
	AliasKey string

	// Account is the record post-image, version already incremented.
	// Intent only.
	Account *domain.Account
}

// NewTxID returns a new, time-ordered transaction id.
func NewTxID() string {
	return ulid.Make().String()
}

// NewIntentEntry creates an INTENT entry. The account is cloned.
func NewIntentEntry(txID, aliasKey string, account *domain.Account) *Entry {
	return &Entry{
		OpType:    OpTypeIntent,
		Timestamp: time.Now().UnixMilli(),
		TxID:      txID,
		Identity:  account.Identity,
		AliasKey:  aliasKey,
		Account:   account.Clone(),
	}
}

// NewCommitEntry creates a COMMIT entry.
func NewCommitEntry(txID, identity string) *Entry {
	return &Entry{
		OpType:    OpTypeCommit,
		Timestamp: time.Now().UnixMilli(),
		TxID:      txID,
		Identity:  identity,
	}
}

// NewAbortEntry creates an ABORT entry.
func NewAbortEntry(txID, identity string) *Entry {
	return &Entry{
		OpType:    OpTypeAbort,
		Timestamp: time.Now().UnixMilli(),
		TxID:      txID,
		Identity:  identity,
	}
}

// Unresolved returns the intents that have neither a commit nor an abort,
// in log order.
func Unresolved(entries []*Entry) []*Entry {
	resolved := make(map[string]struct{})
	for _, e := range entries {
		if e.OpType == OpTypeCommit || e.OpType == OpTypeAbort {
			resolved[e.TxID] = struct{}{}
		}
	}

	var out []*Entry
	for _, e := range entries {
		if e.OpType != OpTypeIntent {
			continue
		}
		if _, ok := resolved[e.TxID]; !ok {
			out = append(out, e)
		}
	}
	return out
}
