package wal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/yndnr/acctledger/internal/core/domain"
)

type wirePayload struct {
	Timestamp int64           `json:"ts"`
	TxID      string          `json:"tx"`
	Identity  string          `json:"id"`
	AliasKey  string          `json:"alias_key,omitempty"`
	Account   *domain.Account `json:"account,omitempty"`
}

func encodeEntryFrame(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("wal: entry is nil")
	}
	switch e.OpType {
	case OpTypeIntent:
		if e.Account == nil {
			return nil, fmt.Errorf("wal: intent %s has no account", e.TxID)
		}
	case OpTypeCommit, OpTypeAbort:
	default:
		return nil, ErrInvalidEntryType
	}
	if e.TxID == "" {
		return nil, fmt.Errorf("wal: entry has no tx id")
	}

	payload, err := json.Marshal(wirePayload{
		Timestamp: e.Timestamp,
		TxID:      e.TxID,
		Identity:  e.Identity,
		AliasKey:  e.AliasKey,
		Account:   e.Account,
	})
	if err != nil {
		return nil, fmt.Errorf("wal: marshal payload: %w", err)
	}

	body := make([]byte, 0, 1+len(payload))
	body = append(body, byte(e.OpType))
	body = append(body, payload...)

	// Length = CRC(4) + Type(1) + Payload.
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(4+len(body)))
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

func decodeEntryFrame(frame []byte) (*Entry, error) {
	// Frame layout: [crc32:4][type:1][payload...]
	if len(frame) < 5 {
		return nil, ErrCorruptedEntry
	}

	body := frame[4:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(frame[:4]) {
		return nil, ErrChecksumMismatch
	}

	op := OpType(body[0])
	switch op {
	case OpTypeIntent, OpTypeCommit, OpTypeAbort:
	default:
		return nil, ErrInvalidEntryType
	}

	var p wirePayload
	if err := json.Unmarshal(body[1:], &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedEntry, err)
	}
	if op == OpTypeIntent && p.Account == nil {
		return nil, fmt.Errorf("%w: intent %s has no account", ErrCorruptedEntry, p.TxID)
	}

	return &Entry{
		OpType:    op,
		Timestamp: p.Timestamp,
		TxID:      p.TxID,
		Identity:  p.Identity,
		AliasKey:  p.AliasKey,
		Account:   p.Account,
	}, nil
}
