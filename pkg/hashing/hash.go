package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Func maps a string to a deterministic hex digest.
type Func func(s string) string

// Algorithm names accepted by ByName.
const (
	AlgBlake2b = "blake2b"
	AlgSHA256  = "sha256"
)

// Blake2b returns the hex BLAKE2b-256 digest of s.
func Blake2b(s string) string {
	h := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// SHA256 returns the hex SHA-256 digest of s.
func SHA256(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// ByName resolves an algorithm name. The empty name selects BLAKE2b.
func ByName(name string) (Func, error) {
	switch strings.ToLower(name) {
	case "", AlgBlake2b:
		return Blake2b, nil
	case AlgSHA256:
		return SHA256, nil
	default:
		return nil, fmt.Errorf("hashing: unknown algorithm %q", name)
	}
}
