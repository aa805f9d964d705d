// Package domain defines the core domain models for the account ledger.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling.
package domain

import (
	"math/bits"
	"strings"
)

// Account constraints.
const (
	MaxIdentityLength = 256
	MaxAliasLength    = 64
	MaxKeyIDLength    = 256
	MaxCodeLength     = 1024
)

// AccessKey is a delegated, allowance-capped spending capability.
// It has no identity outside the account that owns it.
type AccessKey struct {
	// Key identifies the access key within its account.
	// The empty key is the default "no delegation" entry.
	Key string `json:"key"`

	// Allowance is the remaining number of atomic units this key may debit.
	Allowance uint64 `json:"allowance"`

	// Code is an opaque permission descriptor interpreted by callers.
	Code string `json:"code"`
}

// Account is one ledger record.
type Account struct {
	// Identity is the primary key (public key). Immutable once created.
	Identity string `json:"public_key"`

	// Alias is the optional human-readable name, unique when non-empty.
	Alias string `json:"username"`

	// Balance is the spendable amount in atomic units.
	Balance uint64 `json:"balance"`

	// Locked is held funds maintained by external collaborators.
	Locked uint64 `json:"locked"`

	// Level is a permission tier interpreted by external policy.
	Level uint8 `json:"level"`

	// AccessKeys are the delegated keys. Index 0 is the default key.
	AccessKeys []AccessKey `json:"access_keys"`

	// Version is the optimistic lock version. 0 means never stored.
	Version uint64 `json:"version"`
}

// NewAccount creates a zero-balance account holding only the default key.
func NewAccount(identity string) *Account {
	return &Account{
		Identity: identity,
		AccessKeys: []AccessKey{
			{Key: "", Allowance: 0, Code: ""},
		},
	}
}

// IsZero reports whether the account is indistinguishable from a
// default-constructed value. Such records are treated as absent.
func (a *Account) IsZero() bool {
	return a == nil || (a.Identity == "" && a.Alias == "" && a.Balance == 0 &&
		a.Locked == 0 && a.Level == 0 && len(a.AccessKeys) == 0)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.AccessKeys != nil {
		c.AccessKeys = make([]AccessKey, len(a.AccessKeys))
		copy(c.AccessKeys, a.AccessKeys)
	}
	return &c
}

// Equal compares every field, including access key order.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.Identity != other.Identity || a.Alias != other.Alias ||
		a.Balance != other.Balance || a.Locked != other.Locked ||
		a.Level != other.Level || a.Version != other.Version ||
		len(a.AccessKeys) != len(other.AccessKeys) {
		return false
	}
	for i := range a.AccessKeys {
		if a.AccessKeys[i] != other.AccessKeys[i] {
			return false
		}
	}
	return true
}

// FindAccessKey returns the index of the access key with the given id.
// The default key ("") is never matched.
func (a *Account) FindAccessKey(key string) (int, bool) {
	if key == "" {
		return -1, false
	}
	for i := range a.AccessKeys {
		if a.AccessKeys[i].Key == key {
			return i, true
		}
	}
	return -1, false
}

// AddAccessKey appends a key with zero allowance.
func (a *Account) AddAccessKey(code, key string) error {
	if key == "" {
		return ErrInvalidArgument.WithDetails("access key id is required")
	}
	if len(key) > MaxKeyIDLength {
		return ErrInvalidArgument.WithDetailsf("access key id exceeds %d characters", MaxKeyIDLength)
	}
	if len(code) > MaxCodeLength {
		return ErrInvalidArgument.WithDetailsf("access key code exceeds %d characters", MaxCodeLength)
	}
	if _, ok := a.FindAccessKey(key); ok {
		return ErrAccessKeyConflict.WithDetails(key)
	}
	a.AccessKeys = append(a.AccessKeys, AccessKey{Key: key, Allowance: 0, Code: code})
	return nil
}

// Debit removes amount from the balance, or from the balance and the named
// access key's allowance together. On error the account is unchanged.
func (a *Account) Debit(amount uint64, accessKey string) error {
	if accessKey == "" {
		if amount > a.Balance {
			return ErrInsufficientBalance.WithDetailsf("balance %d, requested %d", a.Balance, amount)
		}
		a.Balance -= amount
		return nil
	}

	i, ok := a.FindAccessKey(accessKey)
	if !ok {
		return ErrAccessKeyNotFound.WithDetails(accessKey)
	}
	k := &a.AccessKeys[i]
	if amount > k.Allowance {
		return ErrInsufficientAllowance.WithDetailsf("allowance %d, requested %d", k.Allowance, amount)
	}
	if amount > a.Balance {
		return ErrInsufficientBalance.WithDetailsf("balance %d, requested %d", a.Balance, amount)
	}
	k.Allowance -= amount
	a.Balance -= amount
	return nil
}

// Credit adds amount to the balance, or to the balance and the named
// access key's allowance together. On error the account is unchanged.
func (a *Account) Credit(amount uint64, accessKey string) error {
	balance, carry := bits.Add64(a.Balance, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow.WithDetailsf("balance %d + %d", a.Balance, amount)
	}

	if accessKey == "" {
		a.Balance = balance
		return nil
	}

	i, ok := a.FindAccessKey(accessKey)
	if !ok {
		return ErrAccessKeyNotFound.WithDetails(accessKey)
	}
	allowance, carry := bits.Add64(a.AccessKeys[i].Allowance, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow.WithDetailsf("allowance %d + %d", a.AccessKeys[i].Allowance, amount)
	}
	a.AccessKeys[i].Allowance = allowance
	a.Balance = balance
	return nil
}

// BalanceUI returns the balance in display units.
func (a *Account) BalanceUI(p Precision) float64 {
	return p.ToDecimal(a.Balance)
}

// ValidateIdentity checks an identity (or alias) is usable as a storage key.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return ErrInvalidArgument.WithDetails("identity is required")
	}
	if len(identity) > MaxIdentityLength {
		return ErrInvalidArgument.WithDetailsf("identity exceeds %d characters", MaxIdentityLength)
	}
	if identity == "." || identity == ".." || strings.ContainsAny(identity, "/\\\x00") {
		return ErrInvalidArgument.WithDetailsf("identity %q contains path characters", identity)
	}
	return nil
}

// ValidateAlias checks an alias before assignment. Empty clears the alias.
func ValidateAlias(alias string) error {
	if len(alias) > MaxAliasLength {
		return ErrInvalidArgument.WithDetailsf("alias exceeds %d characters", MaxAliasLength)
	}
	if strings.ContainsRune(alias, '\x00') {
		return ErrInvalidArgument.WithDetails("alias contains NUL")
	}
	return nil
}

// TransferMode selects the direction of a transfer.
type TransferMode uint8

const (
	// Debit removes funds.
	Debit TransferMode = iota
	// Credit adds funds.
	Credit
)

// String returns "debit" or "credit".
func (m TransferMode) String() string {
	switch m {
	case Debit:
		return "debit"
	case Credit:
		return "credit"
	default:
		return "unknown"
	}
}

// ParseTransferMode parses "debit" or "credit".
func ParseTransferMode(s string) (TransferMode, error) {
	switch strings.ToLower(s) {
	case "debit":
		return Debit, nil
	case "credit":
		return Credit, nil
	}
	return 0, ErrInvalidArgument.WithDetailsf("unknown transfer mode %q", s)
}
