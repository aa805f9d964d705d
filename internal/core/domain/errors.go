// Package domain defines the core domain models for the account ledger.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a ledger error with a structured error code.
// Codes follow the format AL-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "AL-ACCT-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Account Errors (ACCT)
// ============================================================================

var (
	// ErrAccountNotFound indicates no record exists for the identity or alias.
	ErrAccountNotFound = NewDomainError("AL-ACCT-4040", "account not found")

	// ErrCorruptRecord indicates a stored record exists but cannot be decoded.
	ErrCorruptRecord = NewDomainError("AL-ACCT-4220", "corrupt account record")

	// ErrVersionConflict indicates the record changed since it was loaded.
	ErrVersionConflict = NewDomainError("AL-ACCT-4091", "account version conflict, reload and retry")
)

// ============================================================================
// Funds Errors (FUND)
// ============================================================================

var (
	// ErrInsufficientBalance indicates a debit larger than the balance.
	ErrInsufficientBalance = NewDomainError("AL-FUND-4021", "insufficient balance")

	// ErrInsufficientAllowance indicates a debit larger than the access key allowance.
	ErrInsufficientAllowance = NewDomainError("AL-FUND-4022", "insufficient allowance")

	// ErrBalanceOverflow indicates a credit would wrap a 64-bit counter.
	ErrBalanceOverflow = NewDomainError("AL-FUND-4221", "credit would overflow")
)

// ============================================================================
// Access Key Errors (AKEY)
// ============================================================================

var (
	// ErrAccessKeyNotFound indicates the account holds no such access key.
	ErrAccessKeyNotFound = NewDomainError("AL-AKEY-4040", "access key not found")

	// ErrAccessKeyConflict indicates the access key id is already present.
	ErrAccessKeyConflict = NewDomainError("AL-AKEY-4090", "access key already exists")
)

// ============================================================================
// Alias Errors (ALIAS)
// ============================================================================

var (
	// ErrAliasTaken indicates the alias already resolves to another identity.
	ErrAliasTaken = NewDomainError("AL-ALIAS-4090", "alias already taken")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrSerialize indicates the record could not be encoded.
	ErrSerialize = NewDomainError("AL-STOR-5001", "serialize account failed")

	// ErrIO indicates a file or engine read/write failure.
	ErrIO = NewDomainError("AL-STOR-5002", "storage io failed")

	// ErrPersistFailed wraps an ErrIO or ErrSerialize raised while saving.
	ErrPersistFailed = NewDomainError("AL-STOR-5003", "persist account failed")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("AL-ARG-1001", "invalid argument")

	// ErrInvalidPrecision indicates decimal places outside the safe range.
	ErrInvalidPrecision = NewDomainError("AL-ARG-1002", "invalid decimal precision")
)
