package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("AL-TEST-1000", "test message"),
			expected: "[AL-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("AL-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[AL-TEST-1001] test message: extra info",
		},
		{
			name:     "error with cause",
			err:      NewDomainError("AL-TEST-1002", "persist").WithDetails("pk1").WithCause(fmt.Errorf("disk full")),
			expected: "[AL-TEST-1002] persist: pk1: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("AL-TEST-1000", "message 1")
	err2 := NewDomainError("AL-TEST-1000", "message 2")
	err3 := NewDomainError("AL-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_WrappedCauseIsVisible(t *testing.T) {
	// PersistFailed must expose the underlying storage error to callers.
	err := ErrPersistFailed.WithCause(ErrIO.WithCause(fmt.Errorf("EACCES")))

	if !errors.Is(err, ErrPersistFailed) {
		t.Error("errors.Is(err, ErrPersistFailed) = false")
	}
	if !errors.Is(err, ErrIO) {
		t.Error("errors.Is(err, ErrIO) = false")
	}
	if errors.Is(err, ErrSerialize) {
		t.Error("errors.Is(err, ErrSerialize) = true")
	}
}

func TestDomainError_CopiesDoNotMutate(t *testing.T) {
	original := NewDomainError("AL-TEST-1000", "original message")
	_ = original.WithDetails("additional details")
	_ = original.WithCause(fmt.Errorf("root cause"))

	if original.Details != "" || original.Cause != nil {
		t.Errorf("original mutated: %+v", original)
	}

	d := original.WithDetailsf("id=%s", "pk1")
	if d.Details != "id=pk1" {
		t.Errorf("Details = %q, want %q", d.Details, "id=pk1")
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrAccountNotFound, "AL-ACCT-4040") {
		t.Error("IsDomainError should return true for matching code")
	}
	if IsDomainError(ErrAccountNotFound, "AL-ACCT-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if !IsDomainError(ErrAccountNotFound, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("regular error"), "AL-ACCT-4040") {
		t.Error("IsDomainError should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("wrapped: %w", ErrAccountNotFound)
	if !IsDomainError(wrapped, "AL-ACCT-4040") {
		t.Error("IsDomainError should work with wrapped errors")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrInsufficientBalance, "AL-FUND-4021"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrAliasTaken), "AL-ALIAS-4090"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrAccountNotFound, "AL-ACCT-4040"},
		{ErrCorruptRecord, "AL-ACCT-4220"},
		{ErrVersionConflict, "AL-ACCT-4091"},
		{ErrInsufficientBalance, "AL-FUND-4021"},
		{ErrInsufficientAllowance, "AL-FUND-4022"},
		{ErrBalanceOverflow, "AL-FUND-4221"},
		{ErrAccessKeyNotFound, "AL-AKEY-4040"},
		{ErrAccessKeyConflict, "AL-AKEY-4090"},
		{ErrAliasTaken, "AL-ALIAS-4090"},
		{ErrSerialize, "AL-STOR-5001"},
		{ErrIO, "AL-STOR-5002"},
		{ErrPersistFailed, "AL-STOR-5003"},
		{ErrInvalidArgument, "AL-ARG-1001"},
		{ErrInvalidPrecision, "AL-ARG-1002"},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
			if seen[tt.code] {
				t.Errorf("duplicate code %q", tt.code)
			}
			seen[tt.code] = true
		})
	}
}
