// Package domain defines the core domain models for the account ledger.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - Account: per-identity ledger record with balance and access keys
//   - AccessKey: delegated, allowance-capped spending capability
//   - Precision: atomic unit <-> display amount conversion
//   - Errors: coded domain errors shared by service and storage
//
// Balance and allowance arithmetic lives on Account (Debit, Credit) so that
// every mutation checks underflow and overflow before changing any field.
package domain
