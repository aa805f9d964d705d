// Package service provides the ledger operations.
//
// LedgerService is the only sanctioned way to change a balance:
//
//   - OpenOrCreate: load by identity, then by alias, else create
//   - Transfer: debit or credit, optionally through an access key
//   - SetAlias and GrantAccessKey: record maintenance
//
// Storage is reached through AccountRepository. Each Transfer runs as one
// read-modify-write under the repository's per-identity lock, so concurrent
// transfers on the same account never lose updates.
package service
