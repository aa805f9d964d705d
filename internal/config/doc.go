// Package config provides ledger configuration.
//
//   - spec.go: LedgerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
