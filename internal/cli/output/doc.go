// Package output renders ledgerctl results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: table rendering with wide mode support
//   - json.go, yaml.go: machine-readable output
//   - spinner.go: progress animation for long operations
package output
