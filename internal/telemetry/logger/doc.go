// Package logger builds the process logger.
//
//   - logger.go: slog handler construction and level control
//   - context.go: request ids carried in context
//   - redact.go: sensitive attribute redaction
//
// Components receive a *slog.Logger by injection and fall back to
// slog.Default(); this package only decides how that logger writes.
package logger
