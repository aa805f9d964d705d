// Package metric provides Prometheus metrics for the ledger.
//
// Metrics include:
//
//   - Transfer counters by mode and result
//   - Persistence failures by stage
//   - Alias index writes, stale lookups and repairs
//   - WAL intents replayed at startup
//   - Put latency
//
// All methods on a nil *Ledger are no-ops, so components can run without
// metrics wired.
package metric
