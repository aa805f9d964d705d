package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acctledger"

// Transfer results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Persistence stages.
const (
	StageAliasIndex = "alias_index"
	StageRecord     = "record"
	StageSerialize  = "serialize"
	StageWAL        = "wal"
)

// Ledger holds all ledger metrics.
type Ledger struct {
	TransfersTotal     *prometheus.CounterVec
	TransferAmount     *prometheus.CounterVec
	AccountsCreated    prometheus.Counter
	PersistFailures    *prometheus.CounterVec
	VersionConflicts   prometheus.Counter
	AliasIndexWrites   prometheus.Counter
	AliasStaleLookups  prometheus.Counter
	AliasIndexRepaired prometheus.Counter
	WALReplayed        prometheus.Counter
	PutDuration        prometheus.Histogram
}

// NewLedger creates the ledger metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		TransfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers by mode and result",
		}, []string{"mode", "result"}),
		TransferAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_amount_atomic_total",
			Help:      "Atomic units moved by successful transfers",
		}, []string{"mode"}),
		AccountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_created_total",
			Help:      "Accounts created by open-or-create",
		}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Failed writes by stage",
		}, []string{"stage"}),
		VersionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "version_conflicts_total",
			Help:      "Puts rejected by the version check",
		}),
		AliasIndexWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alias_index",
			Name:      "writes_total",
			Help:      "Alias index entries written",
		}),
		AliasStaleLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alias_index",
			Name:      "stale_lookups_total",
			Help:      "Alias lookups that hit a dangling or stale entry",
		}),
		AliasIndexRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alias_index",
			Name:      "repaired_total",
			Help:      "Dangling or stale alias index entries removed",
		}),
		WALReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wal",
			Name:      "intents_replayed_total",
			Help:      "Unresolved intents re-applied during recovery",
		}),
		PutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "put_duration_seconds",
			Help:      "Account put latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TransfersTotal,
			m.TransferAmount,
			m.AccountsCreated,
			m.PersistFailures,
			m.VersionConflicts,
			m.AliasIndexWrites,
			m.AliasStaleLookups,
			m.AliasIndexRepaired,
			m.WALReplayed,
			m.PutDuration,
		)
	}
	return m
}

// ObserveTransfer records one transfer attempt.
func (m *Ledger) ObserveTransfer(mode, result string, amount uint64) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(mode, result).Inc()
	if result == ResultOK {
		m.TransferAmount.WithLabelValues(mode).Add(float64(amount))
	}
}

// AccountCreated counts a new account.
func (m *Ledger) AccountCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}

// PersistFailed counts a failed write at the given stage.
func (m *Ledger) PersistFailed(stage string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(stage).Inc()
}

// VersionConflict counts a rejected stale put.
func (m *Ledger) VersionConflict() {
	if m == nil {
		return
	}
	m.VersionConflicts.Inc()
}

// AliasIndexWritten counts an alias index write.
func (m *Ledger) AliasIndexWritten() {
	if m == nil {
		return
	}
	m.AliasIndexWrites.Inc()
}

// AliasStale counts a lookup that found a dangling or stale entry.
func (m *Ledger) AliasStale() {
	if m == nil {
		return
	}
	m.AliasStaleLookups.Inc()
}

// AliasRepaired counts removed index entries.
func (m *Ledger) AliasRepaired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AliasIndexRepaired.Add(float64(n))
}

// IntentReplayed counts one intent re-applied during recovery.
func (m *Ledger) IntentReplayed() {
	if m == nil {
		return
	}
	m.WALReplayed.Inc()
}

// ObservePut records put latency since start.
func (m *Ledger) ObservePut(start time.Time) {
	if m == nil {
		return
	}
	m.PutDuration.Observe(time.Since(start).Seconds())
}
