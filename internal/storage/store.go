package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/internal/storage/kv"
	"github.com/yndnr/acctledger/internal/storage/wal"
	"github.com/yndnr/acctledger/internal/telemetry/metric"
	"github.com/yndnr/acctledger/pkg/hashing"
	"github.com/yndnr/acctledger/pkg/keylock"
)

// Key layout shared by every backend.
const (
	AccountsNamespace = "accounts"
	AliasNamespace    = "usernames"
	AccountExt        = ".account"
	AliasExt          = ".uname"
)

// ErrIntentUnresolved marks a failed write whose intent could not be
// aborted in the WAL.
var ErrIntentUnresolved = errors.New("storage: intent left unresolved")

// Issue reasons reported by VerifyAliasIndex.
const (
	IssueDangling = "dangling"
	IssueStale    = "stale"
)

// AliasIssue is one index entry that does not resolve.
type AliasIssue struct {
	Key      string `json:"key" yaml:"key"`
	Identity string `json:"identity" yaml:"identity"`
	Reason   string `json:"reason" yaml:"reason"`
}

// AliasReport summarizes a VerifyAliasIndex run.
type AliasReport struct {
	Checked  int          `json:"checked" yaml:"checked"`
	Issues   []AliasIssue `json:"issues" yaml:"issues"`
	Repaired int          `json:"repaired" yaml:"repaired"`
}

// AccountStore persists account records and maintains the alias index.
//
// Mutations of one identity are serialized by a per-identity lock and
// checked against the stored version. When a WAL is attached, every Put
// is bracketed by intent and commit frames so an interrupted two-file
// write can be finished on recovery.
type AccountStore struct {
	backend kv.Backend
	hash    hashing.Func
	wal     *wal.Writer
	locks   *keylock.Table

	// gate is held shared from intent to commit and exclusively by
	// checkpoints, so a rotated segment never holds an open intent.
	gate sync.RWMutex

	logger  *slog.Logger
	metrics *metric.Ledger
}

// StoreOption configures the AccountStore.
type StoreOption func(*AccountStore)

// WithWAL attaches an intent log.
func WithWAL(w *wal.Writer) StoreOption {
	return func(s *AccountStore) {
		s.wal = w
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *AccountStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreMetrics sets the metrics sink.
func WithStoreMetrics(m *metric.Ledger) StoreOption {
	return func(s *AccountStore) {
		s.metrics = m
	}
}

// WithLockTable shares a lock table with other components.
func WithLockTable(t *keylock.Table) StoreOption {
	return func(s *AccountStore) {
		if t != nil {
			s.locks = t
		}
	}
}

// NewAccountStore creates a store over backend. A nil hash selects blake2b.
func NewAccountStore(backend kv.Backend, hash hashing.Func, opts ...StoreOption) *AccountStore {
	if hash == nil {
		hash = hashing.Blake2b
	}
	s := &AccountStore{
		backend: backend,
		hash:    hash,
		locks:   keylock.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccountKey returns the backend key of an identity's record.
func AccountKey(identity string) string {
	return AccountsNamespace + "/" + identity + AccountExt
}

// AliasKey returns the backend key of an alias index entry.
func (s *AccountStore) AliasKey(alias string) string {
	return AliasNamespace + "/" + s.hash(alias) + AliasExt
}

func identityLockKey(identity string) string {
	return "acct:" + identity
}

func aliasLockKey(aliasKey string) string {
	return "alias:" + aliasKey
}

// Get loads the record for identity.
func (s *AccountStore) Get(ctx context.Context, identity string) (*domain.Account, error) {
	if identity == "" {
		return nil, domain.ErrAccountNotFound.WithDetails("empty identity")
	}
	if err := domain.ValidateIdentity(identity); err != nil {
		return nil, domain.ErrAccountNotFound.WithDetails(identity).WithCause(err)
	}

	data, err := s.backend.Get(ctx, AccountKey(identity))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, domain.ErrAccountNotFound.WithDetails(identity)
		}
		return nil, domain.ErrIO.WithDetails(identity).WithCause(err)
	}
	return decodeAccount(identity, data)
}

// GetByAlias resolves alias through the index. An entry whose target is
// missing, unreadable or no longer holds the alias is reported as not found.
func (s *AccountStore) GetByAlias(ctx context.Context, alias string) (*domain.Account, error) {
	if alias == "" {
		return nil, domain.ErrAccountNotFound.WithDetails("empty alias")
	}

	data, err := s.backend.Get(ctx, s.AliasKey(alias))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, domain.ErrAccountNotFound.WithDetailsf("alias %q", alias)
		}
		return nil, domain.ErrIO.WithDetailsf("alias %q", alias).WithCause(err)
	}

	identity := string(data)
	acc, err := s.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrCorruptRecord) {
			s.metrics.AliasStale()
			s.logger.Debug("alias index entry is dangling", "alias", alias, "identity", identity, "error", err)
			return nil, domain.ErrAccountNotFound.WithDetailsf("alias %q", alias)
		}
		return nil, err
	}
	if acc.Alias != alias {
		s.metrics.AliasStale()
		s.logger.Debug("alias index entry is stale", "alias", alias, "identity", identity, "current_alias", acc.Alias)
		return nil, domain.ErrAccountNotFound.WithDetailsf("alias %q", alias)
	}
	return acc, nil
}

// Put stores acc if acc.Version matches the stored version, then advances
// acc.Version. A new or changed non-empty alias must not be held by
// another account (ErrAliasTaken). The alias index entry is written before
// the record when an existing record's alias changes to a non-empty value.
//
// A failed write logs an abort for its intent. If that abort cannot be
// logged either, the error also matches ErrIntentUnresolved: the intent
// stays in the log and the next Recover applies the write.
func (s *AccountStore) Put(ctx context.Context, acc *domain.Account) error {
	if acc == nil {
		return domain.ErrInvalidArgument.WithDetails("account is nil")
	}
	if err := domain.ValidateIdentity(acc.Identity); err != nil {
		return err
	}

	unlock := s.locks.Lock(identityLockKey(acc.Identity))
	defer unlock()

	return s.putLocked(ctx, acc, false)
}

// Update loads identity, applies fn and stores the result, all under the
// identity lock. If fn fails nothing is written.
func (s *AccountStore) Update(ctx context.Context, identity string, fn func(*domain.Account) error) (*domain.Account, error) {
	if identity == "" {
		return nil, domain.ErrAccountNotFound.WithDetails("empty identity")
	}

	unlock := s.locks.Lock(identityLockKey(identity))
	defer unlock()

	acc, err := s.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := fn(acc); err != nil {
		return nil, err
	}
	if acc.Identity != identity {
		return nil, domain.ErrInvalidArgument.WithDetails("identity is immutable")
	}
	if err := s.putLocked(ctx, acc, false); err != nil {
		return nil, err
	}
	return acc, nil
}

// RestoreAccount overwrites the stored record with acc, keeping the
// stored version monotonic and always indexing a non-empty alias.
func (s *AccountStore) RestoreAccount(ctx context.Context, acc *domain.Account) error {
	if acc == nil {
		return domain.ErrInvalidArgument.WithDetails("account is nil")
	}
	if err := domain.ValidateIdentity(acc.Identity); err != nil {
		return err
	}

	unlock := s.locks.Lock(identityLockKey(acc.Identity))
	defer unlock()

	prior, err := s.priorLocked(ctx, acc.Identity)
	if err != nil {
		return err
	}
	restored := acc.Clone()
	restored.Version = 0
	if prior != nil {
		restored.Version = prior.Version
	}
	if err := s.putLocked(ctx, restored, true); err != nil {
		return err
	}
	acc.Version = restored.Version
	return nil
}

// priorLocked loads the stored record for a write. A corrupt record is
// treated as absent so it can be overwritten.
func (s *AccountStore) priorLocked(ctx context.Context, identity string) (*domain.Account, error) {
	prior, err := s.Get(ctx, identity)
	switch {
	case err == nil:
		return prior, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil, nil
	case errors.Is(err, domain.ErrCorruptRecord):
		s.logger.Warn("overwriting corrupt account record", "identity", identity, "error", err)
		return nil, nil
	default:
		return nil, err
	}
}

func (s *AccountStore) putLocked(ctx context.Context, acc *domain.Account, indexAlways bool) error {
	start := time.Now()
	defer s.metrics.ObservePut(start)

	if err := domain.ValidateAlias(acc.Alias); err != nil {
		return err
	}

	prior, err := s.priorLocked(ctx, acc.Identity)
	if err != nil {
		return err
	}

	var stored uint64
	if prior != nil {
		stored = prior.Version
	}
	if acc.Version != stored {
		s.metrics.VersionConflict()
		return domain.ErrVersionConflict.WithDetailsf("%s: have version %d, stored %d", acc.Identity, acc.Version, stored)
	}

	// Every new or changed alias is checked against the index; only a
	// rename of a stored, non-default record writes the entry.
	var aliasKey string
	if acc.Alias != "" && (indexAlways || prior == nil || prior.Alias != acc.Alias) {
		claimKey := s.AliasKey(acc.Alias)

		unlockAlias := s.locks.Lock(aliasLockKey(claimKey))
		defer unlockAlias()

		if err := s.checkAliasFree(ctx, claimKey, acc); err != nil {
			return err
		}
		if indexAlways || (prior != nil && !prior.IsZero()) {
			aliasKey = claimKey
		}
	}

	next := acc.Clone()
	next.Version = stored + 1
	data, err := marshalAccount(next)
	if err != nil {
		s.metrics.PersistFailed(metric.StageSerialize)
		s.logger.Error("serialize account failed", "identity", acc.Identity, "error", err)
		return domain.ErrSerialize.WithDetails(acc.Identity).WithCause(err)
	}

	var txID string
	if s.wal != nil {
		s.gate.RLock()
		defer s.gate.RUnlock()

		txID = wal.NewTxID()
		if err := s.wal.Append(wal.NewIntentEntry(txID, aliasKey, next)); err != nil {
			s.metrics.PersistFailed(metric.StageWAL)
			return domain.ErrIO.WithDetailsf("log intent for %s", acc.Identity).WithCause(err)
		}
	}

	if aliasKey != "" {
		if err := s.backend.Set(ctx, aliasKey, []byte(acc.Identity)); err != nil {
			s.metrics.PersistFailed(metric.StageAliasIndex)
			return domain.ErrIO.WithDetailsf("alias index for %s", acc.Identity).
				WithCause(s.abort(txID, acc.Identity, err))
		}
		s.metrics.AliasIndexWritten()
	}

	if err := s.backend.Set(ctx, AccountKey(acc.Identity), data); err != nil {
		s.metrics.PersistFailed(metric.StageRecord)
		return domain.ErrIO.WithDetailsf("record for %s", acc.Identity).
			WithCause(s.abort(txID, acc.Identity, err))
	}

	if txID != "" {
		if err := s.wal.Append(wal.NewCommitEntry(txID, acc.Identity)); err != nil {
			// Replay finds the record already at this version and skips it.
			s.logger.Warn("log commit failed", "identity", acc.Identity, "tx_id", txID, "error", err)
		}
	}

	acc.Version = next.Version
	return nil
}

// checkAliasFree rejects an alias whose index entry points at another
// identity that still holds it. Must be called with the alias lock held.
func (s *AccountStore) checkAliasFree(ctx context.Context, aliasKey string, acc *domain.Account) error {
	data, err := s.backend.Get(ctx, aliasKey)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil
		}
		return domain.ErrIO.WithDetailsf("alias %q", acc.Alias).WithCause(err)
	}

	owner := string(data)
	if owner == acc.Identity {
		return nil
	}
	other, err := s.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrCorruptRecord) {
			return nil
		}
		return err
	}
	if other.Alias == acc.Alias {
		return domain.ErrAliasTaken.WithDetailsf("%q belongs to %s", acc.Alias, owner)
	}
	return nil
}

// abort logs an abort frame for txID and returns cause. If the frame
// cannot be logged the intent stays unresolved and is applied by the next
// Recover, so the returned error says so.
func (s *AccountStore) abort(txID, identity string, cause error) error {
	if txID == "" {
		return cause
	}
	if err := s.wal.Append(wal.NewAbortEntry(txID, identity)); err != nil {
		s.logger.Error("log abort failed, intent will be replayed on recovery",
			"identity", identity, "tx_id", txID, "error", err)
		return errors.Join(cause, fmt.Errorf("%w: log abort: %w", ErrIntentUnresolved, err))
	}
	return cause
}

// Scan calls fn for every readable record until fn returns false.
// Unreadable records are logged and skipped.
func (s *AccountStore) Scan(ctx context.Context, fn func(*domain.Account) bool) error {
	err := s.backend.Scan(ctx, AccountsNamespace+"/", func(key string, value []byte) bool {
		identity, ok := identityFromKey(key)
		if !ok {
			return true
		}
		acc, err := decodeAccount(identity, value)
		if err != nil {
			if !errors.Is(err, domain.ErrAccountNotFound) {
				s.logger.Warn("skipping unreadable account record", "key", key, "error", err)
			}
			return true
		}
		return fn(acc)
	})
	if err != nil {
		return domain.ErrIO.WithDetails("scan accounts").WithCause(err)
	}
	return nil
}

// All returns every readable record.
func (s *AccountStore) All(ctx context.Context) ([]*domain.Account, error) {
	var out []*domain.Account
	err := s.Scan(ctx, func(acc *domain.Account) bool {
		out = append(out, acc)
		return true
	})
	return out, err
}

// VerifyAliasIndex checks every alias index entry against the record it
// points at. With repair set, dangling and stale entries are deleted.
func (s *AccountStore) VerifyAliasIndex(ctx context.Context, repair bool) (*AliasReport, error) {
	report := &AliasReport{}

	type entry struct{ key, identity string }
	var entries []entry
	err := s.backend.Scan(ctx, AliasNamespace+"/", func(key string, value []byte) bool {
		if strings.HasSuffix(key, AliasExt) {
			entries = append(entries, entry{key: key, identity: string(value)})
		}
		return true
	})
	if err != nil {
		return nil, domain.ErrIO.WithDetails("scan alias index").WithCause(err)
	}

	for _, e := range entries {
		report.Checked++
		reason, err := s.classify(ctx, e.key, e.identity)
		if err != nil {
			return report, err
		}
		if reason != "" {
			report.Issues = append(report.Issues, AliasIssue{Key: e.key, Identity: e.identity, Reason: reason})
		}
	}

	if !repair {
		return report, nil
	}

	for _, issue := range report.Issues {
		removed, err := s.repairEntry(ctx, issue.Key)
		if err != nil {
			s.metrics.AliasRepaired(report.Repaired)
			return report, err
		}
		if removed {
			report.Repaired++
		}
	}
	s.metrics.AliasRepaired(report.Repaired)
	if report.Repaired > 0 {
		s.logger.Info("alias index repaired", "removed", report.Repaired, "checked", report.Checked)
	}
	return report, nil
}

// classify returns "" for a healthy entry, or the reason it does not resolve.
func (s *AccountStore) classify(ctx context.Context, key, identity string) (string, error) {
	acc, err := s.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrCorruptRecord) {
			return IssueDangling, nil
		}
		return "", err
	}
	if acc.Alias == "" || s.AliasKey(acc.Alias) != key {
		return IssueStale, nil
	}
	return "", nil
}

// repairEntry re-checks key under its alias lock and deletes it if it
// still does not resolve.
func (s *AccountStore) repairEntry(ctx context.Context, key string) (bool, error) {
	unlock := s.locks.Lock(aliasLockKey(key))
	defer unlock()

	data, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return false, nil
		}
		return false, domain.ErrIO.WithDetails(key).WithCause(err)
	}
	reason, err := s.classify(ctx, key, string(data))
	if err != nil || reason == "" {
		return false, err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return false, domain.ErrIO.WithDetails(key).WithCause(err)
	}
	return true, nil
}

// applyIntent rolls an interrupted Put forward. Intents older than the
// stored record are skipped.
func (s *AccountStore) applyIntent(ctx context.Context, e *wal.Entry) (bool, error) {
	if e.Account == nil {
		return false, wal.ErrCorruptedEntry
	}
	identity := e.Account.Identity

	unlock := s.locks.Lock(identityLockKey(identity))
	defer unlock()

	prior, err := s.priorLocked(ctx, identity)
	if err != nil {
		return false, err
	}
	if prior != nil && prior.Version >= e.Account.Version {
		return false, nil
	}

	data, err := marshalAccount(e.Account)
	if err != nil {
		return false, domain.ErrSerialize.WithDetails(identity).WithCause(err)
	}
	if e.AliasKey != "" {
		if err := s.backend.Set(ctx, e.AliasKey, []byte(identity)); err != nil {
			return false, domain.ErrIO.WithDetailsf("alias index for %s", identity).WithCause(err)
		}
	}
	if err := s.backend.Set(ctx, AccountKey(identity), data); err != nil {
		return false, domain.ErrIO.WithDetailsf("record for %s", identity).WithCause(err)
	}
	return true, nil
}

// marshalAccount encodes acc, retrying once.
func marshalAccount(acc *domain.Account) ([]byte, error) {
	data, err := json.Marshal(acc)
	if err == nil {
		return data, nil
	}
	return json.Marshal(acc)
}

func decodeAccount(identity string, data []byte) (*domain.Account, error) {
	var acc domain.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, domain.ErrCorruptRecord.WithDetails(identity).WithCause(err)
	}
	if acc.IsZero() {
		return nil, domain.ErrAccountNotFound.WithDetails(identity)
	}
	if acc.Identity != identity {
		return nil, domain.ErrCorruptRecord.WithDetailsf("%s: record holds identity %q", identity, acc.Identity)
	}
	return &acc, nil
}

func identityFromKey(key string) (string, bool) {
	name, ok := strings.CutPrefix(key, AccountsNamespace+"/")
	if !ok {
		return "", false
	}
	return strings.CutSuffix(name, AccountExt)
}
