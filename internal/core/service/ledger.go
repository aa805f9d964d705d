package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/internal/telemetry/logger"
	"github.com/yndnr/acctledger/internal/telemetry/metric"
)

// DefaultDecimalPlaces is the precision used when none is configured.
const DefaultDecimalPlaces = 8

// AccountRepository defines the storage interface for account operations.
type AccountRepository interface {
	// Get retrieves an account by identity.
	Get(ctx context.Context, identity string) (*domain.Account, error)

	// GetByAlias resolves an alias through the alias index.
	GetByAlias(ctx context.Context, alias string) (*domain.Account, error)

	// Put stores the account if its version matches the stored one and
	// advances account.Version.
	Put(ctx context.Context, account *domain.Account) error

	// Update loads, mutates with fn and stores an account under the
	// identity lock. Nothing is written if fn fails.
	Update(ctx context.Context, identity string, fn func(*domain.Account) error) (*domain.Account, error)
}

// LedgerService is the only mutation path for ledger accounts.
type LedgerService struct {
	repo      AccountRepository
	precision domain.Precision
	logger    *slog.Logger
	metrics   *metric.Ledger
}

// Option configures the LedgerService.
type Option func(*LedgerService)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metric.Ledger) Option {
	return func(s *LedgerService) {
		s.metrics = m
	}
}

// WithPrecision sets the display precision.
func WithPrecision(p domain.Precision) Option {
	return func(s *LedgerService) {
		s.precision = p
	}
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(repo AccountRepository, opts ...Option) *LedgerService {
	s := &LedgerService{
		repo:      repo,
		precision: domain.MustPrecision(DefaultDecimalPlaces),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Precision returns the display precision.
func (s *LedgerService) Precision() domain.Precision {
	return s.precision
}

// ============================================================================
// Open / Lookup
// ============================================================================

// OpenOrCreate returns the account for identity, resolving it as an alias
// if no record exists, and creating it otherwise.
//
// The returned account is never nil. A non-nil error means the new account
// could not be stored and exists only in memory.
//
// A record that exists but cannot be decoded is replaced by a new, empty
// account; its balance and keys are lost. This is logged at error level.
func (s *LedgerService) OpenOrCreate(ctx context.Context, identity string) (*domain.Account, error) {
	log := logger.L(ctx, s.logger)

	acc, err := s.repo.Get(ctx, identity)
	if err == nil {
		return acc, nil
	}
	corrupt := errors.Is(err, domain.ErrCorruptRecord)
	if !corrupt && !errors.Is(err, domain.ErrAccountNotFound) {
		log.Warn("load account failed, trying alias", "identity", identity, "error", err)
	}

	if acc, err := s.repo.GetByAlias(ctx, identity); err == nil {
		return acc, nil
	}

	acc = domain.NewAccount(identity)
	if err := domain.ValidateIdentity(identity); err != nil {
		return acc, err
	}
	if corrupt {
		log.Error("replacing corrupt account record with an empty account",
			"identity", identity, "error", err)
	}

	if err := s.repo.Put(ctx, acc); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Created concurrently.
			if existing, gerr := s.repo.Get(ctx, identity); gerr == nil {
				return existing, nil
			}
		}
		log.Error("account created in memory only", "identity", identity, "error", err)
		return acc, domain.ErrPersistFailed.WithDetails(identity).WithCause(err)
	}

	s.metrics.AccountCreated()
	log.Info("account created", "identity", identity)
	return acc, nil
}

// Lookup returns the account for an identity or, failing that, an alias.
func (s *LedgerService) Lookup(ctx context.Context, identityOrAlias string) (*domain.Account, error) {
	acc, err := s.repo.Get(ctx, identityOrAlias)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	return s.repo.GetByAlias(ctx, identityOrAlias)
}

// BalanceUI returns the balance of identityOrAlias in display units.
func (s *LedgerService) BalanceUI(ctx context.Context, identityOrAlias string) (float64, error) {
	acc, err := s.Lookup(ctx, identityOrAlias)
	if err != nil {
		return 0, err
	}
	return acc.BalanceUI(s.precision), nil
}

// ============================================================================
// Transfer
// ============================================================================

// Transfer debits or credits amount atomic units on identity. A non-empty
// accessKey moves the named key's allowance together with the balance.
//
// Rejections (insufficient funds, unknown key, overflow) persist nothing.
// Storage failures are returned as ErrPersistFailed.
func (s *LedgerService) Transfer(ctx context.Context, identity string, amount uint64, mode domain.TransferMode, accessKey string) error {
	log := logger.L(ctx, s.logger).With(
		"transfer_id", ulid.Make().String(),
		"identity", identity,
		"mode", mode.String(),
		"amount", amount,
	)
	if accessKey != "" {
		log = log.With("access_key", accessKey)
	}

	if mode != domain.Debit && mode != domain.Credit {
		return domain.ErrInvalidArgument.WithDetailsf("transfer mode %d", mode)
	}

	_, err := s.repo.Update(ctx, identity, func(acc *domain.Account) error {
		if acc.IsZero() || acc.Identity == "" {
			return domain.ErrAccountNotFound.WithDetails(identity)
		}
		if mode == domain.Debit {
			return acc.Debit(amount, accessKey)
		}
		return acc.Credit(amount, accessKey)
	})

	switch {
	case err == nil:
		s.metrics.ObserveTransfer(mode.String(), metric.ResultOK, amount)
		log.Debug("transfer applied")
		return nil

	case errors.Is(err, domain.ErrAccountNotFound):
		s.metrics.ObserveTransfer(mode.String(), metric.ResultNotFound, amount)
		return err

	case errors.Is(err, domain.ErrCorruptRecord):
		s.metrics.ObserveTransfer(mode.String(), metric.ResultNotFound, amount)
		log.Warn("transfer on unreadable record", "error", err)
		return domain.ErrAccountNotFound.WithDetails(identity).WithCause(err)

	case isRejection(err):
		s.metrics.ObserveTransfer(mode.String(), metric.ResultRejected, amount)
		log.Debug("transfer rejected", "error", err)
		return err

	default:
		s.metrics.ObserveTransfer(mode.String(), metric.ResultError, amount)
		log.Error("transfer not persisted", "error", err)
		return domain.ErrPersistFailed.WithDetails(identity).WithCause(err)
	}
}

// isRejection reports whether err is a business-rule refusal.
func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrInsufficientBalance,
		domain.ErrInsufficientAllowance,
		domain.ErrAccessKeyNotFound,
		domain.ErrBalanceOverflow,
		domain.ErrInvalidArgument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ============================================================================
// Alias / Access Keys
// ============================================================================

// SetAlias assigns alias to acc and stores it. On failure acc keeps its
// previous alias. acc must be the latest stored version.
func (s *LedgerService) SetAlias(ctx context.Context, acc *domain.Account, alias string) error {
	if acc == nil {
		return domain.ErrInvalidArgument.WithDetails("account is nil")
	}
	if err := domain.ValidateAlias(alias); err != nil {
		return err
	}

	prev := acc.Alias
	acc.Alias = alias
	if err := s.repo.Put(ctx, acc); err != nil {
		acc.Alias = prev
		return s.persistError(ctx, "set alias", acc.Identity, err)
	}

	logger.L(ctx, s.logger).Info("alias set", "identity", acc.Identity, "alias", alias, "previous", prev)
	return nil
}

// GrantAccessKey appends an access key with zero allowance and stores acc.
// Funding the key is a separate Credit transfer.
func (s *LedgerService) GrantAccessKey(ctx context.Context, acc *domain.Account, code, key string) error {
	if acc == nil {
		return domain.ErrInvalidArgument.WithDetails("account is nil")
	}
	if err := acc.AddAccessKey(code, key); err != nil {
		return err
	}
	if err := s.repo.Put(ctx, acc); err != nil {
		acc.AccessKeys = acc.AccessKeys[:len(acc.AccessKeys)-1]
		return s.persistError(ctx, "grant access key", acc.Identity, err)
	}

	logger.L(ctx, s.logger).Info("access key granted", "identity", acc.Identity, "access_key", key)
	return nil
}

// persistError passes caller-actionable Put errors through and wraps
// storage failures in ErrPersistFailed.
func (s *LedgerService) persistError(ctx context.Context, op, identity string, err error) error {
	if errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrAliasTaken) ||
		errors.Is(err, domain.ErrInvalidArgument) {
		return err
	}
	logger.L(ctx, s.logger).Error(op+" not persisted", "identity", identity, "error", err)
	return domain.ErrPersistFailed.WithDetails(identity).WithCause(err)
}
