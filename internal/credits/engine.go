// Package credits implements the credit accounting engine: the single
// source of truth for how many credits a principal (user or guest) has
// right now and whether an operation may proceed.
//
// Refills are lazy. No scheduler exists; the first read that observes an
// elapsed reset window performs the refill inline and persists it, so a
// balance is only ever materialized correct at read or deduct time. The
// load operation is named accordingly rather than hiding the write inside
// an innocuous getter.
//
// Deductions delegate serialization entirely to the storage layer's
// conditional update (WHERE credits >= amount). No in-process locks are
// used or needed.
package credits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"textlens/internal/billing"
	"textlens/internal/types"
)

// defaultGuestCredits is the allotment used when the guest policy carries
// no explicit monthly figure.
const defaultGuestCredits = 400

// defaultGuestResetDays is the guest reset window when the policy carries
// no explicit interval.
const defaultGuestResetDays = 30

// defaultIntervalCredits is the refill amount for interval-driven plans
// whose policy carries no monthly figure.
const defaultIntervalCredits = 400

// UserCreditStore is the user-side persistence the engine requires.
// Implemented by db.UserCreditRepo.
type UserCreditStore interface {
	GetCreditState(ctx context.Context, userID string) (int, types.PlanMetadata, error)
	SetBalanceAndMetadata(ctx context.Context, userID string, credits int, meta types.PlanMetadata) error
	DeductIfSufficient(ctx context.Context, userID string, amount int, reason string, planID types.PlanID) (int, error)
}

// GuestLedgerStore is the guest-side persistence the engine requires.
// Implemented by db.GuestLedgerRepo.
type GuestLedgerStore interface {
	Ensure(ctx context.Context, entry *types.GuestLedgerEntry) error
	Get(ctx context.Context, ipHash string) (*types.GuestLedgerEntry, error)
	RefillIfElapsed(ctx context.Context, ipHash string, credits int, newResetAt, now time.Time) (bool, error)
	DeductIfSufficient(ctx context.Context, ipHash string, amount int, reason string) (int, error)
}

// PlanResolver resolves the policy governing a user. Implemented by
// billing.PlanResolver.
type PlanResolver interface {
	Resolve(ctx context.Context, userID string, meta types.PlanMetadata) types.PlanPolicy
}

// Engine is the credit accounting engine.
type Engine struct {
	registry billing.PlanRegistry
	resolver PlanResolver
	users    UserCreditStore
	guests   GuestLedgerStore
	hasher   *IPHasher
	clock    types.Clock
	logger   *slog.Logger
}

// NewEngine creates a credit accounting engine over the given stores.
func NewEngine(
	registry billing.PlanRegistry,
	resolver PlanResolver,
	users UserCreditStore,
	guests GuestLedgerStore,
	hasher *IPHasher,
	clock types.Clock,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		resolver: resolver,
		users:    users,
		guests:   guests,
		hasher:   hasher,
		clock:    clock,
		logger:   logger,
	}
}

// LoadAndMaybeRefillBalance materializes the principal's current balance,
// performing any due lazy refill or one-time expiry as a side effect.
// It never fails for plan-resolution reasons; storage errors are returned
// as AppErrors.
func (e *Engine) LoadAndMaybeRefillBalance(ctx context.Context, p types.Principal) (types.BalanceState, error) {
	if p.IsUser() {
		return e.loadUserBalance(ctx, p.UserID)
	}
	return e.loadGuestBalance(ctx, p.IP, p.UserAgent)
}

// loadUserBalance applies the refill state machine for an authenticated
// user:
//
//   - interval-driven plans refill to the plan's monthly figure (or the
//     fixed fallback) every ResetIntervalDays;
//   - monthly plans refill to MonthlyCredits one calendar month at a time;
//   - one-time grants whose expiry has passed force the balance to zero
//     and downgrade the stored plan to free.
//
// Every persisted branch writes the resolved plan ID into metadata so the
// stored balance and the plan it belongs to cannot drift apart.
func (e *Engine) loadUserBalance(ctx context.Context, userID string) (types.BalanceState, error) {
	credits, meta, err := e.users.GetCreditState(ctx, userID)
	if err != nil {
		return types.BalanceState{}, err
	}

	policy := e.resolver.Resolve(ctx, userID, meta)
	now := e.clock.Now()

	// One-time grant expiry. Checked first: an expired trial must read as
	// zero regardless of what balance is still stored.
	if policy.OneTimeExpiresDays > 0 && meta.OneTimeExpiresAt != nil && !meta.OneTimeExpiresAt.After(now) {
		policy = e.registry.PolicyFor(types.PlanFree)
		meta = types.PlanMetadata{PlanID: policy.ID}
		if err := e.users.SetBalanceAndMetadata(ctx, userID, 0, meta); err != nil {
			return types.BalanceState{}, err
		}
		return types.BalanceState{Plan: policy, Credits: 0, Metadata: meta}, nil
	}

	resetDue := meta.CreditsResetAt == nil || !meta.CreditsResetAt.After(now)

	switch {
	case policy.ResetIntervalDays > 0 && resetDue:
		allotment := policy.MonthlyCredits
		if allotment == 0 {
			allotment = defaultIntervalCredits
		}
		resetAt := now.AddDate(0, 0, policy.ResetIntervalDays)
		meta = types.PlanMetadata{PlanID: policy.ID, CreditsResetAt: &resetAt, OneTimeExpiresAt: meta.OneTimeExpiresAt}
		if err := e.users.SetBalanceAndMetadata(ctx, userID, allotment, meta); err != nil {
			return types.BalanceState{}, err
		}
		return types.BalanceState{Plan: policy, Credits: allotment, Metadata: meta}, nil

	case policy.ResetIntervalDays == 0 && policy.MonthlyCredits > 0 && resetDue:
		resetAt := now.AddDate(0, 1, 0)
		meta = types.PlanMetadata{PlanID: policy.ID, CreditsResetAt: &resetAt, OneTimeExpiresAt: meta.OneTimeExpiresAt}
		if err := e.users.SetBalanceAndMetadata(ctx, userID, policy.MonthlyCredits, meta); err != nil {
			return types.BalanceState{}, err
		}
		return types.BalanceState{Plan: policy, Credits: policy.MonthlyCredits, Metadata: meta}, nil
	}

	// No refill due: balance is whatever is stored.
	return types.BalanceState{Plan: policy, Credits: credits, Metadata: meta}, nil
}

// loadGuestBalance ensures the ledger entry exists, then applies the lazy
// interval refill. The guest plan always resolves from the static table;
// guests have no metadata to consult.
func (e *Engine) loadGuestBalance(ctx context.Context, ip, userAgent string) (types.BalanceState, error) {
	policy := e.registry.PolicyFor(types.PlanGuest)
	ipHash := e.hasher.Hash(ip)
	now := e.clock.Now()

	allotment := policy.MonthlyCredits
	if allotment == 0 {
		allotment = defaultGuestCredits
	}
	resetDays := policy.ResetIntervalDays
	if resetDays == 0 {
		resetDays = defaultGuestResetDays
	}

	if err := e.guests.Ensure(ctx, &types.GuestLedgerEntry{
		IPHash:    ipHash,
		IPAddress: ip,
		UserAgent: userAgent,
		Credits:   allotment,
		ResetAt:   now.AddDate(0, 0, resetDays),
	}); err != nil {
		return types.BalanceState{}, err
	}

	entry, err := e.guests.Get(ctx, ipHash)
	if err != nil {
		return types.BalanceState{}, err
	}

	if !entry.ResetAt.After(now) {
		refilled, err := e.guests.RefillIfElapsed(ctx, ipHash, allotment, now.AddDate(0, 0, resetDays), now)
		if err != nil {
			return types.BalanceState{}, err
		}
		if refilled {
			entry, err = e.guests.Get(ctx, ipHash)
			if err != nil {
				return types.BalanceState{}, err
			}
		}
	}

	return types.BalanceState{Plan: policy, Credits: entry.Credits}, nil
}

// Deduct atomically charges the principal. A zero amount is a no-op
// success returning the stored balance. A negative amount is rejected.
//
// On success the new balance is returned and an audit entry has been
// written in the same atomic statement. On insufficient balance, a
// vanished row, or any storage error, the caller receives
// ErrCodeInsufficientCredits: the engine fails closed and never grants an
// operation it could not verify.
func (e *Engine) Deduct(ctx context.Context, p types.Principal, amount int, reason string) (int, error) {
	if amount < 0 {
		return 0, types.NewAppError(types.ErrCodeValidationBadRequest, "deduction amount must not be negative", nil)
	}

	if p.IsUser() {
		return e.deductUser(ctx, p.UserID, amount, reason)
	}
	return e.deductGuest(ctx, p.IP, amount, reason)
}

func (e *Engine) deductUser(ctx context.Context, userID string, amount int, reason string) (int, error) {
	credits, meta, err := e.users.GetCreditState(ctx, userID)
	if err != nil {
		return 0, e.failClosed(ctx, "user", userID, err)
	}
	if amount == 0 {
		return credits, nil
	}

	policy := e.resolver.Resolve(ctx, userID, meta)
	balance, err := e.users.DeductIfSufficient(ctx, userID, amount, reason, policy.ID)
	if err != nil {
		return 0, e.failClosed(ctx, "user", userID, err)
	}
	return balance, nil
}

func (e *Engine) deductGuest(ctx context.Context, ip string, amount int, reason string) (int, error) {
	ipHash := e.hasher.Hash(ip)
	if amount == 0 {
		entry, err := e.guests.Get(ctx, ipHash)
		if err != nil {
			return 0, e.failClosed(ctx, "guest", ipHash, err)
		}
		return entry.Credits, nil
	}

	balance, err := e.guests.DeductIfSufficient(ctx, ipHash, amount, reason)
	if err != nil {
		return 0, e.failClosed(ctx, "guest", ipHash, err)
	}
	return balance, nil
}

// ApplyPurchase moves a user onto the purchased plan and grants its
// starting allotment. Called by the billing webhook after a completed
// checkout; the engine stays the only writer of plan state. The reset or
// expiry timer starts at purchase time.
func (e *Engine) ApplyPurchase(ctx context.Context, userID string, policy types.PlanPolicy) error {
	now := e.clock.Now()
	meta := types.PlanMetadata{PlanID: policy.ID}
	var credits int

	switch {
	case policy.OneTimeCredits > 0:
		credits = policy.OneTimeCredits
		expiresAt := now.AddDate(0, 0, policy.OneTimeExpiresDays)
		meta.OneTimeExpiresAt = &expiresAt
	case policy.ResetIntervalDays > 0:
		credits = policy.MonthlyCredits
		if credits == 0 {
			credits = defaultIntervalCredits
		}
		resetAt := now.AddDate(0, 0, policy.ResetIntervalDays)
		meta.CreditsResetAt = &resetAt
	case policy.MonthlyCredits > 0:
		credits = policy.MonthlyCredits
		resetAt := now.AddDate(0, 1, 0)
		meta.CreditsResetAt = &resetAt
	}

	return e.users.SetBalanceAndMetadata(ctx, userID, credits, meta)
}

// failClosed maps any deduction-path error to the insufficient-credits
// failure the caller is prepared to handle. Genuine insufficiency passes
// through untouched; unexpected storage errors are logged with the
// principal and converted, so the caller can never be granted an
// operation the engine could not account for.
func (e *Engine) failClosed(ctx context.Context, kind, id string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeInsufficientCredits {
		return err
	}
	e.logger.ErrorContext(ctx, "credit deduction failed, failing closed",
		"principal_kind", kind,
		"principal_id", id,
		"error", err,
	)
	return types.NewAppError(types.ErrCodeInsufficientCredits, "not enough credits for this operation", err)
}
