package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"textlens/internal/types"
)

// GuestLedgerRepo provides data access for the guest_ledger table, keyed by
// the hashed client IP. Rows are created lazily on first contact and never
// deleted by this subsystem; retention is an operational concern.
type GuestLedgerRepo struct {
	db DBTX
}

// NewGuestLedgerRepo creates a new GuestLedgerRepo backed by the given
// database connection (pool or transaction).
func NewGuestLedgerRepo(db DBTX) *GuestLedgerRepo {
	return &GuestLedgerRepo{db: db}
}

// Ensure idempotently creates a ledger entry for the hashed IP with the
// given starting allotment and reset time. A second call for the same hash
// is a no-op and does not touch the existing balance or reset timer.
//
// The plaintext IP and user agent are stored for diagnostics only; the
// unique index is on ip_hash.
func (r *GuestLedgerRepo) Ensure(ctx context.Context, entry *types.GuestLedgerEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO guest_ledger (ip_hash, ip_address, user_agent, credits, reset_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (ip_hash) DO NOTHING`,
		entry.IPHash,
		entry.IPAddress,
		entry.UserAgent,
		entry.Credits,
		entry.ResetAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to ensure guest ledger entry", err)
	}
	return nil
}

// Get returns the ledger entry for the hashed IP.
// Returns ErrCodeNotFoundGuestEntry if none exists.
func (r *GuestLedgerRepo) Get(ctx context.Context, ipHash string) (*types.GuestLedgerEntry, error) {
	var e types.GuestLedgerEntry
	err := r.db.QueryRow(ctx,
		`SELECT ip_hash, ip_address, user_agent, credits, reset_at, created_at, updated_at
		 FROM guest_ledger
		 WHERE ip_hash = $1`,
		ipHash,
	).Scan(&e.IPHash, &e.IPAddress, &e.UserAgent, &e.Credits, &e.ResetAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundGuestEntry, "guest ledger entry not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load guest ledger entry", err)
	}
	return &e, nil
}

// RefillIfElapsed restores the full allotment and advances the reset timer,
// but only if the stored reset time has actually passed. The guard in the
// WHERE clause makes concurrent lazy refills idempotent: the first request
// to observe the elapsed window wins, the rest see RowsAffected 0 and
// re-read. Returns true if this call performed the refill.
func (r *GuestLedgerRepo) RefillIfElapsed(ctx context.Context, ipHash string, credits int, newResetAt, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE guest_ledger
		 SET credits = $2,
		     reset_at = $3,
		     updated_at = NOW()
		 WHERE ip_hash = $1
		   AND reset_at <= $4`,
		ipHash,
		credits,
		newResetAt,
		now,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to refill guest ledger entry", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeductIfSufficient atomically subtracts amount from the guest balance and
// appends the audit entry in the same statement. Same contract as the user
// variant: the `credits >= amount` guard is the sole serialization
// mechanism, and a missing row is indistinguishable from an insufficient
// balance.
func (r *GuestLedgerRepo) DeductIfSufficient(ctx context.Context, ipHash string, amount int, reason string) (int, error) {
	var balanceAfter int
	err := r.db.QueryRow(ctx,
		`WITH spent AS (
		     UPDATE guest_ledger
		     SET credits = credits - $2,
		         updated_at = NOW()
		     WHERE ip_hash = $1
		       AND credits >= $2
		     RETURNING ip_hash, credits
		 )
		 INSERT INTO credit_audit (principal_kind, principal_id, amount, reason, plan_id, balance_after)
		 SELECT 'guest', ip_hash, $2, $3, 'guest', credits FROM spent
		 RETURNING balance_after`,
		ipHash,
		amount,
		reason,
	).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.NewAppError(types.ErrCodeInsufficientCredits, "not enough credits for this operation", nil)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to deduct guest credits", err)
	}
	return balanceAfter, nil
}
