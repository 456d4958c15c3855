package db

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"textlens/internal/types"
)

// UserCreditRepo provides data access for the credit columns of the users
// table. It is the only component that mutates users.credits and
// users.metadata; everything else reads through the credit engine.
type UserCreditRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewUserCreditRepo creates a new UserCreditRepo backed by the given
// database connection (pool or transaction).
func NewUserCreditRepo(db DBTX, logger *slog.Logger) *UserCreditRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserCreditRepo{db: db, logger: logger}
}

// GetCreditState returns the stored balance and plan metadata for a user.
// Returns ErrCodeNotFoundUser if no such user exists.
func (r *UserCreditRepo) GetCreditState(ctx context.Context, userID string) (int, types.PlanMetadata, error) {
	var (
		credits int
		raw     []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT credits, metadata
		 FROM users
		 WHERE id = $1`,
		userID,
	).Scan(&credits, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.PlanMetadata{}, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return 0, types.PlanMetadata{}, types.NewAppError(types.ErrCodeInternalDB, "failed to load user credit state", err)
	}

	var meta types.PlanMetadata
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &meta); err != nil {
			// A corrupt metadata bag must not brick the account; treat it
			// as empty and let the next refill rewrite it.
			r.logger.WarnContext(ctx, "unparseable user metadata, treating as empty",
				"user_id", userID,
				"error", err,
			)
			meta = types.PlanMetadata{}
		}
	}
	return credits, meta, nil
}

// SetBalanceAndMetadata overwrites the stored balance and metadata in one
// statement. Used exclusively by the engine's lazy refill and expiry
// branches, which always persist the resolved plan alongside the new
// balance so the two cannot drift apart.
func (r *UserCreditRepo) SetBalanceAndMetadata(ctx context.Context, userID string, credits int, meta types.PlanMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode plan metadata", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET credits = $1,
		     metadata = $2,
		     updated_at = NOW()
		 WHERE id = $3`,
		credits,
		raw,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to persist refilled balance", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// DeductIfSufficient atomically subtracts amount from the user's balance
// and appends the audit entry, as one SQL statement. The UPDATE carries a
// `credits >= amount` guard, so two concurrent deductions against a thin
// balance cannot both succeed; the CTE makes the audit row part of the
// same atomic statement.
//
// Returns the new balance on success. Returns ErrCodeInsufficientCredits
// when the guard fails or the user row is gone; the caller cannot
// distinguish the two, which is intended (fail closed).
func (r *UserCreditRepo) DeductIfSufficient(ctx context.Context, userID string, amount int, reason string, planID types.PlanID) (int, error) {
	var balanceAfter int
	err := r.db.QueryRow(ctx,
		`WITH spent AS (
		     UPDATE users
		     SET credits = credits - $2,
		         updated_at = NOW()
		     WHERE id = $1
		       AND credits >= $2
		     RETURNING id, credits
		 )
		 INSERT INTO credit_audit (principal_kind, principal_id, amount, reason, plan_id, balance_after)
		 SELECT 'user', id, $2, $3, $4, credits FROM spent
		 RETURNING balance_after`,
		userID,
		amount,
		reason,
		planID,
	).Scan(&balanceAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.NewAppError(types.ErrCodeInsufficientCredits, "not enough credits for this operation", nil)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to deduct credits", err)
	}
	return balanceAfter, nil
}

// EmailByID returns the user's email address, for checkout session
// prefill. Returns ErrCodeNotFoundUser if no such user exists.
func (r *UserCreditRepo) EmailByID(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.db.QueryRow(ctx,
		`SELECT email FROM users WHERE id = $1`,
		userID,
	).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to load user email", err)
	}
	return email, nil
}
