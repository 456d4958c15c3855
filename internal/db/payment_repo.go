package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"textlens/internal/types"
)

// PaymentRepo provides data access for the payments table. Rows are written
// by the Stripe webhook handler and read by the plan resolver.
type PaymentRepo struct {
	db DBTX
}

// NewPaymentRepo creates a new PaymentRepo backed by the given database
// connection (pool or transaction).
func NewPaymentRepo(db DBTX) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Insert appends a payment record.
func (r *PaymentRepo) Insert(ctx context.Context, p *types.Payment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, user_id, price_id, status)
		 VALUES ($1, $2, $3, $4)`,
		p.ID,
		p.UserID,
		p.PriceID,
		p.Status,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert payment record", err)
	}
	return nil
}

// LatestByUser returns the user's most recent payment record regardless of
// status, or (nil, nil) when the user has never paid. Plan resolution
// deliberately ignores status: a failed renewal still identifies which plan
// the user bought, and entitlement downgrades are driven by credit expiry,
// not payment state.
func (r *PaymentRepo) LatestByUser(ctx context.Context, userID string) (*types.Payment, error) {
	var p types.Payment
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, price_id, status, created_at
		 FROM payments
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.PriceID, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load latest payment", err)
	}
	return &p, nil
}
