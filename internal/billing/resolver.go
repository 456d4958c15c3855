package billing

import (
	"context"
	"log/slog"

	"textlens/internal/types"
)

// PaymentLookup is the minimal payment data access the resolver needs.
// Implemented by db.PaymentRepo.
type PaymentLookup interface {
	// LatestByUser returns the most recent payment record regardless of
	// status, or (nil, nil) when the user has never paid.
	LatestByUser(ctx context.Context, userID string) (*types.Payment, error)
}

// PlanResolver determines which policy currently governs a signed-in user.
// It is a pure read; persisting a resolved plan into user metadata happens
// only inside the credit engine's refill branches.
type PlanResolver struct {
	registry PlanRegistry
	payments PaymentLookup
	logger   *slog.Logger
}

// NewPlanResolver creates a PlanResolver over the given registry and
// payment lookup.
func NewPlanResolver(registry PlanRegistry, payments PaymentLookup, logger *slog.Logger) *PlanResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanResolver{registry: registry, payments: payments, logger: logger}
}

// Resolve applies the ordered resolution algorithm, first match wins:
//
//  1. metadata.plan_id, when it names a known policy;
//  2. the price ID on the user's most recent payment record (any status),
//     via the current-then-legacy price tables;
//  3. the free policy.
//
// Resolve never fails: a payment lookup error is logged and degrades to
// the free policy rather than blocking the request.
func (r *PlanResolver) Resolve(ctx context.Context, userID string, meta types.PlanMetadata) types.PlanPolicy {
	if meta.PlanID != "" {
		// PolicyFor falls back to free for unknown IDs, but an unknown ID
		// stored in metadata should not mask a valid payment record, so
		// check membership explicitly.
		if p := r.registry.PolicyFor(meta.PlanID); p.ID == meta.PlanID {
			return p
		}
	}

	payment, err := r.payments.LatestByUser(ctx, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "payment lookup failed during plan resolution, defaulting to free",
			"user_id", userID,
			"error", err,
		)
		return r.registry.PolicyFor(types.PlanFree)
	}
	if payment != nil {
		if p, ok := r.registry.PolicyForPriceID(payment.PriceID); ok {
			return p
		}
	}

	return r.registry.PolicyFor(types.PlanFree)
}
