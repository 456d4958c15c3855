// Package billing provides the plan policy table and plan resolution for the
// TextLens platform. Policies are the single source of truth for what each
// plan allows; they are compiled in and immutable after startup.
package billing

import "textlens/internal/types"

// PlanRegistry is the authoritative mapping from plan identifier to
// entitlements.
type PlanRegistry interface {
	// PolicyFor returns the policy for the given plan ID. Unknown IDs fall
	// back to the Free policy so resolution can never fail open into a
	// paid tier.
	PolicyFor(id types.PlanID) types.PlanPolicy

	// PolicyForPriceID reverse-maps an external billing price identifier
	// (current or legacy) to a policy. The boolean reports whether the
	// price was recognized.
	PolicyForPriceID(priceID string) (types.PlanPolicy, bool)

	// PriceIDFor returns the current purchasable price ID for a plan.
	// Plans without a current price (guest, free) report false.
	PriceIDFor(id types.PlanID) (string, bool)
}

// staticPlanRegistry is a compile-time plan registry backed by in-memory
// maps. It is the standard implementation for production use.
type staticPlanRegistry struct {
	policies map[types.PlanID]types.PlanPolicy
	byPrice  map[string]types.PlanID
	byPlan   map[types.PlanID]string
}

// planDefaults defines the hardcoded plan entitlements.
//
//	| Plan     | Text | File | URL | MaxChars | Refill                    |
//	|----------|------|------|-----|----------|---------------------------|
//	| guest    | yes  | no   | no  | 2,500    | 400 / 30 days             |
//	| free     | yes  | no   | no  | 5,000    | 400 / month               |
//	| trial    | yes  | yes  | no  | 15,000   | one-time 1,500, 7 days    |
//	| hobby    | yes  | yes  | yes | 30,000   | 10,000 / month            |
//	| pro      | yes  | yes  | yes | 0 (none) | 50,000 / month            |
//	| lifetime | yes  | yes  | yes | 0 (none) | 200,000 / 365 days        |
//
// Exactly one refill driver is set per plan; a policy with none set would
// never refill.
var planDefaults = map[types.PlanID]types.PlanPolicy{
	types.PlanGuest: {
		ID:                   types.PlanGuest,
		AllowText:            true,
		MaxChars:             2500,
		MonthlyCredits:       400,
		ResetIntervalDays:    30,
		SaveHistory:          false,
		CreditsPerWordDetect: 1,
	},
	types.PlanFree: {
		ID:                   types.PlanFree,
		AllowText:            true,
		MaxChars:             5000,
		MonthlyCredits:       400,
		SaveHistory:          true,
		CreditsPerWordDetect: 1,
	},
	types.PlanTrial: {
		ID:                   types.PlanTrial,
		AllowText:            true,
		AllowFile:            true,
		MaxChars:             15000,
		OneTimeCredits:       1500,
		OneTimeExpiresDays:   7,
		SaveHistory:          true,
		CreditsPerWordDetect: 1,
	},
	types.PlanHobby: {
		ID:                   types.PlanHobby,
		AllowText:            true,
		AllowFile:            true,
		AllowURL:             true,
		MaxChars:             30000,
		MonthlyCredits:       10000,
		SaveHistory:          true,
		CreditsPerWordDetect: 1,
	},
	types.PlanPro: {
		ID:                   types.PlanPro,
		AllowText:            true,
		AllowFile:            true,
		AllowURL:             true,
		MonthlyCredits:       50000,
		SaveHistory:          true,
		CreditsPerWordDetect: 1,
	},
	types.PlanLifetime: {
		ID:                   types.PlanLifetime,
		AllowText:            true,
		AllowFile:            true,
		AllowURL:             true,
		MonthlyCredits:       200000,
		ResetIntervalDays:    365,
		SaveHistory:          true,
		CreditsPerWordDetect: 1,
	},
}

// priceToPlan maps current Stripe price IDs to plans. The webhook handler
// and the plan resolver both reconcile through this table.
var priceToPlan = map[string]types.PlanID{
	"price_hobby_monthly":    types.PlanHobby,
	"price_pro_monthly":      types.PlanPro,
	"price_lifetime_onetime": types.PlanLifetime,
	"price_trial_intro":      types.PlanTrial,
}

// legacyPriceToPlan maps retired price IDs that still appear on old payment
// records. Consulted after the current table misses.
var legacyPriceToPlan = map[string]types.PlanID{
	"price_starter_monthly_2023": types.PlanHobby,
	"price_premium_monthly_2023": types.PlanPro,
}

// freePolicy is cached to avoid map lookups on the fallback path.
var freePolicy = planDefaults[types.PlanFree]

// NewStaticPlanRegistry returns a PlanRegistry backed by the compiled-in
// plan table. No database or external service is required.
func NewStaticPlanRegistry() PlanRegistry {
	// Copy the defaults so callers cannot mutate the package-level maps.
	policies := make(map[types.PlanID]types.PlanPolicy, len(planDefaults))
	for k, v := range planDefaults {
		policies[k] = v
	}
	byPrice := make(map[string]types.PlanID, len(priceToPlan)+len(legacyPriceToPlan))
	for k, v := range priceToPlan {
		byPrice[k] = v
	}
	for k, v := range legacyPriceToPlan {
		if _, exists := byPrice[k]; !exists {
			byPrice[k] = v
		}
	}
	// Only current prices are purchasable; legacy IDs resolve but are
	// never offered at checkout.
	byPlan := make(map[types.PlanID]string, len(priceToPlan))
	for price, plan := range priceToPlan {
		byPlan[plan] = price
	}
	return &staticPlanRegistry{policies: policies, byPrice: byPrice, byPlan: byPlan}
}

// PolicyFor returns the policy for the given plan ID, falling back to the
// Free policy for unknown IDs.
func (r *staticPlanRegistry) PolicyFor(id types.PlanID) types.PlanPolicy {
	if p, ok := r.policies[id]; ok {
		return p
	}
	return freePolicy
}

// PolicyForPriceID reverse-maps a billing price ID to a policy, consulting
// current then legacy tables. Absence is reported, not an error.
func (r *staticPlanRegistry) PolicyForPriceID(priceID string) (types.PlanPolicy, bool) {
	id, ok := r.byPrice[priceID]
	if !ok {
		return types.PlanPolicy{}, false
	}
	return r.PolicyFor(id), true
}

// PriceIDFor returns the current purchasable price ID for a plan.
func (r *staticPlanRegistry) PriceIDFor(id types.PlanID) (string, bool) {
	price, ok := r.byPlan[id]
	return price, ok
}
