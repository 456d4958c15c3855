package credits

import "textlens/internal/types"

// CheckGate verifies that a plan permits the requested input before any
// provider call or deduction is attempted. Gates are independent of
// balance: a blocked source type or oversized input is rejected even when
// the caller has plenty of credits.
//
// Returns ErrCodePlanGateBlocked on violation, nil when the request may
// proceed to billing.
func CheckGate(policy types.PlanPolicy, source types.SourceType, inputLen int) error {
	if !policy.AllowsSource(source) {
		return types.NewAppErrorWithDetails(
			types.ErrCodePlanGateBlocked,
			"your plan does not allow this input type",
			nil,
			map[string]any{
				"plan":        policy.ID,
				"source_type": source,
			},
		)
	}
	if !policy.WithinCharLimit(inputLen) {
		return types.NewAppErrorWithDetails(
			types.ErrCodePlanGateBlocked,
			"input exceeds your plan's character limit",
			nil,
			map[string]any{
				"plan":      policy.ID,
				"max_chars": policy.MaxChars,
				"length":    inputLen,
			},
		)
	}
	return nil
}
