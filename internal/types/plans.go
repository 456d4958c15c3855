package types

// PlanPolicy defines the entitlements of a plan tier. Policies are immutable,
// compiled-in configuration; the table is built once at startup.
//
// Exactly one of MonthlyCredits, ResetIntervalDays, or OneTimeCredits drives
// a plan's refill behavior. A plan with none of them set never refills; its
// balance only decreases.
type PlanPolicy struct {
	ID PlanID `json:"id"`

	// Input gates
	AllowText bool `json:"allow_text"`
	AllowFile bool `json:"allow_file"`
	AllowURL  bool `json:"allow_url"`

	// MaxChars limits input length. Zero means unlimited.
	MaxChars int `json:"max_chars,omitempty"`

	// Refill drivers. Zero values mean "unset".
	MonthlyCredits     int `json:"monthly_credits,omitempty"`
	ResetIntervalDays  int `json:"reset_interval_days,omitempty"`
	OneTimeCredits     int `json:"one_time_credits,omitempty"`
	OneTimeExpiresDays int `json:"one_time_expires_days,omitempty"`

	// SaveHistory controls whether usage records persist for this plan.
	SaveHistory bool `json:"save_history"`

	// CreditsPerWordDetect is the detection pricing multiplier.
	CreditsPerWordDetect float64 `json:"credits_per_word_detect"`
}

// AllowsSource reports whether the policy permits the given input source type.
// Unknown source types are denied.
func (p PlanPolicy) AllowsSource(s SourceType) bool {
	switch s {
	case SourceText:
		return p.AllowText
	case SourceFile:
		return p.AllowFile
	case SourceURL:
		return p.AllowURL
	default:
		return false
	}
}

// WithinCharLimit reports whether an input of length n fits the policy's
// character limit. A zero MaxChars means unlimited.
func (p PlanPolicy) WithinCharLimit(n int) bool {
	return p.MaxChars == 0 || n <= p.MaxChars
}
