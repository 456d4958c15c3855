package types

import (
	"encoding/json"
	"time"
)

// PlanMetadata is the typed schema for the users.metadata JSONB column.
// It replaces stringly-typed field access with an explicit struct so that
// plan and reset state cannot drift through typos.
type PlanMetadata struct {
	PlanID           PlanID     `json:"plan_id,omitempty"`
	CreditsResetAt   *time.Time `json:"credits_reset_at,omitempty"`
	OneTimeExpiresAt *time.Time `json:"one_time_expires_at,omitempty"`
}

// User represents an authenticated account. Identity lifecycle (signup,
// sessions) is owned by the auth provider; this service only mutates
// Credits and Metadata, and only through the credit engine.
type User struct {
	ID        string       `json:"id" db:"id"`
	Email     string       `json:"email" db:"email"`
	Credits   int          `json:"credits" db:"credits"`
	Metadata  PlanMetadata `json:"metadata" db:"metadata"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// GuestLedgerEntry is the per-IP credit row for anonymous callers.
// IPHash is the keyed one-way hash used as the unique index; IPAddress is
// kept for diagnostics only and is never used for matching.
type GuestLedgerEntry struct {
	IPHash    string    `json:"-" db:"ip_hash"`
	IPAddress string    `json:"-" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	Credits   int       `json:"credits" db:"credits"`
	ResetAt   time.Time `json:"reset_at" db:"reset_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UsageRecord is the append-only audit of a billable action. It is written
// only after the provider call and the deduction both succeeded.
type UsageRecord struct {
	ID               string          `json:"id" db:"id"`
	UserID           string          `json:"user_id" db:"user_id"`
	Tool             Tool            `json:"tool" db:"tool"`
	SourceType       SourceType      `json:"source_type" db:"source_type"`
	InputDescriptor  string          `json:"input_descriptor,omitempty" db:"input_descriptor"`
	InputChars       int             `json:"input_chars" db:"input_chars"`
	Words            int             `json:"words" db:"words"`
	Score            *float64        `json:"score,omitempty" db:"score"`
	CreditsCharged   int             `json:"credits_charged" db:"credits_charged"`
	CreditsRemaining int             `json:"credits_remaining" db:"credits_remaining"`
	ProviderMeta     json.RawMessage `json:"provider_meta,omitempty" db:"provider_meta"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Payment is a billing provider payment record. The plan resolver consults
// the most recent one (any status) when user metadata carries no plan.
type Payment struct {
	ID        string        `json:"id" db:"id"`
	UserID    string        `json:"user_id" db:"user_id"`
	PriceID   string        `json:"price_id" db:"price_id"`
	Status    PaymentStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// CreditAudit is an append-only entry recording a successful deduction.
// Written atomically with the balance change.
type CreditAudit struct {
	ID            int64         `json:"id" db:"id"`
	PrincipalKind PrincipalKind `json:"principal_kind" db:"principal_kind"`
	PrincipalID   string        `json:"principal_id" db:"principal_id"`
	Amount        int           `json:"amount" db:"amount"`
	Reason        string        `json:"reason" db:"reason"`
	PlanID        PlanID        `json:"plan_id" db:"plan_id"`
	BalanceAfter  int           `json:"balance_after" db:"balance_after"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// BalanceState is the materialized view of a principal's credit position,
// produced by the credit engine's read path. Loading it may have performed
// a lazy refill write.
type BalanceState struct {
	Plan     PlanPolicy   `json:"plan"`
	Credits  int          `json:"credits"`
	Metadata PlanMetadata `json:"metadata"`
}

// ProviderUsage is the usage a provider reported for a completed call.
// Reported is zero when the provider gave no figure.
type ProviderUsage struct {
	Reported int `json:"reported"`
}
