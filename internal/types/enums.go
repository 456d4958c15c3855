package types

// PlanID identifies a billing plan tier.
type PlanID string

const (
	PlanGuest    PlanID = "guest"
	PlanFree     PlanID = "free"
	PlanTrial    PlanID = "trial"
	PlanHobby    PlanID = "hobby"
	PlanPro      PlanID = "pro"
	PlanLifetime PlanID = "lifetime"
)

// SourceType identifies where the input text for a tool request came from.
type SourceType string

const (
	SourceText SourceType = "text"
	SourceFile SourceType = "file"
	SourceURL  SourceType = "url"
)

// Tool identifies a billable (or free) tool exposed by the platform.
type Tool string

const (
	ToolDetect     Tool = "detect"
	ToolPlagiarism Tool = "plagiarism"
	ToolHumanize   Tool = "humanize"
	ToolSummarize  Tool = "summarize"
	ToolCitations  Tool = "citations"
	ToolDiff       Tool = "diff"
	ToolWordCount  Tool = "wordcount"
)

// PrincipalKind distinguishes authenticated users from hashed-IP guests.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalGuest PrincipalKind = "guest"
)

// PaymentStatus represents the state of a payment record.
// Plan resolution deliberately considers the latest payment regardless of
// status; the status is kept for display and reconciliation.
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)
