package types

import "context"

// Principal represents the caller of a billable operation: either an
// authenticated user or an anonymous guest identified by client IP.
// For guests, UserID is empty and IP/UserAgent are populated from the
// request; the ledger key is derived from IP by the credit engine, the
// raw address never reaches the lookup path.
type Principal struct {
	Kind      PrincipalKind
	UserID    string
	IP        string
	UserAgent string
}

// IsUser reports whether the principal is an authenticated user.
func (p Principal) IsUser() bool { return p.Kind == PrincipalUser }

// Context Keys
type contextKey string

const (
	principalKey contextKey = "principal"
	requestIDKey contextKey = "request_id"
)

// WithPrincipal stores the Principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal from the context.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
