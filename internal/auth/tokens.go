// Package auth provides bearer token resolution for the API gate. Tokens
// are opaque random strings issued by the identity provider; only their
// SHA-256 digest is stored, so a database leak never exposes live tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// TokenLookup is the persistence contract for token resolution.
// Implemented by db.AuthTokenRepo.
type TokenLookup interface {
	UserIDByTokenHash(ctx context.Context, tokenHash string) (string, error)
}

// TokenService resolves raw bearer tokens to user IDs.
type TokenService struct {
	lookup TokenLookup
}

// NewTokenService creates a TokenService over the given lookup.
func NewTokenService(lookup TokenLookup) *TokenService {
	return &TokenService{lookup: lookup}
}

// ResolveToken hashes the raw token and resolves it to a user ID.
func (s *TokenService) ResolveToken(ctx context.Context, token string) (string, error) {
	return s.lookup.UserIDByTokenHash(ctx, HashToken(token))
}

// HashToken returns the hex-encoded SHA-256 digest of a raw token. The
// same digest is computed at issuance time, so equality on digests is
// equality on tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
