package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"textlens/internal/types"
)

// AuthTokenRepo resolves bearer tokens to user IDs. Token issuance and
// session management live with the identity provider; this repository only
// needs the one lookup the gate middleware performs.
type AuthTokenRepo struct {
	db DBTX
}

// NewAuthTokenRepo creates a new AuthTokenRepo backed by the given database
// connection (pool or transaction).
func NewAuthTokenRepo(db DBTX) *AuthTokenRepo {
	return &AuthTokenRepo{db: db}
}

// UserIDByTokenHash returns the user owning the given token hash.
// Returns ErrCodeAuthTokenInvalid when no user matches.
func (r *AuthTokenRepo) UserIDByTokenHash(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM users WHERE api_token_hash = $1`,
		tokenHash,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or revoked token", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to resolve auth token", err)
	}
	return userID, nil
}
