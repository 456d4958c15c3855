package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"textlens/internal/types"
)

type mockTokenLookup struct {
	mock.Mock
}

func (m *mockTokenLookup) UserIDByTokenHash(ctx context.Context, tokenHash string) (string, error) {
	args := m.Called(ctx, tokenHash)
	return args.String(0), args.Error(1)
}

func TestHashToken(t *testing.T) {
	sum := sha256.Sum256([]byte("tk_live_abc123"))
	assert.Equal(t, hex.EncodeToString(sum[:]), HashToken("tk_live_abc123"))
	// Stable across calls.
	assert.Equal(t, HashToken("tk_live_abc123"), HashToken("tk_live_abc123"))
	assert.NotEqual(t, HashToken("tk_live_abc123"), HashToken("tk_live_abc124"))
}

func TestTokenService_ResolveToken_LooksUpDigestNotPlaintext(t *testing.T) {
	lookup := new(mockTokenLookup)
	svc := NewTokenService(lookup)

	lookup.On("UserIDByTokenHash", mock.Anything, HashToken("tk_live_abc123")).
		Return("user_1", nil)

	userID, err := svc.ResolveToken(context.Background(), "tk_live_abc123")
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)
	// The raw token must never reach storage.
	lookup.AssertNotCalled(t, "UserIDByTokenHash", mock.Anything, "tk_live_abc123")
}

func TestTokenService_ResolveToken_UnknownToken(t *testing.T) {
	lookup := new(mockTokenLookup)
	svc := NewTokenService(lookup)

	lookup.On("UserIDByTokenHash", mock.Anything, mock.AnythingOfType("string")).
		Return("", types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid or revoked token", nil))

	_, err := svc.ResolveToken(context.Background(), "tk_revoked")
	require.Error(t, err)
}
