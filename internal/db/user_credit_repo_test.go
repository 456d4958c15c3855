package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"textlens/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func appErrCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected *types.AppError, got %T", err)
	return appErr.Code
}

// --- GetCreditState ---

func TestUserCreditRepo_GetCreditState_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	resetAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int) = 42
			*dest[1].(*[]byte) = []byte(`{"plan_id":"pro","credits_reset_at":"2026-03-01T00:00:00Z"}`)
			return nil
		}})

	credits, meta, err := repo.GetCreditState(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 42, credits)
	assert.Equal(t, types.PlanPro, meta.PlanID)
	require.NotNil(t, meta.CreditsResetAt)
	assert.True(t, meta.CreditsResetAt.Equal(resetAt))
	db.AssertExpectations(t)
}

func TestUserCreditRepo_GetCreditState_EmptyMetadata(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int) = 10
			*dest[1].(*[]byte) = nil
			return nil
		}})

	credits, meta, err := repo.GetCreditState(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 10, credits)
	assert.Equal(t, types.PlanMetadata{}, meta)
}

func TestUserCreditRepo_GetCreditState_CorruptMetadataTreatedAsEmpty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int) = 7
			*dest[1].(*[]byte) = []byte(`{not json`)
			return nil
		}})

	credits, meta, err := repo.GetCreditState(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 7, credits)
	assert.Equal(t, types.PlanMetadata{}, meta)
}

func TestUserCreditRepo_GetCreditState_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, _, err := repo.GetCreditState(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundUser, appErrCode(t, err))
}

func TestUserCreditRepo_GetCreditState_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, _, err := repo.GetCreditState(context.Background(), "user_1")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalDB, appErrCode(t, err))
}

// --- SetBalanceAndMetadata ---

func TestUserCreditRepo_SetBalanceAndMetadata_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	resetAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.SetBalanceAndMetadata(context.Background(), "user_1", 500, types.PlanMetadata{
		PlanID:         types.PlanHobby,
		CreditsResetAt: &resetAt,
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUserCreditRepo_SetBalanceAndMetadata_UserGone(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.SetBalanceAndMetadata(context.Background(), "ghost", 500, types.PlanMetadata{PlanID: types.PlanFree})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundUser, appErrCode(t, err))
}

func TestUserCreditRepo_SetBalanceAndMetadata_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("write timeout"))

	err := repo.SetBalanceAndMetadata(context.Background(), "user_1", 500, types.PlanMetadata{PlanID: types.PlanFree})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalDB, appErrCode(t, err))
}

// --- DeductIfSufficient ---

func TestUserCreditRepo_DeductIfSufficient_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"),
		[]any{"user_1", 30, "detect", types.PlanPro}).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int) = 70
			return nil
		}})

	balance, err := repo.DeductIfSufficient(context.Background(), "user_1", 30, "detect", types.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, 70, balance)
	db.AssertExpectations(t)
}

func TestUserCreditRepo_DeductIfSufficient_Insufficient(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	// The guarded UPDATE matched no row, so the CTE insert returned nothing.
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.DeductIfSufficient(context.Background(), "user_1", 9999, "humanize", types.PlanFree)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInsufficientCredits, appErrCode(t, err))
}

func TestUserCreditRepo_DeductIfSufficient_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("deadlock detected")})

	_, err := repo.DeductIfSufficient(context.Background(), "user_1", 5, "detect", types.PlanPro)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalDB, appErrCode(t, err))
}

// --- EmailByID ---

func TestUserCreditRepo_EmailByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "user@example.com"
			return nil
		}})

	email, err := repo.EmailByID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestUserCreditRepo_EmailByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserCreditRepo(db, nil)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.EmailByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundUser, appErrCode(t, err))
}
