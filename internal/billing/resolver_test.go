package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"textlens/internal/types"
)

// --- Mock PaymentLookup ---

type mockPaymentLookup struct {
	mock.Mock
}

func (m *mockPaymentLookup) LatestByUser(ctx context.Context, userID string) (*types.Payment, error) {
	args := m.Called(ctx, userID)
	if p := args.Get(0); p != nil {
		return p.(*types.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPlanResolver_MetadataPlanWins(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{PlanID: types.PlanHobby})
	assert.Equal(t, types.PlanHobby, p.ID)
	// Metadata answered; the payment table is never consulted.
	payments.AssertNotCalled(t, "LatestByUser", mock.Anything, mock.Anything)
}

func TestPlanResolver_UnknownMetadataPlanFallsThroughToPayment(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	payments.On("LatestByUser", mock.Anything, "user_1").
		Return(&types.Payment{PriceID: "price_pro_monthly", Status: types.PaymentStatusPaid}, nil)

	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{PlanID: types.PlanID("retired_tier")})
	assert.Equal(t, types.PlanPro, p.ID)
}

func TestPlanResolver_LatestPaymentAnyStatus(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	payments.On("LatestByUser", mock.Anything, "user_1").
		Return(&types.Payment{PriceID: "price_hobby_monthly", Status: types.PaymentStatusFailed}, nil)

	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{})
	assert.Equal(t, types.PlanHobby, p.ID)
}

func TestPlanResolver_LegacyPriceResolves(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	payments.On("LatestByUser", mock.Anything, "user_1").
		Return(&types.Payment{PriceID: "price_starter_monthly_2023", Status: types.PaymentStatusPaid}, nil)

	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{})
	assert.Equal(t, types.PlanHobby, p.ID)
}

func TestPlanResolver_UnknownPriceDefaultsToFree(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	payments.On("LatestByUser", mock.Anything, "user_1").
		Return(&types.Payment{PriceID: "price_unmapped", Status: types.PaymentStatusPaid}, nil)

	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{})
	assert.Equal(t, types.PlanFree, p.ID)
}

func TestPlanResolver_NeverPaidDefaultsToFree(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	payments.On("LatestByUser", mock.Anything, "user_1").Return(nil, nil)

	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{})
	assert.Equal(t, types.PlanFree, p.ID)
}

func TestPlanResolver_PaymentLookupErrorDegradesToFree(t *testing.T) {
	payments := new(mockPaymentLookup)
	resolver := NewPlanResolver(NewStaticPlanRegistry(), payments, nil)

	payments.On("LatestByUser", mock.Anything, "user_1").
		Return(nil, errors.New("connection refused"))

	// Resolution never blocks a request; a broken payment table reads as
	// the free tier until it recovers.
	p := resolver.Resolve(context.Background(), "user_1", types.PlanMetadata{})
	assert.Equal(t, types.PlanFree, p.ID)
}
