package promotion

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRepo is an in-memory Repository for engine and usage tests.
type stubRepo struct {
	doc    *Document
	getErr error

	totalUsage int
	userUsage  int
	usageErr   error
}

func (s *stubRepo) GetPromotion(_ context.Context, _, _ string, _ OfferType) (*Document, error) {
	return s.doc, s.getErr
}

func (s *stubRepo) GetCouponTotalUsage(_ context.Context, _ string) (int, error) {
	return s.totalUsage, s.usageErr
}

func (s *stubRepo) GetCouponUserUsage(_ context.Context, _, _ string) (int, error) {
	return s.userUsage, s.usageErr
}

func intPtr(n int) *int { return &n }

func TestUsageValidator_MissingCouponCode(t *testing.T) {
	v := NewUsageValidator(&stubRepo{})

	fe, err := v.Validate(context.Background(), &Document{OfferType: OfferCoupon}, "u1")
	require.NoError(t, err)
	require.NotNil(t, fe)
	assert.Equal(t, CodeInvalidPromotion, fe.Code)
}

func TestUsageValidator_TotalCap(t *testing.T) {
	doc := &Document{CouponCode: "SAVE10", MaxUsageOfCoupon: intPtr(100)}

	fe, err := NewUsageValidator(&stubRepo{totalUsage: 100}).Validate(context.Background(), doc, "u1")
	require.NoError(t, err)
	require.NotNil(t, fe)
	assert.Equal(t, CodeCouponUsageLimitReached, fe.Code)

	fe, err = NewUsageValidator(&stubRepo{totalUsage: 99}).Validate(context.Background(), doc, "u1")
	require.NoError(t, err)
	assert.Nil(t, fe)
}

func TestUsageValidator_PerUserCap(t *testing.T) {
	doc := &Document{CouponCode: "SAVE10", MaxUsesPerUser: intPtr(3)}

	fe, err := NewUsageValidator(&stubRepo{userUsage: 3}).Validate(context.Background(), doc, "u1")
	require.NoError(t, err)
	require.NotNil(t, fe)
	assert.Equal(t, CodeCouponUserLimitReached, fe.Code)

	fe, err = NewUsageValidator(&stubRepo{userUsage: 2}).Validate(context.Background(), doc, "u1")
	require.NoError(t, err)
	assert.Nil(t, fe)
}

func TestUsageValidator_NoCapsConfigured(t *testing.T) {
	// Absent caps (nil pointers) mean unlimited; a zero-valued cap would mean
	// "never usable", which is why the fields are pointers.
	doc := &Document{CouponCode: "SAVE10"}

	fe, err := NewUsageValidator(&stubRepo{totalUsage: 1 << 20}).Validate(context.Background(), doc, "u1")
	require.NoError(t, err)
	assert.Nil(t, fe)
}

func TestUsageValidator_TotalCapCheckedFirst(t *testing.T) {
	// Fail-fast: when both caps are violated only the total cap is reported.
	doc := &Document{
		CouponCode:       "SAVE10",
		MaxUsageOfCoupon: intPtr(10),
		MaxUsesPerUser:   intPtr(1),
	}

	fe, err := NewUsageValidator(&stubRepo{totalUsage: 10, userUsage: 5}).
		Validate(context.Background(), doc, "u1")
	require.NoError(t, err)
	require.NotNil(t, fe)
	assert.Equal(t, CodeCouponUsageLimitReached, fe.Code)
}

func TestUsageValidator_RepoFailure(t *testing.T) {
	doc := &Document{CouponCode: "SAVE10", MaxUsageOfCoupon: intPtr(10)}

	fe, err := NewUsageValidator(&stubRepo{usageErr: errors.New("db down")}).
		Validate(context.Background(), doc, "u1")
	require.Error(t, err)
	assert.Nil(t, fe)
}
