package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func activeDoc() *Document {
	now := time.Now()
	return &Document{
		PromotionCode:  "SUMMER100",
		Name:           "Summer sale",
		OfferType:      OfferFlatDiscount,
		OfferSubType:   SubTypeFlat,
		DiscountAmount: decimal.NewFromInt(100),
		MinPurchase:    decimal.NewFromInt(500),
		StartDate:      now.Add(-time.Hour).Unix(),
		EndDate:        now.Add(time.Hour).Unix(),
		IsActive:       true,
	}
}

func newTestEngine(repo Repository, frequencies FrequencyRegistry) *Engine {
	return NewEngine(EngineConfig{}, repo, frequencies, zap.NewNop())
}

func TestEngine_FlatDiscount(t *testing.T) {
	doc := activeDoc()
	engine := newTestEngine(&stubRepo{doc: doc}, nil)

	req := Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		UserID:        "u1",
		Channel:       "app",
		Usage:         UsageCalculate,
	}

	res, err := engine.ValidateAndCompute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "SUMMER100", res.PromotionCode)
	assert.Equal(t, OfferFlatDiscount, res.PromotionType)
	assert.True(t, res.PromotionDiscount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, SubTypeFlat, res.OfferSubType)

	// The engine is stateless per call: a repeat request yields the same result.
	again, err := engine.ValidateAndCompute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestEngine_PercentageCoupon(t *testing.T) {
	doc := activeDoc()
	doc.OfferType = OfferCoupon
	doc.CouponCode = "SUMMER100"
	doc.OfferSubType = SubTypePercentage
	doc.DiscountPercentage = decimal.NewFromInt(10)
	doc.MaxDiscount = decimal.NewFromInt(50)

	engine := newTestEngine(&stubRepo{doc: doc}, nil)

	res, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(1000)},
		UserID:        "u1",
		Usage:         UsageCalculate,
	})
	require.NoError(t, err)
	// 10% of 1000 capped at 50.
	assert.True(t, res.PromotionDiscount.Equal(decimal.NewFromInt(50)), "got %s", res.PromotionDiscount)
	assert.Equal(t, SubTypePercentage, res.OfferSubType)
	assert.True(t, res.DiscountPercentage.Equal(decimal.NewFromInt(10)))
	assert.True(t, res.MaxDiscount.Equal(decimal.NewFromInt(50)))
}

func TestEngine_PromotionNotFound(t *testing.T) {
	engine := newTestEngine(&stubRepo{doc: nil}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "NOPE",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodePromoNotFound, domainErr.Code)
}

func TestEngine_InactivePromotion(t *testing.T) {
	doc := activeDoc()
	doc.IsActive = false
	engine := newTestEngine(&stubRepo{doc: doc}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodePromoNotFound, domainErr.Code)
}

func TestEngine_FacilityRequiredForLookup(t *testing.T) {
	engine := newTestEngine(&stubRepo{doc: activeDoc()}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{TotalAmount: decimal.NewFromInt(600)},
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInvalidPromotion, domainErr.Code)
}

func TestEngine_SuppliedDocumentSkipsRetrieval(t *testing.T) {
	// The repo would report not-found; the pre-fetched document wins.
	engine := newTestEngine(&stubRepo{doc: nil}, nil)

	res, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		Document:      activeDoc(),
		Usage:         UsageCalculate,
	})
	require.NoError(t, err)
	assert.True(t, res.PromotionDiscount.Equal(decimal.NewFromInt(100)))
}

func TestEngine_ValidationFailuresAreBatched(t *testing.T) {
	doc := activeDoc()
	doc.Channels = []string{"app"}
	doc.MinPurchase = decimal.NewFromInt(1000)
	engine := newTestEngine(&stubRepo{doc: doc}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		Channel:       "pos",
		Usage:         UsageCalculate,
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInvalidPromotion, domainErr.Code)
	assert.ElementsMatch(t, []ErrorCode{CodeChannelNotAllowed, CodeMinPurchaseNotMet}, codes(domainErr.Errors))
}

func TestEngine_CouponUsageGate(t *testing.T) {
	doc := activeDoc()
	doc.OfferType = OfferCoupon
	doc.CouponCode = "SUMMER100"
	doc.MaxUsesPerUser = intPtr(1)
	engine := newTestEngine(&stubRepo{doc: doc, userUsage: 1}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		UserID:        "u1",
		Usage:         UsageCalculate,
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeCouponUserLimitReached, domainErr.Code)
}

func TestEngine_UsageGateSkippedForNonCoupons(t *testing.T) {
	// Flat promotions have no coupon code; the usage gate must not run.
	doc := activeDoc()
	doc.MaxUsesPerUser = intPtr(0)
	engine := newTestEngine(&stubRepo{doc: doc, userUsage: 10}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		Usage:         UsageCalculate,
	})
	require.NoError(t, err)
}

func TestEngine_FrequencyGate(t *testing.T) {
	doc := activeDoc()
	doc.UserFrequency = FrequencyFirstOrderEver
	frequencies := NewFrequencyRegistry(&stubOrderCounter{total: 2})
	engine := newTestEngine(&stubRepo{doc: doc}, frequencies)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		UserID:        "u1",
		Usage:         UsageCalculate,
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeNotFirstPurchase, domainErr.Code)
}

func TestEngine_UnknownFrequencyRule(t *testing.T) {
	doc := activeDoc()
	doc.UserFrequency = "every_full_moon"
	engine := newTestEngine(&stubRepo{doc: doc}, NewFrequencyRegistry(&stubOrderCounter{}))

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		Usage:         UsageCalculate,
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInvalidPromotion, domainErr.Code)
}

func TestEngine_FreebeeResult(t *testing.T) {
	doc := activeDoc()
	doc.OfferType = OfferFreebee
	doc.DiscountAmount = decimal.NewFromInt(1)
	doc.Freebees = []FreebeeItem{
		{ChildSKU: "F1", SellingPrice: decimal.NewFromInt(10), WhSKU: "WH-F1"},
		{ChildSKU: "", SellingPrice: decimal.NewFromInt(5)},
	}
	engine := newTestEngine(&stubRepo{doc: doc}, nil)

	res, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
		Usage:         UsageCalculate,
	})
	require.NoError(t, err)
	assert.Equal(t, OfferFreebee, res.PromotionType)
	require.Len(t, res.Freebees, 1)
	assert.Equal(t, "F1", res.Freebees[0].ChildSKU)
}

func TestEngine_CollaboratorFailureIsInternal(t *testing.T) {
	engine := newTestEngine(&stubRepo{getErr: errors.New("index down")}, nil)

	_, err := engine.ValidateAndCompute(context.Background(), Request{
		PromotionCode: "SUMMER100",
		Order:         OrderContext{FacilityName: "BLR-01", TotalAmount: decimal.NewFromInt(600)},
	})
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInternalError, domainErr.Code)
	assert.NotContains(t, domainErr.Message, "index down")
}
