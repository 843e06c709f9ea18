package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

// stubCatalog is an in-memory FreebieCatalog.
type stubCatalog struct {
	records map[string]*FreebieRecord
	err     error
}

func (s *stubCatalog) Lookup(_ context.Context, sku, _ string) (*FreebieRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[sku], nil
}

func newTestOrderValidator(source PromotionSource, catalog FreebieCatalog) *OrderValidator {
	v := NewOrderValidator(source, catalog, zap.NewNop())
	v.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func flatResult(discount int64) *promotion.Result {
	return &promotion.Result{
		PromotionCode:     "SUMMER100",
		PromotionType:     promotion.OfferFlatDiscount,
		PromotionDiscount: decimal.NewFromInt(discount),
		OfferSubType:      promotion.SubTypeFlat,
	}
}

func submittedLine(sku string, original, submitted float64, qty int64) promotion.CartLine {
	return promotion.CartLine{
		SKU:               sku,
		SalePrice:         decimal.NewFromFloat(submitted),
		OriginalSalePrice: decimal.NewFromFloat(original),
		Quantity:          decimal.NewFromInt(qty),
	}
}

func TestValidateOrderDiscount_FlatAllocationMatches(t *testing.T) {
	v := newTestOrderValidator(&stubSource{}, &stubCatalog{})

	items := []promotion.CartLine{
		submittedLine("A", 300, 250, 1),
		submittedLine("B", 300, 250, 1),
	}

	err := v.ValidateOrderDiscount(context.Background(), items, "SUMMER100", flatResult(100), "BLR-01")
	assert.NoError(t, err)
}

func TestValidateOrderDiscount_WithinTolerance(t *testing.T) {
	v := newTestOrderValidator(&stubSource{}, &stubCatalog{})

	// Expected 250.00, submitted 250.01: inside the one-cent tolerance.
	items := []promotion.CartLine{
		submittedLine("A", 300, 250.01, 1),
		submittedLine("B", 300, 250, 1),
	}

	err := v.ValidateOrderDiscount(context.Background(), items, "SUMMER100", flatResult(100), "BLR-01")
	assert.NoError(t, err)
}

func TestValidateOrderDiscount_PriceMismatch(t *testing.T) {
	v := newTestOrderValidator(&stubSource{}, &stubCatalog{})

	// A claims a deeper discount than the allocation grants.
	items := []promotion.CartLine{
		submittedLine("A", 300, 240, 1),
		submittedLine("B", 300, 250, 1),
	}

	err := v.ValidateOrderDiscount(context.Background(), items, "SUMMER100", flatResult(100), "BLR-01")
	var domainErr *promotion.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, promotion.CodeInvalidPromotion, domainErr.Code)
	assert.Contains(t, domainErr.Message, "SKU A")
}

func TestValidateOrderDiscount_RejectsDiscountOutsideEligibleSet(t *testing.T) {
	doc := flatDoc("DAIRY100", 100, 0)
	doc.ApplicableCategories = []string{"dairy"}
	source := &stubSource{docs: map[string]*promotion.Document{"DAIRY100": doc}}
	v := newTestOrderValidator(source, &stubCatalog{})

	dairy := submittedLine("A", 300, 200, 1)
	dairy.Category = "dairy"
	snacks := submittedLine("B", 300, 290, 1) // discounted but not eligible

	err := v.ValidateOrderDiscount(context.Background(),
		[]promotion.CartLine{dairy, snacks}, "DAIRY100", flatResult(100), "BLR-01")
	var domainErr *promotion.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Message, "Non-eligible item B")
}

func TestValidateOrderDiscount_PercentageRecomputed(t *testing.T) {
	v := newTestOrderValidator(&stubSource{}, &stubCatalog{})

	// 10% of 600 = 60, split 30/30 across equal lines. The stale preview
	// value is ignored in favor of a recomputation over the baseline.
	result := &promotion.Result{
		PromotionCode:      "TEN",
		PromotionType:      promotion.OfferCoupon,
		PromotionDiscount:  decimal.NewFromInt(999),
		OfferSubType:       promotion.SubTypePercentage,
		DiscountPercentage: decimal.NewFromInt(10),
		MaxDiscount:        decimal.NewFromInt(500),
	}
	items := []promotion.CartLine{
		submittedLine("A", 300, 270, 1),
		submittedLine("B", 300, 270, 1),
	}

	err := v.ValidateOrderDiscount(context.Background(), items, "TEN", result, "BLR-01")
	assert.NoError(t, err)
	// The caller's struct is input, not scratch space.
	assert.True(t, result.PromotionDiscount.Equal(decimal.NewFromInt(999)), "got %s", result.PromotionDiscount)
}

func TestValidateOrderDiscount_CashbackSkipsPriceChecks(t *testing.T) {
	v := newTestOrderValidator(&stubSource{}, &stubCatalog{})

	result := &promotion.Result{
		PromotionType:     promotion.OfferCashback,
		PromotionDiscount: decimal.NewFromInt(25),
	}
	items := []promotion.CartLine{submittedLine("A", 300, 300, 1)}

	assert.NoError(t, v.ValidateOrderDiscount(context.Background(), items, "CASH", result, "BLR-01"))
}

func freebeeOrder() ([]promotion.CartLine, *promotion.Result) {
	regular := submittedLine("A", 300, 300, 1)
	free := promotion.CartLine{
		SKU:       "F1",
		SalePrice: decimal.NewFromInt(10),
		Quantity:  decimal.NewFromInt(1),
		IsFreebee: true,
	}
	result := &promotion.Result{
		PromotionCode:     "FREE",
		PromotionType:     promotion.OfferFreebee,
		PromotionDiscount: decimal.NewFromInt(1),
		Freebees: []promotion.FreebeeItem{
			{ChildSKU: "F1", SellingPrice: decimal.NewFromInt(10)},
		},
	}
	return []promotion.CartLine{regular, free}, result
}

func availableRecord() *FreebieRecord {
	return &FreebieRecord{
		SKU:            "F1",
		FacilityName:   "BLR-01",
		MinOrderAmount: decimal.NewFromInt(100),
		AvailableQty:   decimal.NewFromInt(5),
	}
}

func TestValidateOrderDiscount_FreebeePasses(t *testing.T) {
	items, result := freebeeOrder()
	catalog := &stubCatalog{records: map[string]*FreebieRecord{"F1": availableRecord()}}
	v := newTestOrderValidator(&stubSource{}, catalog)

	assert.NoError(t, v.ValidateOrderDiscount(context.Background(), items, "FREE", result, "BLR-01"))
}

func TestValidateOrderDiscount_FreebeeFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(items []promotion.CartLine, result *promotion.Result, record *FreebieRecord)
		wantCode promotion.ErrorCode
	}{
		{
			name: "price mismatch",
			mutate: func(items []promotion.CartLine, _ *promotion.Result, _ *FreebieRecord) {
				items[1].SalePrice = decimal.NewFromInt(12)
			},
			wantCode: promotion.CodeInvalidPromotion,
		},
		{
			name: "sku not in promotion",
			mutate: func(items []promotion.CartLine, result *promotion.Result, _ *FreebieRecord) {
				result.Freebees[0].ChildSKU = "OTHER"
			},
			wantCode: promotion.CodeInvalidPromotion,
		},
		{
			name: "order below catalog minimum",
			mutate: func(_ []promotion.CartLine, _ *promotion.Result, record *FreebieRecord) {
				record.MinOrderAmount = decimal.NewFromInt(1000)
			},
			wantCode: promotion.CodeMinPurchaseNotMet,
		},
		{
			name: "freebie expired",
			mutate: func(_ []promotion.CartLine, _ *promotion.Result, record *FreebieRecord) {
				record.EndDate = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).Unix()
			},
			wantCode: promotion.CodeInvalidPromotion,
		},
		{
			name: "out of stock",
			mutate: func(_ []promotion.CartLine, _ *promotion.Result, record *FreebieRecord) {
				record.AvailableQty = decimal.Zero
			},
			wantCode: promotion.CodeInvalidPromotion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, result := freebeeOrder()
			record := availableRecord()
			tt.mutate(items, result, record)

			catalog := &stubCatalog{records: map[string]*FreebieRecord{"F1": record}}
			v := newTestOrderValidator(&stubSource{}, catalog)

			err := v.ValidateOrderDiscount(context.Background(), items, "FREE", result, "BLR-01")
			var domainErr *promotion.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.wantCode, domainErr.Code)
		})
	}
}

func TestValidateOrderDiscount_FreebeeNotInCatalog(t *testing.T) {
	items, result := freebeeOrder()
	v := newTestOrderValidator(&stubSource{}, &stubCatalog{})

	err := v.ValidateOrderDiscount(context.Background(), items, "FREE", result, "BLR-01")
	var domainErr *promotion.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, promotion.CodeInvalidPromotion, domainErr.Code)
	assert.Contains(t, domainErr.Message, "not found for facility")
}

func TestValidateOrderDiscount_LookupFailureFallsBackToAllLines(t *testing.T) {
	// A failed promotion lookup must not reject the order; the allocation is
	// validated over every submitted line instead.
	source := &stubSource{getErr: errors.New("lookup failed")}
	v := newTestOrderValidator(source, &stubCatalog{})

	items := []promotion.CartLine{
		submittedLine("A", 300, 250, 1),
		submittedLine("B", 300, 250, 1),
	}

	assert.NoError(t, v.ValidateOrderDiscount(context.Background(), items, "SUMMER100", flatResult(100), "BLR-01"))
}
