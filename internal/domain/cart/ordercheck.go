package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

// priceTolerance absorbs per-line rounding drift between the client's
// allocation and ours.
var priceTolerance = decimal.NewFromFloat(0.01)

// OrderValidator re-checks a submitted order's line prices against the
// discount the engine computed, so a tampered or stale client cannot submit
// prices that drift from the expected allocation.
type OrderValidator struct {
	source  PromotionSource
	catalog FreebieCatalog
	lg      *zap.Logger
	now     func() time.Time
}

// NewOrderValidator builds an OrderValidator.
func NewOrderValidator(source PromotionSource, catalog FreebieCatalog, lg *zap.Logger) *OrderValidator {
	return &OrderValidator{source: source, catalog: catalog, lg: lg, now: time.Now}
}

// ValidateOrderDiscount recomputes the per-line allocation over the eligible
// subset of the submitted order and rejects the submission when any line
// price deviates from the expected allocation by more than the tolerance.
// Freebee lines must match the promotion's freebee prices and pass the
// freebie catalog gates.
func (v *OrderValidator) ValidateOrderDiscount(ctx context.Context, items []promotion.CartLine, promotionCode string, result *promotion.Result, facility string) error {
	eligible := items

	if facility != "" {
		doc, err := v.source.GetPromotion(ctx, promotionCode, facility, result.PromotionType)
		if err != nil {
			// Category re-filtering is best-effort: fall back to validating
			// the allocation over all lines.
			v.lg.Warn("order check: promotion lookup failed, validating all lines",
				zap.String("promotion_code", promotionCode), zap.Error(err))
		} else if doc != nil && doc.HasItemFilter() {
			eligible = promotion.EligibleItems(items, doc)
			if err := requireNoDiscountOutside(items, eligible); err != nil {
				return err
			}
		}
	}

	switch result.PromotionType {
	case promotion.OfferFlatDiscount, promotion.OfferCoupon:
		return v.validateAllocation(eligible, result)
	case promotion.OfferFreebee:
		return v.validateFreebees(ctx, items, promotionCode, result, facility)
	case promotion.OfferPercentage, promotion.OfferCashback:
		// Percentage rides the flat-discount allocation when applied;
		// cashback never touches line prices.
		return nil
	}
	return nil
}

// validateAllocation recomputes the allocation over the baseline prices and
// compares each expected line price with the submitted one.
func (v *OrderValidator) validateAllocation(eligible []promotion.CartLine, result *promotion.Result) error {
	if len(eligible) == 0 {
		return nil
	}

	base := withBaselinePrices(eligible)
	discount := result.PromotionDiscount
	if result.OfferSubType == promotion.SubTypePercentage {
		// The submitted total may differ from the preview total; recompute
		// the percentage discount over the eligible baseline.
		doc := &promotion.Document{
			OfferSubType:       promotion.SubTypePercentage,
			DiscountPercentage: result.DiscountPercentage,
			MaxDiscount:        result.MaxDiscount,
		}
		discount = promotion.FlatDiscountStrategy{}.ComputeDiscount(doc, promotion.EligibleCartValue(base))
	}

	expected := promotion.FlatDiscountStrategy{}.ApplyToItems(base, discount)
	if expected == nil {
		return promotion.NewError(promotion.CodeInvalidPromotion, "Invalid discount calculation")
	}

	for i, exp := range expected {
		got := eligible[i].SalePrice
		if got.Sub(exp.SalePrice).Abs().GreaterThan(priceTolerance) {
			return promotion.NewError(promotion.CodeInvalidPromotion,
				fmt.Sprintf("Item price mismatch for SKU %s: expected %s, got %s",
					eligible[i].SKU, exp.SalePrice.StringFixed(2), got.StringFixed(2)))
		}
	}
	return nil
}

// validateFreebees checks each freebee-flagged line against the promotion's
// freebee prices and the freebie catalog gates.
func (v *OrderValidator) validateFreebees(ctx context.Context, items []promotion.CartLine, promotionCode string, result *promotion.Result, facility string) error {
	if len(result.Freebees) == 0 {
		return promotion.NewError(promotion.CodeInvalidPromotion,
			fmt.Sprintf("No freebees found for promotion %s", promotionCode))
	}

	prices := make(map[string]decimal.Decimal, len(result.Freebees))
	for _, f := range result.Freebees {
		prices[f.ChildSKU] = f.SellingPrice
	}

	orderAmount := decimal.Zero
	for _, item := range items {
		if !item.IsFreebee {
			orderAmount = orderAmount.Add(item.LineTotal())
		}
	}

	for _, item := range items {
		if !item.IsFreebee {
			continue
		}
		expected, ok := prices[item.SKU]
		if !ok {
			return promotion.NewError(promotion.CodeInvalidPromotion,
				fmt.Sprintf("SKU %s is marked as freebee but not found in promotion %s", item.SKU, promotionCode))
		}
		if item.SalePrice.Sub(expected).Abs().GreaterThanOrEqual(priceTolerance) {
			return promotion.NewError(promotion.CodeInvalidPromotion,
				fmt.Sprintf("Freebee price mismatch for SKU %s: expected %s, got %s",
					item.SKU, expected.StringFixed(2), item.SalePrice.StringFixed(2)))
		}
		if err := v.checkCatalogGates(ctx, item.SKU, facility, orderAmount); err != nil {
			return err
		}
	}
	return nil
}

// checkCatalogGates enforces the freebie catalog's minimum order amount,
// active window, and available quantity for one freebie SKU.
func (v *OrderValidator) checkCatalogGates(ctx context.Context, sku, facility string, orderAmount decimal.Decimal) error {
	record, err := v.catalog.Lookup(ctx, sku, facility)
	if err != nil {
		return promotion.NewError(promotion.CodeInternalError, "Freebie catalog lookup failed")
	}
	if record == nil {
		return promotion.NewError(promotion.CodeInvalidPromotion,
			fmt.Sprintf("Freebie item %s not found for facility %s", sku, facility))
	}
	if orderAmount.LessThan(record.MinOrderAmount) {
		return promotion.NewError(promotion.CodeMinPurchaseNotMet,
			fmt.Sprintf("Minimum order of %s required to get %s for free", record.MinOrderAmount.StringFixed(2), sku))
	}
	now := v.now().Unix()
	if record.StartDate > 0 && now < record.StartDate {
		return promotion.NewError(promotion.CodeInvalidPromotion,
			fmt.Sprintf("Freebie %s is not yet active", sku))
	}
	if record.EndDate > 0 && now > record.EndDate {
		return promotion.NewError(promotion.CodeInvalidPromotion,
			fmt.Sprintf("Freebie %s has expired", sku))
	}
	if !record.AvailableQty.IsPositive() {
		return promotion.NewError(promotion.CodeInvalidPromotion,
			fmt.Sprintf("Freebie %s is out of stock", sku))
	}
	return nil
}

// withBaselinePrices rebases every line on its pre-discount price. Lines
// without a recorded baseline keep their current price.
func withBaselinePrices(items []promotion.CartLine) []promotion.CartLine {
	out := make([]promotion.CartLine, len(items))
	for i, item := range items {
		out[i] = item
		if !item.OriginalSalePrice.IsZero() {
			out[i].SalePrice = item.OriginalSalePrice
		}
	}
	return out
}

// requireNoDiscountOutside verifies that lines outside the eligible subset
// kept their baseline price.
func requireNoDiscountOutside(items, eligible []promotion.CartLine) error {
	eligibleSKUs := make(map[string]struct{}, len(eligible))
	for _, item := range eligible {
		eligibleSKUs[item.SKU] = struct{}{}
	}
	for _, item := range items {
		if _, ok := eligibleSKUs[item.SKU]; ok {
			continue
		}
		if item.OriginalSalePrice.IsZero() {
			continue
		}
		if !item.SalePrice.Equal(item.OriginalSalePrice) {
			return promotion.NewError(promotion.CodeInvalidPromotion,
				fmt.Sprintf("Non-eligible item %s should not have discount applied", item.SKU))
		}
	}
	return nil
}
