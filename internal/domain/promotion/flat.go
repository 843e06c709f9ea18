package promotion

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FlatDiscountStrategy implements flat and percentage monetary discounts.
// Coupon offers reuse it for their monetary computation.
type FlatDiscountStrategy struct{}

// ComputeDiscount returns the discount for the order amount. For the
// percentage sub-type the result is capped at MaxDiscount and rounded
// half-up to 2 decimal places; otherwise the fixed DiscountAmount is used.
func (FlatDiscountStrategy) ComputeDiscount(doc *Document, orderAmount decimal.Decimal) decimal.Decimal {
	if doc.OfferSubType == SubTypePercentage {
		pct := orderAmount.Mul(doc.DiscountPercentage).Div(hundred)
		return decimal.Min(pct, doc.MaxDiscount).Round(2)
	}
	return doc.DiscountAmount
}

// ApplyToItems allocates the discount across lines proportionally to each
// line's share of the subtotal, quantized per line and converted to a
// per-unit price reduction. The last line does not get a proportional share:
// it absorbs whatever discount remains after all prior lines, so the
// allocation sums exactly to the total discount instead of leaking rounding
// residue. Returns nil when there is nothing to allocate.
func (FlatDiscountStrategy) ApplyToItems(items []CartLine, discount decimal.Decimal) []CartLine {
	if len(items) == 0 || discount.IsZero() {
		return nil
	}

	subtotal := EligibleCartValue(items)
	if subtotal.IsZero() {
		return nil
	}

	remaining := discount
	out := make([]CartLine, len(items))
	for i, item := range items {
		lineTotal := item.LineTotal()

		var lineDiscount decimal.Decimal
		if i == len(items)-1 {
			lineDiscount = remaining
		} else {
			lineDiscount = lineTotal.Div(subtotal).Mul(discount).Round(2)
		}

		perUnit := lineDiscount.Div(item.Quantity).Round(2)

		repriced := item
		repriced.SalePrice = item.SalePrice.Sub(perUnit)
		out[i] = repriced

		remaining = remaining.Sub(perUnit.Mul(item.Quantity))
	}
	return out
}
