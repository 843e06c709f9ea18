package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Strategy is the polymorphic discount behaviour of an offer type.
type Strategy interface {
	// ComputeDiscount returns the total monetary discount for the order amount.
	ComputeDiscount(doc *Document, orderAmount decimal.Decimal) decimal.Decimal

	// ApplyToItems allocates the discount across cart lines, returning the
	// repriced lines. It returns nil when the offer type performs no
	// item-level repricing (cashback, freebee) or the allocation is a no-op.
	ApplyToItems(items []CartLine, discount decimal.Decimal) []CartLine
}

// StrategyFor resolves the strategy for an offer type. The switch is
// exhaustive over the closed OfferType set; coupon and percentage offers
// reuse the flat-discount math.
func StrategyFor(offerType OfferType) (Strategy, error) {
	switch offerType {
	case OfferFlatDiscount, OfferPercentage, OfferCoupon:
		return FlatDiscountStrategy{}, nil
	case OfferCashback:
		return CashbackStrategy{}, nil
	case OfferFreebee:
		return FreebeeStrategy{}, nil
	default:
		return nil, errors.Errorf("unsupported offer type: %q", offerType)
	}
}
