package promotion

import "github.com/shopspring/decimal"

// CashbackStrategy credits the configured amount back to the customer after
// delivery. Cart line prices are never reduced.
type CashbackStrategy struct{}

// ComputeDiscount returns the configured cashback amount.
func (CashbackStrategy) ComputeDiscount(doc *Document, _ decimal.Decimal) decimal.Decimal {
	return doc.DiscountAmount
}

// ApplyToItems always returns nil: cashback is paid out-of-band.
func (CashbackStrategy) ApplyToItems(_ []CartLine, _ decimal.Decimal) []CartLine {
	return nil
}
