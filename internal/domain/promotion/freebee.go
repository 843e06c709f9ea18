package promotion

import "github.com/shopspring/decimal"

// FreebeeStrategy grants complimentary items. The real value is the item,
// not a price reduction, so the monetary discount is the small symbolic
// amount stored on the promotion document.
type FreebeeStrategy struct{}

// ComputeDiscount returns the document's symbolic discount amount.
func (FreebeeStrategy) ComputeDiscount(doc *Document, _ decimal.Decimal) decimal.Decimal {
	return doc.DiscountAmount
}

// ApplyToItems always returns nil: freebee lines are priced through the
// freebie catalog, existing cart lines are untouched.
func (FreebeeStrategy) ApplyToItems(_ []CartLine, _ decimal.Decimal) []CartLine {
	return nil
}

// Freebees returns the document's complimentary items, dropping malformed
// entries without a child SKU.
func Freebees(doc *Document) []FreebeeItem {
	if len(doc.Freebees) == 0 {
		return nil
	}
	out := make([]FreebeeItem, 0, len(doc.Freebees))
	for _, f := range doc.Freebees {
		if f.ChildSKU == "" {
			continue
		}
		out = append(out, FreebeeItem{
			ChildSKU:     f.ChildSKU,
			SellingPrice: f.SellingPrice,
			WhSKU:        f.WhSKU,
		})
	}
	return out
}
