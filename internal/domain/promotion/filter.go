package promotion

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine is a single cart position as seen by the engine. SalePrice is the
// unit price the customer currently sees; OriginalSalePrice is the
// pre-discount baseline used when the UI has already applied a promotion
// preview. Quantity supports fractional values (weighed goods).
type CartLine struct {
	SKU               string
	MRP               decimal.Decimal
	SalePrice         decimal.Decimal
	OriginalSalePrice decimal.Decimal
	Quantity          decimal.Decimal

	Category       string
	SubCategory    string
	SubSubCategory string

	FacilityName string

	// IsFreebee marks lines added to the cart as complimentary items; they
	// are priced through the freebie catalog, not by discount allocation.
	IsFreebee bool
}

// LineTotal returns SalePrice * Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.SalePrice.Mul(l.Quantity)
}

// ValidateCartItems rejects carts the engine cannot price: an empty cart, or
// any line with a non-positive sale price or quantity. The allocation divides
// by line quantities, so these must be screened before discount math.
func ValidateCartItems(items []CartLine) error {
	if len(items) == 0 {
		return NewError(CodeEmptyCart, "Cart cannot be empty")
	}
	for _, item := range items {
		if !item.SalePrice.IsPositive() {
			return NewError(CodeInvalidPrice,
				fmt.Sprintf("Invalid sale price for SKU %s", item.SKU))
		}
		if !item.Quantity.IsPositive() {
			return NewError(CodeInvalidQuantity,
				fmt.Sprintf("Invalid quantity for SKU %s", item.SKU))
		}
	}
	return nil
}

// EligibleItems applies the document's SKU and category filters.
//
// SKU filters take precedence: when the document names any applicable or
// excluded SKUs, items are filtered by SKU and category *inclusion* is not
// reapplied — but category exclusions still remove matches on top of the
// SKU-included set. Without SKU filters, items must match the applicable
// categories (when non-empty) and must not match any excluded category.
// A category present in both lists is effectively excluded.
func EligibleItems(items []CartLine, doc *Document) []CartLine {
	if doc.HasSKUFilter() {
		eligible := filterBySKU(items, doc.ApplicableSKUs, doc.ExcludedSKUs)
		if len(doc.ExcludedCategories) > 0 {
			eligible = filterByCategories(eligible, nil, doc.ExcludedCategories)
		}
		return eligible
	}
	return filterByCategories(items, doc.ApplicableCategories, doc.ExcludedCategories)
}

// MatchesCategories reports whether any of the item's three category levels
// case-insensitively equals one of the target categories. An empty target
// list matches everything.
func MatchesCategories(item CartLine, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	levels := []string{item.Category, item.SubCategory, item.SubSubCategory}
	for _, lvl := range levels {
		lvl = strings.TrimSpace(lvl)
		if lvl == "" {
			continue
		}
		for _, target := range categories {
			if strings.EqualFold(lvl, target) {
				return true
			}
		}
	}
	return false
}

// EligibleCartValue sums SalePrice * Quantity over the given items.
func EligibleCartValue(items []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func filterBySKU(items []CartLine, applicable, excluded []string) []CartLine {
	eligible := make([]CartLine, 0, len(items))
	for _, item := range items {
		// Exclusion wins over inclusion.
		if containsSKU(excluded, item.SKU) {
			continue
		}
		if len(applicable) > 0 && !containsSKU(applicable, item.SKU) {
			continue
		}
		eligible = append(eligible, item)
	}
	return eligible
}

func filterByCategories(items []CartLine, applicable, excluded []string) []CartLine {
	eligible := make([]CartLine, 0, len(items))
	for _, item := range items {
		if len(applicable) > 0 && !MatchesCategories(item, applicable) {
			continue
		}
		if len(excluded) > 0 && MatchesCategories(item, excluded) {
			continue
		}
		eligible = append(eligible, item)
	}
	return eligible
}

func containsSKU(skus []string, sku string) bool {
	for _, s := range skus {
		if s == sku {
			return true
		}
	}
	return false
}
