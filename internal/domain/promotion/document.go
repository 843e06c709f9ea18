// Package promotion implements the promotion and discount computation engine:
// eligibility filtering, validation, usage gating, and strategy-based
// discount math.
package promotion

import (
	"context"

	"github.com/shopspring/decimal"
)

// OfferType enumerates the supported promotion offer types. The set is
// closed: dispatch over it must be exhaustive so that a new offer type is a
// compile-time-visible gap rather than a silent no-op.
type OfferType string

const (
	// OfferFlatDiscount reduces the cart total by a flat or percentage amount.
	OfferFlatDiscount OfferType = "flat_discount"
	// OfferPercentage is a percentage discount on the cart total.
	OfferPercentage OfferType = "percentage"
	// OfferCashback credits the amount back after delivery; cart prices are untouched.
	OfferCashback OfferType = "cashback"
	// OfferFreebee grants complimentary items; the monetary discount is symbolic.
	OfferFreebee OfferType = "freebee"
	// OfferCoupon is a user-entered code with usage-limit controls. Its
	// monetary math reuses the flat-discount rules.
	OfferCoupon OfferType = "coupon"
)

// SubType refines flat_discount and coupon offers.
type SubType string

const (
	SubTypeFlat       SubType = "flat"
	SubTypePercentage SubType = "percentage"
)

// UsageMode tells the minimum-purchase check how to interpret the supplied
// order amount. A "calculate" call previews a price that already reflects the
// discount; an "order_creation" call submits a total that excludes it, so the
// discount is added back before comparing.
type UsageMode string

const (
	UsageCalculate     UsageMode = "calculate"
	UsageOrderCreation UsageMode = "order_creation"
)

// FreebeeItem is a complimentary item granted by a freebee promotion.
// WhSKU is the warehouse SKU used for stock lookups; it may be empty when the
// facility does not track the item.
type FreebeeItem struct {
	ChildSKU     string          `json:"child_sku"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	WhSKU        string          `json:"wh_sku,omitempty"`
}

// Document is an immutable promotion definition fetched per request from the
// promotions store. Optional caps are pointers so that "absent" and "zero"
// cannot be confused; empty slices mean "no restriction".
type Document struct {
	PromotionCode string
	CouponCode    string
	Name          string
	Description   string

	OfferType    OfferType
	OfferSubType SubType

	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	MaxDiscount        decimal.Decimal
	MinPurchase        decimal.Decimal

	// StartDate and EndDate are epoch seconds; the window is inclusive.
	StartDate int64
	EndDate   int64

	FacilityCode   string
	Channels       []string
	PaymentMethods []string

	ApplicableSKUs     []string
	ExcludedSKUs       []string
	ApplicableCategories []string
	ExcludedCategories   []string

	MaxUsageOfCoupon *int
	MaxUsesPerUser   *int
	UserFrequency    string

	Freebees []FreebeeItem

	Priority int
	IsActive bool
}

// HasSKUFilter reports whether the document restricts eligibility by SKU.
// When true, SKU filtering takes precedence over category inclusion.
func (d *Document) HasSKUFilter() bool {
	return len(d.ApplicableSKUs) > 0 || len(d.ExcludedSKUs) > 0
}

// HasItemFilter reports whether the document restricts eligibility at all,
// by SKU or by category.
func (d *Document) HasItemFilter() bool {
	return d.HasSKUFilter() || len(d.ApplicableCategories) > 0 || len(d.ExcludedCategories) > 0
}

// Result is the engine's output for an applicable promotion.
// Freebees is populated for freebee offers; DiscountPercentage, MaxDiscount
// and OfferSubType for flat_discount and coupon offers.
type Result struct {
	PromotionCode     string          `json:"promotion_code"`
	PromotionType     OfferType       `json:"promotion_type"`
	PromotionDiscount decimal.Decimal `json:"promotion_discount"`

	Freebees []FreebeeItem `json:"freebees,omitempty"`

	DiscountPercentage decimal.Decimal `json:"discount_percentage,omitempty"`
	MaxDiscount        decimal.Decimal `json:"max_discount,omitempty"`
	OfferSubType       SubType         `json:"offer_sub_type,omitempty"`
}

// OrderContext describes the order being priced or submitted.
type OrderContext struct {
	FacilityName string
	TotalAmount  decimal.Decimal
}

// Repository provides promotion lookup and usage counts. Lookups hit the
// promotions search index; usage counts come from the relational orders store.
type Repository interface {
	// GetPromotion resolves a code to an active document for the facility.
	// typeHint disambiguates a code that exists both as a regular promotion
	// and as a coupon; pass OfferCoupon to try the coupon index first.
	// Returns (nil, nil) when no active document matches.
	GetPromotion(ctx context.Context, code, facility string, typeHint OfferType) (*Document, error)

	// GetCouponTotalUsage returns how many orders have redeemed the coupon.
	GetCouponTotalUsage(ctx context.Context, couponCode string) (int, error)

	// GetCouponUserUsage returns how many times the user has redeemed the coupon.
	GetCouponUserUsage(ctx context.Context, couponCode, userID string) (int, error)
}
