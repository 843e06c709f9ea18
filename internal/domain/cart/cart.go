// Package cart provides caller-facing orchestration over the promotion
// engine: listing available promotions for a cart and applying a promotion's
// discount across cart lines.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

// ListRequest asks which promotions are available for a cart.
type ListRequest struct {
	TotalAmount  decimal.Decimal
	UserID       string
	UserType     string
	Channel      string
	PaymentModes []string
	FacilityName string
	Items        []promotion.CartLine
}

// AvailablePromotion is one candidate promotion with its applicability for
// the given cart.
type AvailablePromotion struct {
	PromotionCode     string                  `json:"promotion_code"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description"`
	OfferType         promotion.OfferType     `json:"offer_type"`
	DiscountAmount    decimal.Decimal         `json:"discount_amount"`
	MinPurchase       decimal.Decimal         `json:"min_purchase"`
	IsApplicable      bool                    `json:"is_applicable"`
	Freebees          []promotion.FreebeeItem `json:"freebees,omitempty"`
	PromotionFacility string                  `json:"promotion_facility"`
}

// ApplyRequest applies a promotion code to a cart.
type ApplyRequest struct {
	CartValue    decimal.Decimal
	PromoCode    string
	TypeHint     promotion.OfferType
	Items        []promotion.CartLine
	UserID       string
	UserType     string
	Channel      string
	PaymentModes []string
	FacilityName string
}

// LineDiscount is one cart line in the apply response. CalculatedSalePrice
// is the post-discount unit price; DiscountAmount is the per-unit reduction.
// Ineligible lines report a zero discount and OfferApplied=false.
type LineDiscount struct {
	SKU                 string          `json:"sku"`
	MRP                 decimal.Decimal `json:"mrp"`
	SalePrice           decimal.Decimal `json:"sale_price"`
	CalculatedSalePrice decimal.Decimal `json:"calculated_sale_price"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	Quantity            decimal.Decimal `json:"quantity"`
	FacilityName        string          `json:"facility_name,omitempty"`
	OfferApplied        bool            `json:"offer_applied"`
}

// Discount is the full-cart apply response.
type Discount struct {
	OriginalCartValue   decimal.Decimal         `json:"original_cart_value"`
	TotalDiscountAmount decimal.Decimal         `json:"total_discount_amount"`
	FinalCartValue      decimal.Decimal         `json:"final_cart_value"`
	PromotionCode       string                  `json:"promotion_code"`
	PromotionType       promotion.OfferType     `json:"promotion_type"`
	OfferSubType        string                  `json:"offer_sub_type"`
	PromotionFacility   string                  `json:"promotion_facility"`
	Items               []LineDiscount          `json:"items"`
	Freebees            []promotion.FreebeeItem `json:"freebees,omitempty"`
}

// PromotionSource combines promotion lookup with candidate listing.
type PromotionSource interface {
	promotion.Repository

	// ListPromotions returns active non-coupon candidates for the facility
	// and channel whose minimum purchase does not exceed the cart total,
	// ordered by priority.
	ListPromotions(ctx context.Context, facility, channel string, totalAmount decimal.Decimal) ([]*promotion.Document, error)
}

// StockReader reports available stock for a warehouse SKU at a facility.
type StockReader interface {
	GetStock(ctx context.Context, facility, sku string) (decimal.Decimal, error)
}

// FreebieRecord is a freebie catalog entry: the gates a freebie line must
// pass at order submission.
type FreebieRecord struct {
	SKU            string
	FacilityName   string
	MinOrderAmount decimal.Decimal
	StartDate      int64
	EndDate        int64
	AvailableQty   decimal.Decimal
}

// FreebieCatalog looks up freebie gating records.
type FreebieCatalog interface {
	Lookup(ctx context.Context, sku, facility string) (*FreebieRecord, error)
}
