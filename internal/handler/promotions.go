package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/freshmandi/promotion-service/internal/domain/cart"
	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

// cartLine is the wire form of one cart position.
type cartLine struct {
	SKU               string          `json:"sku"`
	MRP               decimal.Decimal `json:"mrp"`
	SalePrice         decimal.Decimal `json:"sale_price"`
	OriginalSalePrice decimal.Decimal `json:"original_sale_price"`
	Quantity          decimal.Decimal `json:"quantity"`
	Category          string          `json:"category,omitempty"`
	SubCategory       string          `json:"sub_category,omitempty"`
	SubSubCategory    string          `json:"sub_sub_category,omitempty"`
	FacilityName      string          `json:"facility_name,omitempty"`
	IsFreebee         bool            `json:"is_freebee,omitempty"`
}

func (l cartLine) toDomain() promotion.CartLine {
	return promotion.CartLine{
		SKU:               l.SKU,
		MRP:               l.MRP,
		SalePrice:         l.SalePrice,
		OriginalSalePrice: l.OriginalSalePrice,
		Quantity:          l.Quantity,
		Category:          l.Category,
		SubCategory:       l.SubCategory,
		SubSubCategory:    l.SubSubCategory,
		FacilityName:      l.FacilityName,
		IsFreebee:         l.IsFreebee,
	}
}

func toDomainLines(lines []cartLine) []promotion.CartLine {
	out := make([]promotion.CartLine, len(lines))
	for i, l := range lines {
		out[i] = l.toDomain()
	}
	return out
}

type listAvailableRequest struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	UserID       string          `json:"user_id"`
	UserType     string          `json:"user_type"`
	Channel      string          `json:"channel"`
	PaymentModes []string        `json:"payment_modes"`
	FacilityName string          `json:"facility_name"`
	Items        []cartLine      `json:"items"`
}

type listAvailableResponse struct {
	Promotions []cart.AvailablePromotion `json:"promotions"`
}

// listAvailable handles POST /promotions/available.
func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	var req listAvailableRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body: "+err.Error())
		return
	}
	if req.FacilityName == "" {
		writeBadRequest(w, "facility_name is required")
		return
	}

	promotions, err := h.carts.ListAvailable(r.Context(), cart.ListRequest{
		TotalAmount:  req.TotalAmount,
		UserID:       req.UserID,
		UserType:     req.UserType,
		Channel:      req.Channel,
		PaymentModes: req.PaymentModes,
		FacilityName: req.FacilityName,
		Items:        toDomainLines(req.Items),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listAvailableResponse{Promotions: promotions})
}

type applyDiscountRequest struct {
	CartValue    decimal.Decimal `json:"cart_value"`
	PromoCode    string          `json:"promo_code"`
	OfferType    string          `json:"offer_type"`
	Items        []cartLine      `json:"items"`
	UserID       string          `json:"user_id"`
	UserType     string          `json:"user_type"`
	Channel      string          `json:"channel"`
	PaymentModes []string        `json:"payment_modes"`
	FacilityName string          `json:"facility_name"`
}

// applyDiscount handles POST /cart/discount.
func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body: "+err.Error())
		return
	}
	if req.PromoCode == "" {
		writeBadRequest(w, "promo_code is required")
		return
	}
	if req.FacilityName == "" {
		writeBadRequest(w, "facility_name is required")
		return
	}

	discount, err := h.carts.Apply(r.Context(), cart.ApplyRequest{
		CartValue:    req.CartValue,
		PromoCode:    req.PromoCode,
		TypeHint:     promotion.OfferType(req.OfferType),
		Items:        toDomainLines(req.Items),
		UserID:       req.UserID,
		UserType:     req.UserType,
		Channel:      req.Channel,
		PaymentModes: req.PaymentModes,
		FacilityName: req.FacilityName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, discount)
}

type validateOrderRequest struct {
	PromotionCode string            `json:"promotion_code"`
	FacilityName  string            `json:"facility_name"`
	Items         []cartLine        `json:"items"`
	Result        *promotion.Result `json:"promotion_result"`
}

type validateOrderResponse struct {
	Valid bool `json:"valid"`
}

// validateOrderDiscount handles POST /orders/validate-discount.
func (h *Handler) validateOrderDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateOrderRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid request body: "+err.Error())
		return
	}
	if req.Result == nil {
		writeBadRequest(w, "promotion_result is required")
		return
	}

	err := h.orders.ValidateOrderDiscount(r.Context(),
		toDomainLines(req.Items), req.PromotionCode, req.Result, req.FacilityName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateOrderResponse{Valid: true})
}
