// Package handler exposes the promotion engine over HTTP. It decodes JSON
// requests into domain types, delegates to the cart service and order
// validator, and maps domain errors to HTTP status codes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/freshmandi/promotion-service/internal/domain/cart"
	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

// Handler serves the promotion API routes.
type Handler struct {
	carts  *cart.Service
	orders *cart.OrderValidator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(carts *cart.Service, orders *cart.OrderValidator) *Handler {
	return &Handler{carts: carts, orders: orders}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/promotions/available", h.listAvailable)
	r.Post("/cart/discount", h.applyDiscount)
	r.Post("/orders/validate-discount", h.validateOrderDiscount)
	return r
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Code    string                 `json:"error_code"`
	Message string                 `json:"message"`
	Errors  []promotion.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to an HTTP response. Unknown promotion codes
// map to 404, malformed carts to 400, internal failures to 500, and every
// other violated gate to 422. Non-domain errors are logged and hidden behind
// a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *promotion.Error
	if errors.As(err, &domainErr) {
		status := http.StatusUnprocessableEntity
		switch domainErr.Code {
		case promotion.CodePromoNotFound:
			status = http.StatusNotFound
		case promotion.CodeEmptyCart, promotion.CodeInvalidPrice, promotion.CodeInvalidQuantity:
			status = http.StatusBadRequest
		case promotion.CodeInternalError:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Errors:  domainErr.Errors,
		})
		return
	}

	zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    string(promotion.CodeInternalError),
		Message: "Internal server error",
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    "BAD_REQUEST",
		Message: message,
	})
}

func decode(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
