package promotion

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a domain-level promotion failure. These are expected,
// user-facing conditions, distinct from collaborator I/O failures which are
// wrapped and surfaced as ErrInternal at the engine boundary.
type ErrorCode string

const (
	CodePromoNotFound           ErrorCode = "PROMO_NOT_FOUND"
	CodePromoExpired            ErrorCode = "PROMO_EXPIRED"
	CodePromoNotStarted         ErrorCode = "PROMO_NOT_STARTED"
	CodeFacilityMismatch        ErrorCode = "FACILITY_MISMATCH"
	CodeChannelNotAllowed       ErrorCode = "CHANNEL_NOT_ALLOWED"
	CodeMinPurchaseNotMet       ErrorCode = "MIN_PURCHASE_NOT_MET"
	CodePaymentMethodNotAllowed ErrorCode = "PAYMENT_METHOD_NOT_ALLOWED"
	CodeCouponUsageLimitReached ErrorCode = "COUPON_USAGE_LIMIT_REACHED"
	CodeCouponUserLimitReached  ErrorCode = "COUPON_USER_LIMIT_REACHED"
	CodeNotFirstPurchase        ErrorCode = "NOT_FIRST_PURCHASE"
	CodeUserFrequencyNotMet     ErrorCode = "USER_FREQUENCY_NOT_MET"
	CodeNoEligibleItems         ErrorCode = "NO_ELIGIBLE_ITEMS"
	CodeInvalidPromotion        ErrorCode = "INVALID_PROMOTION"
	CodeEmptyCart               ErrorCode = "EMPTY_CART"
	CodeInvalidPrice            ErrorCode = "INVALID_PRICE"
	CodeInvalidQuantity         ErrorCode = "INVALID_QUANTITY"
	CodeInternalError           ErrorCode = "INTERNAL_ERROR"
)

// FieldError is one violated precondition: which check failed, on which
// promotion field, and a human-readable message.
type FieldError struct {
	Code    ErrorCode      `json:"code"`
	Field   string         `json:"field"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error is the engine's failure result. For batched validation it carries
// every violated check in Errors; fail-fast gates produce a single entry.
type Error struct {
	Code    ErrorCode    `json:"error_code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = string(fe.Code)
	}
	return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, strings.Join(parts, ", "))
}

// NewError builds a single-code engine failure.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewValidationError wraps a batch of violated checks under INVALID_PROMOTION.
func NewValidationError(errs []FieldError) *Error {
	return &Error{
		Code:    CodeInvalidPromotion,
		Message: "Promotion validation failed",
		Errors:  errs,
	}
}

// FromFieldError promotes a single violated gate to an engine failure,
// keeping the gate's code as the top-level code.
func FromFieldError(fe FieldError) *Error {
	return &Error{
		Code:    fe.Code,
		Message: fe.Message,
		Errors:  []FieldError{fe},
	}
}
