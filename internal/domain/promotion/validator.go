package promotion

import (
	"fmt"
	"time"
)

// Validator runs the promotion-wide preconditions. Checks are batched: every
// check runs regardless of earlier failures and all violations are returned
// together, so a caller can surface every reason a promotion is unavailable
// at once.
type Validator struct {
	doc   *Document
	order OrderContext
	usage UsageMode
	now   func() time.Time
}

// NewValidator builds a Validator for one document and order context.
func NewValidator(doc *Document, order OrderContext, usage UsageMode) *Validator {
	return &Validator{doc: doc, order: order, usage: usage, now: time.Now}
}

// ValidateAll runs every precondition and returns the accumulated violations.
// An empty slice means the promotion passes all promotion-wide checks.
func (v *Validator) ValidateAll(channel string, paymentModes []string) []FieldError {
	var errs []FieldError
	errs = appendIfErr(errs, v.validateTimeWindow())
	errs = appendIfErr(errs, v.validateFacility())
	errs = appendIfErr(errs, v.validateChannel(channel))
	errs = appendIfErr(errs, v.validateMinPurchase())
	errs = appendIfErr(errs, v.validatePaymentMethod(paymentModes))
	return errs
}

func (v *Validator) validateTimeWindow() *FieldError {
	now := v.now().Unix()
	switch {
	case now < v.doc.StartDate:
		return &FieldError{
			Code:    CodePromoNotStarted,
			Field:   "start_date",
			Message: "Promotion has not started yet",
		}
	case now > v.doc.EndDate:
		return &FieldError{
			Code:    CodePromoExpired,
			Field:   "end_date",
			Message: "Promotion has expired",
		}
	}
	return nil
}

func (v *Validator) validateFacility() *FieldError {
	if v.doc.FacilityCode == "" || v.doc.FacilityCode == v.order.FacilityName {
		return nil
	}
	return &FieldError{
		Code:    CodeFacilityMismatch,
		Field:   "facility_code",
		Message: fmt.Sprintf("Promotion not valid for facility %s", v.order.FacilityName),
	}
}

func (v *Validator) validateChannel(channel string) *FieldError {
	if len(v.doc.Channels) == 0 {
		return nil
	}
	for _, c := range v.doc.Channels {
		if c == channel {
			return nil
		}
	}
	return &FieldError{
		Code:    CodeChannelNotAllowed,
		Field:   "channels",
		Message: fmt.Sprintf("Promotion not valid for channel %s", channel),
	}
}

// validateMinPurchase compares the order amount against the document's
// minimum purchase. The comparison base depends on call context: a
// "calculate" preview already reflects the discount and is compared as-is,
// while an "order_creation" submission excludes it, so the discount is added
// back first. Cashback offers always compare the raw amount.
func (v *Validator) validateMinPurchase() *FieldError {
	amount := v.order.TotalAmount
	if v.doc.OfferType != OfferCashback && v.usage == UsageOrderCreation {
		amount = amount.Add(v.doc.DiscountAmount)
	}
	if amount.GreaterThanOrEqual(v.doc.MinPurchase) {
		return nil
	}
	return &FieldError{
		Code:    CodeMinPurchaseNotMet,
		Field:   "total_amount",
		Message: fmt.Sprintf("Minimum purchase of %s not met", v.doc.MinPurchase.StringFixed(2)),
		Details: map[string]any{
			"required": v.doc.MinPurchase.InexactFloat64(),
			"provided": v.order.TotalAmount.InexactFloat64(),
		},
	}
}

func (v *Validator) validatePaymentMethod(paymentModes []string) *FieldError {
	if len(v.doc.PaymentMethods) == 0 {
		return nil
	}
	for _, pm := range paymentModes {
		for _, allowed := range v.doc.PaymentMethods {
			if pm == allowed {
				return nil
			}
		}
	}
	return &FieldError{
		Code:    CodePaymentMethodNotAllowed,
		Field:   "payment_methods",
		Message: "Payment method not allowed for this promotion",
	}
}

func appendIfErr(errs []FieldError, fe *FieldError) []FieldError {
	if fe != nil {
		errs = append(errs, *fe)
	}
	return errs
}
