package promotion

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// UsageValidator enforces coupon usage caps. Unlike the batched promotion
// checks, usage gating is fail-fast: the first violated cap aborts, since
// these are hard eligibility decisions rather than a checklist.
//
// Counts are read live with no reservation, so two concurrent redemptions of
// a near-limit coupon can both pass and jointly exceed the cap.
type UsageValidator struct {
	repo Repository
}

// NewUsageValidator creates a UsageValidator backed by the given repository.
func NewUsageValidator(repo Repository) *UsageValidator {
	return &UsageValidator{repo: repo}
}

// Validate checks the coupon's total and per-user caps for the given user.
// A nil FieldError means the coupon may be redeemed. The error return carries
// collaborator failures only.
func (v *UsageValidator) Validate(ctx context.Context, doc *Document, userID string) (*FieldError, error) {
	if doc.CouponCode == "" {
		return &FieldError{
			Code:    CodeInvalidPromotion,
			Field:   "coupon_code",
			Message: "Coupon code is missing",
		}, nil
	}

	if doc.MaxUsageOfCoupon != nil {
		total, err := v.repo.GetCouponTotalUsage(ctx, doc.CouponCode)
		if err != nil {
			return nil, errors.Wrap(err, "get coupon total usage")
		}
		if total >= *doc.MaxUsageOfCoupon {
			return &FieldError{
				Code:    CodeCouponUsageLimitReached,
				Field:   "max_usage_of_coupon",
				Message: fmt.Sprintf("Coupon has reached maximum usage limit (%d times)", *doc.MaxUsageOfCoupon),
				Details: map[string]any{"current_usage": total, "max_usage": *doc.MaxUsageOfCoupon},
			}, nil
		}
	}

	if doc.MaxUsesPerUser != nil {
		used, err := v.repo.GetCouponUserUsage(ctx, doc.CouponCode, userID)
		if err != nil {
			return nil, errors.Wrap(err, "get coupon user usage")
		}
		if used >= *doc.MaxUsesPerUser {
			return &FieldError{
				Code:    CodeCouponUserLimitReached,
				Field:   "max_uses_per_user",
				Message: fmt.Sprintf("You have already used this coupon %d time(s). Maximum allowed: %d", used, *doc.MaxUsesPerUser),
				Details: map[string]any{"current_usage": used, "max_per_user": *doc.MaxUsesPerUser},
			}, nil
		}
	}

	return nil, nil
}
