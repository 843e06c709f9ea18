package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

const upsertPromotionSQL = `INSERT INTO promotions (
		promotion_code, coupon_code, name, description, offer_type,
		offer_sub_type, discount_amount, discount_percentage, max_discount,
		min_purchase, start_date, end_date, facility_code, channels,
		payment_methods, applicable_skus, excluded_skus,
		applicable_categories, excluded_categories, max_usage_of_coupon,
		max_uses_per_user, user_frequency, freebees, priority, is_active
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25
	)
	ON CONFLICT (promotion_code, facility_code) DO UPDATE SET
		coupon_code = EXCLUDED.coupon_code,
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		offer_type = EXCLUDED.offer_type,
		offer_sub_type = EXCLUDED.offer_sub_type,
		discount_amount = EXCLUDED.discount_amount,
		discount_percentage = EXCLUDED.discount_percentage,
		max_discount = EXCLUDED.max_discount,
		min_purchase = EXCLUDED.min_purchase,
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		channels = EXCLUDED.channels,
		payment_methods = EXCLUDED.payment_methods,
		max_usage_of_coupon = EXCLUDED.max_usage_of_coupon,
		max_uses_per_user = EXCLUDED.max_uses_per_user,
		user_frequency = EXCLUDED.user_frequency,
		priority = EXCLUDED.priority,
		is_active = EXCLUDED.is_active`

// UpsertPromotion inserts or replaces a promotion document, keyed on
// (promotion_code, facility_code). Used by the coupon ingest pipeline.
func UpsertPromotion(ctx context.Context, pool *pgxpool.Pool, doc *promotion.Document) error {
	freebees, err := json.Marshal(doc.Freebees)
	if err != nil {
		return fmt.Errorf("encoding freebees for %q: %w", doc.PromotionCode, err)
	}

	emptyIfNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}

	_, err = pool.Exec(ctx, upsertPromotionSQL,
		doc.PromotionCode, doc.CouponCode, doc.Name, doc.Description,
		string(doc.OfferType), string(doc.OfferSubType),
		doc.DiscountAmount, doc.DiscountPercentage, doc.MaxDiscount,
		doc.MinPurchase, doc.StartDate, doc.EndDate, doc.FacilityCode,
		emptyIfNil(doc.Channels), emptyIfNil(doc.PaymentMethods),
		emptyIfNil(doc.ApplicableSKUs), emptyIfNil(doc.ExcludedSKUs),
		emptyIfNil(doc.ApplicableCategories), emptyIfNil(doc.ExcludedCategories),
		doc.MaxUsageOfCoupon, doc.MaxUsesPerUser, doc.UserFrequency,
		freebees, doc.Priority, doc.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upserting promotion %q: %w", doc.PromotionCode, err)
	}
	return nil
}
