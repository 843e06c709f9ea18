package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/freshmandi/promotion-service/internal/domain/cart"
	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

const promotionColumns = `promotion_code, coupon_code, name, description,
	offer_type, offer_sub_type, discount_amount, discount_percentage,
	max_discount, min_purchase, start_date, end_date, facility_code,
	channels, payment_methods, applicable_skus, excluded_skus,
	applicable_categories, excluded_categories, max_usage_of_coupon,
	max_uses_per_user, user_frequency, freebees, priority, is_active`

const (
	getPromotionByCodeSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE promotion_code = $1 AND facility_code = $2 AND is_active = TRUE
		  AND start_date <= $3 AND end_date >= $3
		LIMIT 1`

	getPromotionByCouponSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE coupon_code = $1 AND offer_type = 'coupon'
		  AND facility_code = $2 AND is_active = TRUE
		  AND start_date <= $3 AND end_date >= $3
		LIMIT 1`

	listPromotionsSQL = `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE facility_code = $1 AND is_active = TRUE
		  AND (cardinality(channels) = 0 OR $2 = ANY(channels))
		  AND start_date <= $3 AND end_date >= $3
		  AND min_purchase <= $4
		  AND offer_type <> 'coupon'
		ORDER BY priority DESC
		LIMIT 20`

	couponTotalUsageSQL = `SELECT COUNT(*) FROM orders WHERE promotion_code = $1`
	couponUserUsageSQL  = `SELECT COUNT(*) FROM orders WHERE promotion_code = $1 AND customer_id = $2`

	userOrdersCountSQL          = `SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND status NOT IN (0, 10)`
	userOrdersCountByChannelSQL = `SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND order_mode = $2`
)

var _ cart.PromotionSource = (*PromotionRepository)(nil)
var _ promotion.OrderCounter = (*PromotionRepository)(nil)

// PromotionRepository implements promotion lookup, candidate listing, and
// usage counting backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool, now: time.Now}
}

// GetPromotion resolves a code to an active document within its validity
// window. A coupon type hint tries the coupon-code index first and falls
// back to the promotion-code index; any other hint does the reverse, since
// a code may exist as both a regular promotion and a coupon.
func (r *PromotionRepository) GetPromotion(ctx context.Context, code, facility string, typeHint promotion.OfferType) (*promotion.Document, error) {
	if typeHint == promotion.OfferCoupon {
		doc, err := r.getByQuery(ctx, getPromotionByCouponSQL, code, facility)
		if err != nil || doc != nil {
			return doc, err
		}
		return r.getByQuery(ctx, getPromotionByCodeSQL, code, facility)
	}

	doc, err := r.getByQuery(ctx, getPromotionByCodeSQL, code, facility)
	if err != nil || doc != nil {
		return doc, err
	}
	return r.getByQuery(ctx, getPromotionByCouponSQL, code, facility)
}

// ListPromotions returns active non-coupon candidates for the facility and
// channel whose minimum purchase fits the cart total, priority first.
func (r *PromotionRepository) ListPromotions(ctx context.Context, facility, channel string, totalAmount decimal.Decimal) ([]*promotion.Document, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL, facility, channel, r.now().Unix(), totalAmount)
	if err != nil {
		return nil, fmt.Errorf("listing promotions for facility %q: %w", facility, err)
	}

	docs, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("listing promotions for facility %q: %w", facility, err)
	}
	return docs, nil
}

// GetCouponTotalUsage counts orders that redeemed the coupon.
func (r *PromotionRepository) GetCouponTotalUsage(ctx context.Context, couponCode string) (int, error) {
	return r.count(ctx, couponTotalUsageSQL, couponCode)
}

// GetCouponUserUsage counts the user's redemptions of the coupon.
func (r *PromotionRepository) GetCouponUserUsage(ctx context.Context, couponCode, userID string) (int, error) {
	return r.count(ctx, couponUserUsageSQL, couponCode, userID)
}

// GetUserOrdersCount counts the user's completed orders across channels.
// Draft (0) and cancelled (10) orders do not count towards frequency rules.
func (r *PromotionRepository) GetUserOrdersCount(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, userOrdersCountSQL, userID)
}

// GetUserOrdersCountByChannel counts the user's orders placed on one channel.
func (r *PromotionRepository) GetUserOrdersCountByChannel(ctx context.Context, userID, channel string) (int, error) {
	return r.count(ctx, userOrdersCountByChannelSQL, userID, channel)
}

func (r *PromotionRepository) getByQuery(ctx context.Context, sql, code, facility string) (*promotion.Document, error) {
	rows, err := r.pool.Query(ctx, sql, code, facility, r.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}

	doc, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}
	return doc, nil
}

func (r *PromotionRepository) count(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

func scanPromotion(row pgx.CollectableRow) (*promotion.Document, error) {
	var (
		doc          promotion.Document
		offerType    string
		offerSubType string
		freebeesJSON []byte
	)
	err := row.Scan(
		&doc.PromotionCode, &doc.CouponCode, &doc.Name, &doc.Description,
		&offerType, &offerSubType, &doc.DiscountAmount, &doc.DiscountPercentage,
		&doc.MaxDiscount, &doc.MinPurchase, &doc.StartDate, &doc.EndDate,
		&doc.FacilityCode, &doc.Channels, &doc.PaymentMethods,
		&doc.ApplicableSKUs, &doc.ExcludedSKUs,
		&doc.ApplicableCategories, &doc.ExcludedCategories,
		&doc.MaxUsageOfCoupon, &doc.MaxUsesPerUser, &doc.UserFrequency,
		&freebeesJSON, &doc.Priority, &doc.IsActive,
	)
	if err != nil {
		return nil, err
	}

	doc.OfferType = promotion.OfferType(offerType)
	doc.OfferSubType = promotion.SubType(offerSubType)

	if len(freebeesJSON) > 0 {
		if err := json.Unmarshal(freebeesJSON, &doc.Freebees); err != nil {
			return nil, fmt.Errorf("decoding freebees for %q: %w", doc.PromotionCode, err)
		}
	}
	return &doc, nil
}
