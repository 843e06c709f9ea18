package cart

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/freshmandi/promotion-service/internal/domain/promotion"
)

// scanConcurrency bounds the parallel availability scan. Candidate checks
// are read-only and independent, so they fan out safely.
const scanConcurrency = 4

// userTypeDistributor never receives promotions.
const userTypeDistributor = "distributor"

// Service orchestrates cart-level promotion operations. The strict engine is
// used for apply calls; the quiet engine for bulk availability previews so
// expected negatives do not flood the logs.
type Service struct {
	source      PromotionSource
	stock       StockReader
	engine      *promotion.Engine
	quietEngine *promotion.Engine
	lg          *zap.Logger
}

// NewService wires a Service with both engine variants.
func NewService(source PromotionSource, frequencies promotion.FrequencyRegistry, stock StockReader, lg *zap.Logger) *Service {
	return &Service{
		source:      source,
		stock:       stock,
		engine:      promotion.NewEngine(promotion.EngineConfig{}, source, frequencies, lg),
		quietEngine: promotion.NewEngine(promotion.EngineConfig{Quiet: true}, source, frequencies, lg),
		lg:          lg,
	}
}

// ListAvailable returns every candidate promotion for the cart, marking each
// as applicable or not. A failure while checking one candidate only marks
// that candidate inapplicable; other candidates are unaffected.
func (s *Service) ListAvailable(ctx context.Context, req ListRequest) ([]AvailablePromotion, error) {
	if strings.EqualFold(req.UserType, userTypeDistributor) {
		s.lg.Info("promotions disabled for distributor", zap.String("user_id", req.UserID))
		return []AvailablePromotion{}, nil
	}

	candidates, err := s.source.ListPromotions(ctx, req.FacilityName, req.Channel, req.TotalAmount)
	if err != nil {
		return nil, errors.Wrap(err, "list candidate promotions")
	}

	out := make([]AvailablePromotion, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, doc := range candidates {
		g.Go(func() error {
			out[i] = s.checkCandidate(gctx, req, doc)
			return nil
		})
	}
	// Workers never return errors; Wait only propagates context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsApplicable != out[j].IsApplicable {
			return out[i].IsApplicable
		}
		return out[i].DiscountAmount.GreaterThan(out[j].DiscountAmount)
	})

	return out, nil
}

// checkCandidate previews one promotion against the cart. All failures are
// absorbed into IsApplicable=false.
func (s *Service) checkCandidate(ctx context.Context, req ListRequest, doc *promotion.Document) AvailablePromotion {
	eligible := promotion.EligibleItems(req.Items, doc)
	eligibleValue := promotion.EligibleCartValue(eligible)

	applicable := false
	switch {
	case len(eligible) == 0:
	case eligibleValue.LessThan(doc.MinPurchase):
	default:
		result, err := s.quietEngine.ValidateAndCompute(ctx, promotion.Request{
			PromotionCode: doc.PromotionCode,
			Order:         promotion.OrderContext{FacilityName: req.FacilityName, TotalAmount: eligibleValue},
			UserID:        req.UserID,
			Channel:       req.Channel,
			PaymentModes:  req.PaymentModes,
			Document:      doc,
			Usage:         promotion.UsageCalculate,
		})
		switch {
		case err != nil:
		case doc.OfferType == promotion.OfferFreebee:
			applicable = true
		default:
			applicable = result.PromotionDiscount.IsPositive()
		}
	}

	var freebees []promotion.FreebeeItem
	if doc.OfferType == promotion.OfferFreebee {
		freebees = s.sourceableFreebees(ctx, promotion.Freebees(doc), req.Channel, req.FacilityName)
		if req.Channel == "app" && len(freebees) == 0 {
			applicable = false
		}
	}

	discount, err := promotion.ComputeDiscount(doc, req.TotalAmount)
	if err != nil {
		discount = decimal.Zero
		applicable = false
	}

	return AvailablePromotion{
		PromotionCode:     doc.PromotionCode,
		Title:             doc.Name,
		Description:       doc.Description,
		OfferType:         doc.OfferType,
		DiscountAmount:    discount,
		MinPurchase:       doc.MinPurchase,
		IsApplicable:      applicable,
		Freebees:          freebees,
		PromotionFacility: req.FacilityName,
	}
}

// Apply runs the engine in strict mode on the eligible subset of the cart,
// allocates the discount across the eligible lines, and reassembles the full
// cart with untouched ineligible lines.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*Discount, error) {
	if strings.EqualFold(req.UserType, userTypeDistributor) {
		return nil, promotion.NewError(promotion.CodeInvalidPromotion,
			"Promotions are not allowed for distributor accounts")
	}
	if err := promotion.ValidateCartItems(req.Items); err != nil {
		return nil, err
	}

	doc, err := s.source.GetPromotion(ctx, req.PromoCode, req.FacilityName, req.TypeHint)
	if err != nil {
		return nil, errors.Wrap(err, "get promotion")
	}
	if doc == nil || !doc.IsActive {
		return nil, promotion.NewError(promotion.CodePromoNotFound, "Promotion not found")
	}

	eligible := promotion.EligibleItems(req.Items, doc)
	if len(eligible) == 0 {
		return nil, promotion.NewError(promotion.CodeNoEligibleItems,
			"No items in cart are eligible for this promotion")
	}
	eligibleValue := promotion.EligibleCartValue(eligible)

	// Coupon applies are often speculative user input; keep their expected
	// rejections quiet. Other offer types log at normal severity.
	engine := s.engine
	if doc.OfferType == promotion.OfferCoupon {
		engine = s.quietEngine
	}

	result, err := engine.ValidateAndCompute(ctx, promotion.Request{
		PromotionCode: req.PromoCode,
		Order:         promotion.OrderContext{FacilityName: req.FacilityName, TotalAmount: eligibleValue},
		UserID:        req.UserID,
		Channel:       req.Channel,
		PaymentModes:  req.PaymentModes,
		Document:      doc,
		TypeHint:      req.TypeHint,
		Usage:         promotion.UsageCalculate,
	})
	if err != nil {
		return nil, err
	}

	strategy, err := promotion.StrategyFor(doc.OfferType)
	if err != nil {
		return nil, promotion.NewError(promotion.CodeInvalidPromotion,
			"Offer type is not supported")
	}

	totalDiscount := strategy.ComputeDiscount(doc, eligibleValue)
	repriced := strategy.ApplyToItems(eligible, totalDiscount)

	repricedBySKU := make(map[string]promotion.CartLine, len(repriced))
	for _, line := range repriced {
		repricedBySKU[line.SKU] = line
	}

	lines := make([]LineDiscount, len(req.Items))
	for i, item := range req.Items {
		line := LineDiscount{
			SKU:          item.SKU,
			MRP:          item.MRP,
			SalePrice:    item.SalePrice,
			Quantity:     item.Quantity,
			FacilityName: item.FacilityName,
		}
		if updated, ok := repricedBySKU[item.SKU]; ok {
			line.CalculatedSalePrice = updated.SalePrice
			line.DiscountAmount = item.SalePrice.Sub(updated.SalePrice)
			line.OfferApplied = true
		} else {
			line.CalculatedSalePrice = item.SalePrice
			line.DiscountAmount = decimal.Zero
		}
		lines[i] = line
	}

	finalValue := req.CartValue
	if doc.OfferType == promotion.OfferFlatDiscount || doc.OfferType == promotion.OfferCoupon {
		finalValue = req.CartValue.Sub(totalDiscount)
	}

	resp := &Discount{
		OriginalCartValue:   req.CartValue,
		TotalDiscountAmount: totalDiscount,
		FinalCartValue:      finalValue,
		PromotionCode:       req.PromoCode,
		PromotionType:       result.PromotionType,
		OfferSubType:        mapOfferSubType(doc.OfferType, doc.OfferSubType),
		PromotionFacility:   req.FacilityName,
		Items:               lines,
	}
	if doc.OfferType == promotion.OfferFreebee {
		resp.Freebees = s.sourceableFreebees(ctx, promotion.Freebees(doc), req.Channel, req.FacilityName)
	}

	s.lg.Info("cart discount applied",
		zap.String("promotion_code", req.PromoCode),
		zap.String("offer_type", string(doc.OfferType)),
		zap.String("discount", totalDiscount.String()),
	)
	return resp, nil
}

// sourceableFreebees filters freebee items by channel. POS orders are picked
// in-store, so every item passes without a stock check. The app channel ships
// from the facility: items need a warehouse SKU and available stock, and a
// failed stock read drops the item rather than the whole response.
func (s *Service) sourceableFreebees(ctx context.Context, freebees []promotion.FreebeeItem, channel, facility string) []promotion.FreebeeItem {
	if len(freebees) == 0 {
		return nil
	}
	if channel == "pos" {
		return freebees
	}

	out := make([]promotion.FreebeeItem, 0, len(freebees))
	for _, f := range freebees {
		if f.WhSKU == "" {
			s.lg.Warn("freebee skipped: no warehouse sku", zap.String("child_sku", f.ChildSKU))
			continue
		}
		qty, err := s.stock.GetStock(ctx, facility, f.WhSKU)
		if err != nil {
			s.lg.Warn("freebee skipped: stock check failed",
				zap.String("child_sku", f.ChildSKU), zap.Error(err))
			continue
		}
		if !qty.IsPositive() {
			continue
		}
		out = append(out, promotion.FreebeeItem{ChildSKU: f.ChildSKU, SellingPrice: f.SellingPrice})
	}
	return out
}

// mapOfferSubType maps a coupon's raw sub-type to its caller-facing label.
func mapOfferSubType(offerType promotion.OfferType, subType promotion.SubType) string {
	if offerType != promotion.OfferCoupon {
		return ""
	}
	switch strings.ToLower(string(subType)) {
	case "percentage", "flat":
		return "discount"
	case "cashback":
		return "cashback"
	}
	return ""
}
