package promotion

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Request carries everything the engine needs for one validate-and-compute
// call. Document may be pre-fetched by the caller to skip retrieval;
// TypeHint disambiguates codes that exist both as a promotion and a coupon.
type Request struct {
	PromotionCode string
	Order         OrderContext
	UserID        string
	Channel       string
	PaymentModes  []string

	Document *Document
	TypeHint OfferType
	Usage    UsageMode
}

// EngineConfig holds construction-time engine behaviour.
type EngineConfig struct {
	// Quiet drops expected-failure logs from Warn to Debug. Used when the
	// engine is invoked many times in a row purely to preview availability,
	// so bulk scans do not flood logs with expected negatives. No logic
	// difference, only observability.
	Quiet bool
}

// Engine orchestrates promotion retrieval, validation, usage and frequency
// gating, discount computation, and response assembly. It is stateless per
// call: the only cross-call state is the repository reference, the frequency
// registry, and the logging policy.
type Engine struct {
	repo        Repository
	frequencies FrequencyRegistry
	usage       *UsageValidator
	lg          *zap.Logger
	failLevel   zapcore.Level
}

// NewEngine creates an Engine with the given collaborators.
func NewEngine(cfg EngineConfig, repo Repository, frequencies FrequencyRegistry, lg *zap.Logger) *Engine {
	level := zapcore.WarnLevel
	if cfg.Quiet {
		level = zapcore.DebugLevel
	}
	return &Engine{
		repo:        repo,
		frequencies: frequencies,
		usage:       NewUsageValidator(repo),
		lg:          lg,
		failLevel:   level,
	}
}

// ValidateAndCompute runs the full pipeline: retrieve (unless a document was
// supplied), batch-validate, gate coupon usage and user frequency, compute
// the discount, and assemble the result. Domain failures return *Error;
// collaborator failures are logged and converted to an INTERNAL_ERROR result.
func (e *Engine) ValidateAndCompute(ctx context.Context, req Request) (*Result, error) {
	res, err := e.run(ctx, req)
	if err == nil {
		return res, nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		e.logFailure("promotion rejected", req, err)
		return nil, domainErr
	}

	e.logFailure("promotion processing failed", req, err)
	return nil, NewError(CodeInternalError, "Failed to process promotion")
}

func (e *Engine) run(ctx context.Context, req Request) (*Result, error) {
	doc := req.Document
	if doc == nil {
		var err error
		doc, err = e.retrieve(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	if errs := NewValidator(doc, req.Order, req.Usage).ValidateAll(req.Channel, req.PaymentModes); len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	if doc.OfferType == OfferCoupon {
		fe, err := e.usage.Validate(ctx, doc, req.UserID)
		if err != nil {
			return nil, err
		}
		if fe != nil {
			return nil, FromFieldError(*fe)
		}
	}

	if err := e.validateFrequency(ctx, doc, req.UserID); err != nil {
		return nil, err
	}

	discount, err := ComputeDiscount(doc, req.Order.TotalAmount)
	if err != nil {
		return nil, err
	}

	return buildResult(req.PromotionCode, doc, discount), nil
}

func (e *Engine) retrieve(ctx context.Context, req Request) (*Document, error) {
	if req.Order.FacilityName == "" {
		return nil, NewError(CodeInvalidPromotion, "facility_name is required for promotion lookup")
	}

	doc, err := e.repo.GetPromotion(ctx, req.PromotionCode, req.Order.FacilityName, req.TypeHint)
	if err != nil {
		return nil, errors.Wrap(err, "get promotion")
	}
	if doc == nil || !doc.IsActive {
		return nil, NewError(CodePromoNotFound,
			fmt.Sprintf("Promotion code %q not found or inactive", req.PromotionCode))
	}
	return doc, nil
}

func (e *Engine) validateFrequency(ctx context.Context, doc *Document, userID string) error {
	if doc.UserFrequency == "" {
		return nil
	}

	validator, ok := e.frequencies[doc.UserFrequency]
	if !ok {
		return NewError(CodeInvalidPromotion,
			fmt.Sprintf("Unsupported user_frequency: %s", doc.UserFrequency))
	}

	fe, err := validator.Validate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "validate user frequency")
	}
	if fe != nil {
		return FromFieldError(*fe)
	}
	return nil
}

// ComputeDiscount dispatches to the strategy for the document's offer type.
func ComputeDiscount(doc *Document, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	strategy, err := StrategyFor(doc.OfferType)
	if err != nil {
		return decimal.Zero, err
	}
	return strategy.ComputeDiscount(doc, orderAmount), nil
}

func buildResult(code string, doc *Document, discount decimal.Decimal) *Result {
	res := &Result{
		PromotionCode:     code,
		PromotionType:     doc.OfferType,
		PromotionDiscount: discount,
	}

	switch doc.OfferType {
	case OfferFreebee:
		res.Freebees = Freebees(doc)
	case OfferFlatDiscount, OfferCoupon:
		res.DiscountPercentage = doc.DiscountPercentage
		res.MaxDiscount = doc.MaxDiscount
		res.OfferSubType = doc.OfferSubType
		if res.OfferSubType == "" {
			res.OfferSubType = SubTypeFlat
		}
	case OfferPercentage, OfferCashback:
	}
	return res
}

func (e *Engine) logFailure(msg string, req Request, err error) {
	if ce := e.lg.Check(e.failLevel, msg); ce != nil {
		ce.Write(
			zap.String("promotion_code", req.PromotionCode),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}
}
