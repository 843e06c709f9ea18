package promotion

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Well-known user frequency rules.
const (
	FrequencyFirstOrderEver = "first_order_ever"
	FrequencyFirstOrderApp  = "first_order_app"
	FrequencyFirstOrderPOS  = "first_order_pos"
)

// FrequencyValidator decides whether a user satisfies a frequency rule such
// as "first order ever". A nil FieldError means the rule is satisfied.
type FrequencyValidator interface {
	Validate(ctx context.Context, userID string) (*FieldError, error)
}

// FrequencyRegistry maps rule names to validators. It is built explicitly at
// process startup and passed into the engine, so tests can substitute fakes
// without patching globals. An unrecognized rule name is a configuration
// error, never a silent pass.
type FrequencyRegistry map[string]FrequencyValidator

// OrderCounter reports a user's historical order counts.
type OrderCounter interface {
	GetUserOrdersCount(ctx context.Context, userID string) (int, error)
	GetUserOrdersCountByChannel(ctx context.Context, userID, channel string) (int, error)
}

// NewFrequencyRegistry wires the standard first-order rules against the
// given order counter.
func NewFrequencyRegistry(counter OrderCounter) FrequencyRegistry {
	return FrequencyRegistry{
		FrequencyFirstOrderEver: firstOrderValidator{counter: counter},
		FrequencyFirstOrderApp:  firstOrderValidator{counter: counter, channel: "app"},
		FrequencyFirstOrderPOS:  firstOrderValidator{counter: counter, channel: "pos"},
	}
}

// firstOrderValidator passes only for users with no prior orders, optionally
// scoped to a single sales channel.
type firstOrderValidator struct {
	counter OrderCounter
	channel string
}

func (v firstOrderValidator) Validate(ctx context.Context, userID string) (*FieldError, error) {
	var (
		count int
		err   error
	)
	if v.channel == "" {
		count, err = v.counter.GetUserOrdersCount(ctx, userID)
	} else {
		count, err = v.counter.GetUserOrdersCountByChannel(ctx, userID, v.channel)
	}
	if err != nil {
		return nil, errors.Wrap(err, "count user orders")
	}

	if count >= 1 {
		msg := "Promotion only for users with no previous orders"
		details := map[string]any{"user_orders_count": count}
		if v.channel != "" {
			msg = fmt.Sprintf("Promotion only for users with no previous %s orders", v.channel)
			details["channel"] = v.channel
		}
		return &FieldError{
			Code:    CodeNotFirstPurchase,
			Field:   "user_frequency",
			Message: msg,
			Details: details,
		}, nil
	}
	return nil, nil
}
