// Package stock reads facility stock levels from Redis. Stock is written by
// the warehouse sync pipeline; this service only reads it.
package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/freshmandi/promotion-service/internal/domain/cart"
)

const keyPrefix = "stock"

var _ cart.StockReader = (*RedisReader)(nil)

// Config holds Redis connection settings.
type Config struct {
	URL          string
	Address      string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisReader implements cart.StockReader on top of the shared stock keys.
type RedisReader struct {
	client *redis.Client
}

// stockEntry mirrors the JSON the warehouse sync writes per facility/SKU.
type stockEntry struct {
	Data struct {
		AvailableQuantity decimal.Decimal `json:"available_quantity"`
	} `json:"data"`
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg Config) (*RedisReader, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisReader{client: client}, nil
}

func optionsFromConfig(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, nil
}

// GetStock returns the available quantity for a warehouse SKU at a facility.
// A missing key means the facility does not stock the SKU: zero, not an error.
func (r *RedisReader) GetStock(ctx context.Context, facility, sku string) (decimal.Decimal, error) {
	raw, err := r.client.Get(ctx, stockKey(facility, sku)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("reading stock for %s/%s: %w", facility, sku, err)
	}

	var entry stockEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return decimal.Zero, fmt.Errorf("decoding stock for %s/%s: %w", facility, sku, err)
	}
	return entry.Data.AvailableQuantity, nil
}

// Close shuts down the underlying client.
func (r *RedisReader) Close() error {
	return r.client.Close()
}

func stockKey(facility, sku string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, facility, sku)
}
