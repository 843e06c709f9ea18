package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmandi/promotion-service/internal/domain/cart"
)

const lookupFreebieSQL = `SELECT sku, facility_name, min_order_amount,
		start_date, end_date, available_qty
	FROM freebies
	WHERE sku = $1 AND facility_name = $2
	LIMIT 1`

var _ cart.FreebieCatalog = (*FreebieCatalog)(nil)

// FreebieCatalog implements cart.FreebieCatalog backed by PostgreSQL.
type FreebieCatalog struct {
	pool *pgxpool.Pool
}

// NewFreebieCatalog returns a FreebieCatalog that uses the given pool.
func NewFreebieCatalog(pool *pgxpool.Pool) *FreebieCatalog {
	return &FreebieCatalog{pool: pool}
}

// Lookup returns the freebie gating record for a SKU at a facility, or nil
// when the SKU is not offered there.
func (c *FreebieCatalog) Lookup(ctx context.Context, sku, facility string) (*cart.FreebieRecord, error) {
	rows, err := c.pool.Query(ctx, lookupFreebieSQL, sku, facility)
	if err != nil {
		return nil, fmt.Errorf("looking up freebie %q: %w", sku, err)
	}

	record, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (cart.FreebieRecord, error) {
		var rec cart.FreebieRecord
		err := row.Scan(&rec.SKU, &rec.FacilityName, &rec.MinOrderAmount,
			&rec.StartDate, &rec.EndDate, &rec.AvailableQty)
		return rec, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up freebie %q: %w", sku, err)
	}
	return &record, nil
}
