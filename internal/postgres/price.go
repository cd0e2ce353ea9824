package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pverheyen/heimdall/internal/domain"
)

const upsertPriceSQL = `
	INSERT INTO stripe_prices (
		id, product_id, currency, unit_amount, type,
		recurring_interval, recurring_interval_count,
		active, metadata, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	ON CONFLICT (id) DO UPDATE SET
		product_id               = EXCLUDED.product_id,
		currency                 = EXCLUDED.currency,
		unit_amount              = EXCLUDED.unit_amount,
		type                     = EXCLUDED.type,
		recurring_interval       = EXCLUDED.recurring_interval,
		recurring_interval_count = EXCLUDED.recurring_interval_count,
		active                   = EXCLUDED.active,
		metadata                 = EXCLUDED.metadata,
		updated_at               = now()`

// UpsertPrice inserts or updates a price mirror. Legacy plans land here too,
// persisted as recurring prices.
func (s *Store) UpsertPrice(ctx context.Context, p domain.Price) error {
	metadata, err := metadataParam(p.Metadata)
	if err != nil {
		return domain.Internal(err, "store.upsert_price", "failed to encode metadata")
	}

	var interval *string
	var intervalCount *int64
	if p.Recurring != nil {
		interval = &p.Recurring.Interval
		intervalCount = &p.Recurring.IntervalCount
	}

	_, err = s.db.Exec(ctx, upsertPriceSQL,
		p.ID, p.ProductID, p.Currency, p.UnitAmount, p.Type,
		interval, intervalCount, p.Active, metadata, orNow(p.CreatedAt))
	if err != nil {
		return domain.Internal(err, "store.upsert_price", "failed to upsert price")
	}
	return nil
}

// DeactivatePrice soft-deletes a price. Unknown ids are ignored.
func (s *Store) DeactivatePrice(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE stripe_prices
		SET active = false, updated_at = now()
		WHERE id = $1`,
		id)
	if err != nil {
		return domain.Internal(err, "store.deactivate_price", "failed to deactivate price")
	}
	return nil
}

// GetPrice fetches a price by provider id.
func (s *Store) GetPrice(ctx context.Context, id string) (*domain.Price, error) {
	var p domain.Price
	var metadata []byte
	var interval *string
	var intervalCount *int64
	err := s.db.QueryRow(ctx, `
		SELECT id, product_id, currency, unit_amount, type,
		       recurring_interval, recurring_interval_count,
		       active, metadata, created_at, updated_at
		FROM stripe_prices
		WHERE id = $1`,
		id).Scan(&p.ID, &p.ProductID, &p.Currency, &p.UnitAmount, &p.Type,
		&interval, &intervalCount, &p.Active, &metadata, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_price", "price", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "store.get_price", "failed to fetch price")
	}

	p.Metadata = scanMetadata(metadata)
	if interval != nil {
		p.Recurring = &domain.Recurring{Interval: *interval}
		if intervalCount != nil {
			p.Recurring.IntervalCount = *intervalCount
		}
	}
	return &p, nil
}
