package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pverheyen/heimdall/internal/domain"
)

const upsertSubscriptionSQL = `
	INSERT INTO stripe_subscriptions (
		id, customer_id, status, price_id, quantity, cancel_at_period_end,
		current_period_start, current_period_end, cancel_at, canceled_at,
		metadata, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
	ON CONFLICT (id) DO UPDATE SET
		customer_id          = EXCLUDED.customer_id,
		status               = EXCLUDED.status,
		price_id             = EXCLUDED.price_id,
		quantity             = EXCLUDED.quantity,
		cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		current_period_start = EXCLUDED.current_period_start,
		current_period_end   = EXCLUDED.current_period_end,
		cancel_at            = EXCLUDED.cancel_at,
		canceled_at          = EXCLUDED.canceled_at,
		metadata             = EXCLUDED.metadata,
		updated_at           = now()`

// setSubscriptionStatusSQL keeps the stored period end when none is supplied.
const setSubscriptionStatusSQL = `
	UPDATE stripe_subscriptions
	SET status             = $2,
	    current_period_end = COALESCE($3, current_period_end),
	    updated_at         = now()
	WHERE id = $1`

// UpsertSubscription inserts or updates a subscription mirror.
func (s *Store) UpsertSubscription(ctx context.Context, sub domain.Subscription) error {
	metadata, err := metadataParam(sub.Metadata)
	if err != nil {
		return domain.Internal(err, "store.upsert_subscription", "failed to encode metadata")
	}

	_, err = s.db.Exec(ctx, upsertSubscriptionSQL,
		sub.ID, sub.CustomerID, string(sub.Status), sub.PriceID, sub.Quantity,
		sub.CancelAtPeriodEnd, nullableTime(sub.CurrentPeriodStart), nullableTime(sub.CurrentPeriodEnd),
		sub.CancelAt, sub.CanceledAt, metadata, orNow(sub.CreatedAt))
	if err != nil {
		return domain.Internal(err, "store.upsert_subscription", "failed to upsert subscription")
	}
	return nil
}

// SetSubscriptionStatus updates a subscription's status, and its period end
// when one is supplied. Unknown ids are ignored: payment and invoice events
// can reference subscriptions this service has never seen.
func (s *Store) SetSubscriptionStatus(ctx context.Context, id string, status domain.SubscriptionStatus, periodEnd *time.Time) error {
	_, err := s.db.Exec(ctx, setSubscriptionStatusSQL, id, string(status), periodEnd)
	if err != nil {
		return domain.Internal(err, "store.set_subscription_status", "failed to update subscription status")
	}
	return nil
}

// GetSubscription fetches a subscription by provider id.
func (s *Store) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	var sub domain.Subscription
	var status string
	var metadata []byte
	var periodStart, periodEnd *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT id, customer_id, status, price_id, quantity, cancel_at_period_end,
		       current_period_start, current_period_end, cancel_at, canceled_at,
		       metadata, created_at, updated_at
		FROM stripe_subscriptions
		WHERE id = $1`,
		id).Scan(&sub.ID, &sub.CustomerID, &status, &sub.PriceID, &sub.Quantity,
		&sub.CancelAtPeriodEnd, &periodStart, &periodEnd, &sub.CancelAt, &sub.CanceledAt,
		&metadata, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_subscription", "subscription", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "store.get_subscription", "failed to fetch subscription")
	}

	sub.Status = domain.CoerceSubscriptionStatus(status)
	sub.Metadata = scanMetadata(metadata)
	if periodStart != nil {
		sub.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	return &sub, nil
}

// nullableTime maps the zero instant to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
