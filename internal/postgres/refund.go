package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pverheyen/heimdall/internal/domain"
)

// upsertRefundSQL's conflict clause is guarded: rows already in a terminal
// status are never overwritten.
const upsertRefundSQL = `
	INSERT INTO stripe_refunds (
		id, amount, currency, payment_intent_id, status,
		reason, failure_reason, receipt_number,
		metadata, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	ON CONFLICT (id) DO UPDATE SET
		amount            = EXCLUDED.amount,
		currency          = EXCLUDED.currency,
		payment_intent_id = EXCLUDED.payment_intent_id,
		status            = EXCLUDED.status,
		reason            = EXCLUDED.reason,
		failure_reason    = EXCLUDED.failure_reason,
		receipt_number    = EXCLUDED.receipt_number,
		metadata          = EXCLUDED.metadata,
		updated_at        = now()
	WHERE stripe_refunds.status NOT IN ('succeeded', 'canceled')`

// UpsertRefund inserts or updates a refund mirror. Rows already in a
// terminal status are left untouched: out-of-order deliveries must not
// overwrite a settled refund.
func (s *Store) UpsertRefund(ctx context.Context, r domain.Refund) error {
	metadata, err := metadataParam(r.Metadata)
	if err != nil {
		return domain.Internal(err, "store.upsert_refund", "failed to encode metadata")
	}

	_, err = s.db.Exec(ctx, upsertRefundSQL,
		r.ID, r.Amount, r.Currency, r.PaymentIntentID, string(r.Status),
		r.Reason, r.FailureReason, r.ReceiptNumber, metadata, orNow(r.CreatedAt))
	if err != nil {
		return domain.Internal(err, "store.upsert_refund", "failed to upsert refund")
	}
	return nil
}

// GetRefund fetches a refund by provider id.
func (s *Store) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	var r domain.Refund
	var status string
	var metadata []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, amount, currency, payment_intent_id, status,
		       reason, failure_reason, receipt_number,
		       metadata, created_at, updated_at
		FROM stripe_refunds
		WHERE id = $1`,
		id).Scan(&r.ID, &r.Amount, &r.Currency, &r.PaymentIntentID, &status,
		&r.Reason, &r.FailureReason, &r.ReceiptNumber, &metadata, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_refund", "refund", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "store.get_refund", "failed to fetch refund")
	}

	r.Status = domain.CoerceRefundStatus(status)
	r.Metadata = scanMetadata(metadata)
	return &r, nil
}
