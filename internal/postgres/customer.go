package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pverheyen/heimdall/internal/domain"
)

// upsertCustomerSQL never touches the deleted flag on conflict, so an
// out-of-order update cannot resurrect a tombstoned customer.
const upsertCustomerSQL = `
	INSERT INTO stripe_customers (id, account_id, email, name, metadata, deleted, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, false, $6, now())
	ON CONFLICT (id) DO UPDATE SET
		account_id = EXCLUDED.account_id,
		email      = EXCLUDED.email,
		name       = EXCLUDED.name,
		metadata   = EXCLUDED.metadata,
		updated_at = now()`

const tombstoneCustomerSQL = `
	INSERT INTO stripe_customers (id, account_id, email, name, metadata, deleted, created_at, updated_at)
	VALUES ($1, '', '', '', '{}', true, now(), now())
	ON CONFLICT (id) DO UPDATE SET
		deleted    = true,
		updated_at = now()`

// UpsertCustomer inserts or updates a customer mirror. The deleted flag is
// never cleared here; resurrection only happens through an explicit insert of
// a new provider id.
func (s *Store) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	metadata, err := metadataParam(c.Metadata)
	if err != nil {
		return domain.Internal(err, "store.upsert_customer", "failed to encode metadata")
	}

	_, err = s.db.Exec(ctx, upsertCustomerSQL,
		c.ID, c.AccountID, c.Email, c.Name, metadata, orNow(c.CreatedAt))
	if err != nil {
		return domain.Internal(err, "store.upsert_customer", "failed to upsert customer")
	}
	return nil
}

// MarkCustomerDeleted soft-deletes a customer. Unknown ids insert a tombstone
// row so a late-arriving create cannot resurrect a deleted customer.
func (s *Store) MarkCustomerDeleted(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, tombstoneCustomerSQL, id)
	if err != nil {
		return domain.Internal(err, "store.delete_customer", "failed to mark customer deleted")
	}
	return nil
}

// GetCustomer fetches a customer by provider id, including soft-deleted rows.
func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var metadata []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, email, name, metadata, deleted, created_at, updated_at
		FROM stripe_customers
		WHERE id = $1`,
		id).Scan(&c.ID, &c.AccountID, &c.Email, &c.Name, &metadata, &c.Deleted, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_customer", "customer", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "store.get_customer", "failed to fetch customer")
	}
	c.Metadata = scanMetadata(metadata)
	return &c, nil
}
