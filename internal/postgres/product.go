package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pverheyen/heimdall/internal/domain"
)

const upsertProductSQL = `
	INSERT INTO stripe_products (id, name, description, active, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (id) DO UPDATE SET
		name        = EXCLUDED.name,
		description = EXCLUDED.description,
		active      = EXCLUDED.active,
		metadata    = EXCLUDED.metadata,
		updated_at  = now()`

// UpsertProduct inserts or updates a product mirror.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	metadata, err := metadataParam(p.Metadata)
	if err != nil {
		return domain.Internal(err, "store.upsert_product", "failed to encode metadata")
	}

	_, err = s.db.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Active, metadata, orNow(p.CreatedAt))
	if err != nil {
		return domain.Internal(err, "store.upsert_product", "failed to upsert product")
	}
	return nil
}

// DeactivateProduct soft-deletes a product. The row is kept: existing prices
// and subscriptions still reference it. Unknown ids are ignored.
func (s *Store) DeactivateProduct(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE stripe_products
		SET active = false, updated_at = now()
		WHERE id = $1`,
		id)
	if err != nil {
		return domain.Internal(err, "store.deactivate_product", "failed to deactivate product")
	}
	return nil
}

// GetProduct fetches a product by provider id.
func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	var metadata []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, active, metadata, created_at, updated_at
		FROM stripe_products
		WHERE id = $1`,
		id).Scan(&p.ID, &p.Name, &p.Description, &p.Active, &metadata, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("store.get_product", "product", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "store.get_product", "failed to fetch product")
	}
	p.Metadata = scanMetadata(metadata)
	return &p, nil
}
