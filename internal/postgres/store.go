// Package postgres persists local mirrors of provider billing resources.
// Every upsert is a single INSERT ... ON CONFLICT statement keyed by the
// provider-assigned id, so concurrent deliveries for the same resource
// converge without read-modify-write races.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pverheyen/heimdall/internal/domain"
)

// Store implements domain.BillingStore on a pgx connection pool.
type Store struct {
	db *pgxpool.Pool
}

// Compile-time check that Store implements domain.BillingStore.
var _ domain.BillingStore = (*Store)(nil)

// NewStore creates a PostgreSQL-backed billing store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return domain.Unavailable(err, "store.ping", "database unreachable")
	}
	return nil
}

// metadataParam encodes metadata for a jsonb column. Nil maps store as an
// empty object so reads never surface NULL.
func metadataParam(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

func scanMetadata(b []byte) map[string]string {
	m := map[string]string{}
	if len(b) > 0 {
		_ = json.Unmarshal(b, &m)
	}
	return m
}

// orNow substitutes the current instant for provider payloads that omit a
// creation timestamp.
func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
