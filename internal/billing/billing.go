package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pverheyen/heimdall/internal/domain"
)

// Provider defines the interface to the payments processor.
// Implementations can use Stripe, Paddle, etc.
type Provider interface {
	// VerifyWebhookSignature verifies that a webhook request is authentic.
	// It operates on the raw request bytes, before any JSON parsing: a
	// re-serialized body would not match the signature byte-for-byte.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error

	// CreateCustomer creates a customer record at the provider.
	// Used when the identity provider reports a new registration.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// GetInvoice retrieves an invoice, resolving the owning subscription
	// reference. Used by payment-intent event handling.
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)

	// ListResources streams every record of the given resource type from
	// the provider's paginated list APIs and passes its raw JSON form to
	// each. Listing stops when each returns a non-nil error or the
	// provider reports no further pages.
	ListResources(ctx context.Context, resource domain.SyncResource, opts domain.SyncOptions, each func(raw json.RawMessage) error) error
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer represents a provider customer.
type Customer struct {
	ID        string
	Email     string
	Name      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Invoice carries the invoice fields the webhook pipeline needs: the owning
// subscription reference and the billing period end.
type Invoice struct {
	ID             string
	SubscriptionID string
	PeriodEnd      time.Time
}
