package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/telemetry"
)

// StripeProvider implements Provider using the Stripe Go SDK.
type StripeProvider struct {
	client  *stripe.Client
	config  StripeConfig
	timeout time.Duration
}

// Compile-time check that StripeProvider implements Provider.
var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 10
	}

	api := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(int64(config.MaxRetries)),
	})

	client := stripe.NewClient(config.APIKey, stripe.WithBackends(&stripe.Backends{
		API:         api,
		Connect:     stripe.GetBackend(stripe.ConnectBackend),
		Uploads:     stripe.GetBackend(stripe.UploadsBackend),
		MeterEvents: stripe.GetBackend(stripe.MeterEventsBackend),
	}))

	return &StripeProvider{
		client:  client,
		config:  config,
		timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}, nil
}

// VerifyWebhookSignature validates a Stripe webhook signature against the
// raw payload bytes. The SDK performs a constant-time HMAC comparison.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if err := webhook.ValidatePayload(payload, signature, secret); err != nil {
		return domain.WrapError(err, domain.ESIGNATURE, "stripe.verify", "webhook signature verification failed")
	}
	return nil
}

// CreateCustomer creates a Stripe customer.
func (s *StripeProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	createParams := &stripe.CustomerCreateParams{
		Email: stripe.String(params.Email),
	}
	if params.Name != "" {
		createParams.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		createParams.AddMetadata(k, v)
	}

	start := time.Now()
	c, err := s.client.V1Customers.Create(ctx, createParams)
	s.observe("create_customer", start)
	if err != nil {
		return nil, mapStripeError(err, "stripe.create_customer", "failed to create customer")
	}

	return &Customer{
		ID:        c.ID,
		Email:     c.Email,
		Name:      c.Name,
		Metadata:  c.Metadata,
		CreatedAt: time.Unix(c.Created, 0).UTC(),
	}, nil
}

// GetInvoice retrieves an invoice and resolves its owning subscription, if
// any.
func (s *StripeProvider) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	inv, err := s.client.V1Invoices.Retrieve(ctx, invoiceID, &stripe.InvoiceRetrieveParams{})
	s.observe("get_invoice", start)
	if err != nil {
		return nil, mapStripeError(err, "stripe.get_invoice", "failed to retrieve invoice")
	}

	out := &Invoice{ID: inv.ID}
	if inv.PeriodEnd > 0 {
		out.PeriodEnd = time.Unix(inv.PeriodEnd, 0).UTC()
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		out.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
	}
	return out, nil
}

// ListResources streams raw records for one syncable resource type. The
// SDK's list iterators fetch pages lazily; cursoring (starting_after =
// last-seen id) is handled inside the SDK.
func (s *StripeProvider) ListResources(ctx context.Context, resource domain.SyncResource, opts domain.SyncOptions, each func(raw json.RawMessage) error) error {
	list := stripe.ListParams{}
	if opts.Limit > 0 {
		list.Limit = stripe.Int64(opts.Limit)
	} else {
		list.Limit = stripe.Int64(100)
	}
	if opts.StartingAfter != "" {
		list.StartingAfter = stripe.String(opts.StartingAfter)
	}

	var created *stripe.RangeQueryParams
	if opts.CreatedAfter > 0 {
		created = &stripe.RangeQueryParams{GreaterThan: opts.CreatedAfter}
	}

	start := time.Now()
	defer s.observe("list_"+string(resource), start)

	switch resource {
	case domain.SyncCustomers:
		params := &stripe.CustomerListParams{ListParams: list, CreatedRange: created}
		for c, err := range s.client.V1Customers.List(ctx, params) {
			if err != nil {
				return domain.Unavailable(err, "stripe.list_customers", "customer listing failed")
			}
			if err := emit(c, each); err != nil {
				return err
			}
		}
	case domain.SyncSubscriptions:
		params := &stripe.SubscriptionListParams{ListParams: list, CreatedRange: created}
		for sub, err := range s.client.V1Subscriptions.List(ctx, params) {
			if err != nil {
				return domain.Unavailable(err, "stripe.list_subscriptions", "subscription listing failed")
			}
			if err := emit(sub, each); err != nil {
				return err
			}
		}
	case domain.SyncProducts:
		params := &stripe.ProductListParams{ListParams: list, CreatedRange: created}
		for p, err := range s.client.V1Products.List(ctx, params) {
			if err != nil {
				return domain.Unavailable(err, "stripe.list_products", "product listing failed")
			}
			if err := emit(p, each); err != nil {
				return err
			}
		}
	case domain.SyncPrices:
		params := &stripe.PriceListParams{ListParams: list, CreatedRange: created}
		for p, err := range s.client.V1Prices.List(ctx, params) {
			if err != nil {
				return domain.Unavailable(err, "stripe.list_prices", "price listing failed")
			}
			if err := emit(p, each); err != nil {
				return err
			}
		}
	default:
		return domain.Errorf(domain.EINVALID, "stripe.list", "unknown resource: %s", resource)
	}

	return nil
}

// emit re-serializes an SDK object and hands it to the caller. The raw form
// keeps the provider's field names and `object` tag, so it flows through the
// same decode path as a live webhook payload.
func emit(v any, each func(raw json.RawMessage) error) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.Internal(err, "stripe.list", "failed to serialize listed resource")
	}
	return each(raw)
}

func (s *StripeProvider) observe(operation string, start time.Time) {
	if telemetry.Billing != nil {
		telemetry.Billing.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
