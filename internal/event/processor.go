package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/billing"
	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/events"
)

// InvoiceResolver looks up an invoice so payment events can be traced back to
// their owning subscription.
type InvoiceResolver interface {
	GetInvoice(ctx context.Context, invoiceID string) (*billing.Invoice, error)
}

// Reconciler pushes subscription state to the identity provider. Failures are
// handled inside the reconciler; the pipeline never blocks on it.
type Reconciler interface {
	SubscriptionChanged(ctx context.Context, sub domain.Subscription)
}

// Processor routes a verified event envelope to its category handler. The
// same processor serves live webhook deliveries and synthetic backfill
// envelopes.
type Processor struct {
	store      domain.BillingStore
	invoices   InvoiceResolver
	reconciler Reconciler
	publisher  events.Publisher
	logger     zerolog.Logger
}

// NewProcessor creates an event processor. reconciler and publisher may be
// nil when those stages are disabled.
func NewProcessor(store domain.BillingStore, invoices InvoiceResolver, reconciler Reconciler, publisher events.Publisher, logger zerolog.Logger) *Processor {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Processor{
		store:      store,
		invoices:   invoices,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger.With().Str("component", "processor").Logger(),
	}
}

// Process handles one event envelope. Unknown event types are acknowledged
// without action. A payload whose object tag does not match its event type
// is rejected before any decode of the full shape.
func (p *Processor) Process(ctx context.Context, env Envelope) error {
	category, ok := Classify(env.Type)
	if !ok {
		p.logger.Debug().
			Str("event_id", env.ID).
			Str("event_type", env.Type).
			Msg("unhandled event type")
		return nil
	}

	if err := p.guardObjectTag(env, category); err != nil {
		return err
	}

	switch category {
	case CategoryCustomer:
		return p.handleCustomer(ctx, env)
	case CategorySubscription:
		return p.handleSubscription(ctx, env)
	case CategoryPrice:
		return p.handlePrice(ctx, env)
	case CategoryProduct:
		return p.handleProduct(ctx, env)
	case CategoryPayment:
		return p.handlePayment(ctx, env)
	case CategoryInvoice:
		return p.handleInvoice(ctx, env)
	case CategoryRefund:
		return p.handleRefund(ctx, env)
	case CategoryPlan:
		return p.handlePlan(ctx, env)
	case CategoryPaymentMethod, CategoryUsageRecord, CategoryCoupon, CategoryPromotionCode:
		return p.handleObserved(env, category)
	default:
		return nil
	}
}

// guardObjectTag rejects payloads whose `object` field does not match the
// kind the event type implies. This catches malformed or mislabeled payloads
// before a lenient struct decode could zero-fill them.
func (p *Processor) guardObjectTag(env Envelope, category Category) error {
	want := category.ObjectTag()
	if want == "" {
		return nil
	}

	var tag objectTag
	if err := json.Unmarshal(env.Data.Object, &tag); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.guard", "malformed event payload")
	}
	if tag.Object != want {
		return domain.Errorf(domain.EPAYLOAD, "event.guard",
			"payload object %q does not match event type %s", tag.Object, env.Type)
	}
	return nil
}

func (p *Processor) handleCustomer(ctx context.Context, env Envelope) error {
	var wc wireCustomer
	if err := json.Unmarshal(env.Data.Object, &wc); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.customer", "malformed customer payload")
	}

	if env.Type == TypeCustomerDeleted || wc.Deleted {
		if err := p.store.MarkCustomerDeleted(ctx, wc.ID); err != nil {
			return err
		}
		p.logger.Info().Str("customer_id", wc.ID).Msg("customer marked deleted")
		p.publish(env, CategoryCustomer, wc.ID)
		return nil
	}

	customer := domain.Customer{
		ID:        wc.ID,
		AccountID: wc.Metadata["accountId"],
		Email:     wc.Email,
		Name:      wc.Name,
		Metadata:  wc.Metadata,
		CreatedAt: wc.Created.Time(),
	}
	if err := p.store.UpsertCustomer(ctx, customer); err != nil {
		return err
	}

	p.logger.Info().
		Str("customer_id", wc.ID).
		Str("account_id", customer.AccountID).
		Msg("customer upserted")
	p.publish(env, CategoryCustomer, wc.ID)
	return nil
}

func (p *Processor) handleSubscription(ctx context.Context, env Envelope) error {
	var ws wireSubscription
	if err := json.Unmarshal(env.Data.Object, &ws); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.subscription", "malformed subscription payload")
	}

	sub := domain.Subscription{
		ID:                 ws.ID,
		CustomerID:         ws.Customer.String(),
		Status:             domain.CoerceSubscriptionStatus(ws.Status),
		PriceID:            ws.priceID(),
		Quantity:           ws.quantity(),
		CancelAtPeriodEnd:  ws.CancelAtPeriodEnd,
		CurrentPeriodStart: ws.periodStart().Time(),
		CurrentPeriodEnd:   ws.periodEnd().Time(),
		CancelAt:           ws.CancelAt.TimePtr(),
		CanceledAt:         ws.CanceledAt.TimePtr(),
		Metadata:           ws.Metadata,
		CreatedAt:          ws.Created.Time(),
	}
	if err := p.store.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	p.logger.Info().
		Str("subscription_id", sub.ID).
		Str("customer_id", sub.CustomerID).
		Str("status", string(sub.Status)).
		Msg("subscription upserted")

	// Identity state follows create/update only; deletions arrive as a
	// final update carrying status canceled.
	if p.reconciler != nil && env.Type != TypeSubscriptionDeleted {
		p.reconciler.SubscriptionChanged(ctx, sub)
	}

	p.publish(env, CategorySubscription, sub.ID)
	return nil
}

func (p *Processor) handlePrice(ctx context.Context, env Envelope) error {
	var wp wirePrice
	if err := json.Unmarshal(env.Data.Object, &wp); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.price", "malformed price payload")
	}

	if env.Type == TypePriceDeleted {
		if err := p.store.DeactivatePrice(ctx, wp.ID); err != nil {
			return err
		}
		p.logger.Info().Str("price_id", wp.ID).Msg("price deactivated")
		p.publish(env, CategoryPrice, wp.ID)
		return nil
	}

	price := domain.Price{
		ID:         wp.ID,
		ProductID:  wp.Product.String(),
		Currency:   wp.Currency,
		UnitAmount: wp.UnitAmount,
		Type:       wp.Type,
		Active:     wp.Active,
		Metadata:   wp.Metadata,
		CreatedAt:  wp.Created.Time(),
	}
	if wp.Recurring != nil {
		price.Recurring = &domain.Recurring{
			Interval:      wp.Recurring.Interval,
			IntervalCount: wp.Recurring.IntervalCount,
		}
	}
	if err := p.store.UpsertPrice(ctx, price); err != nil {
		return err
	}

	p.logger.Info().Str("price_id", wp.ID).Str("product_id", price.ProductID).Msg("price upserted")
	p.publish(env, CategoryPrice, wp.ID)
	return nil
}

func (p *Processor) handleProduct(ctx context.Context, env Envelope) error {
	var wp wireProduct
	if err := json.Unmarshal(env.Data.Object, &wp); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.product", "malformed product payload")
	}

	if env.Type == TypeProductDeleted {
		if err := p.store.DeactivateProduct(ctx, wp.ID); err != nil {
			return err
		}
		p.logger.Info().Str("product_id", wp.ID).Msg("product deactivated")
		p.publish(env, CategoryProduct, wp.ID)
		return nil
	}

	product := domain.Product{
		ID:          wp.ID,
		Name:        wp.Name,
		Description: wp.Description,
		Active:      wp.Active,
		Metadata:    wp.Metadata,
		CreatedAt:   wp.Created.Time(),
	}
	if err := p.store.UpsertProduct(ctx, product); err != nil {
		return err
	}

	p.logger.Info().Str("product_id", wp.ID).Msg("product upserted")
	p.publish(env, CategoryProduct, wp.ID)
	return nil
}

// handlePayment traces a payment intent back to its subscription through the
// invoice. Standalone payments carry no invoice and are acknowledged as-is.
func (p *Processor) handlePayment(ctx context.Context, env Envelope) error {
	var wpi wirePaymentIntent
	if err := json.Unmarshal(env.Data.Object, &wpi); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.payment", "malformed payment payload")
	}

	if wpi.Invoice == "" {
		p.logger.Debug().
			Str("payment_intent_id", wpi.ID).
			Msg("payment has no invoice, skipping")
		return nil
	}

	if p.invoices == nil {
		return nil
	}
	invoice, err := p.invoices.GetInvoice(ctx, wpi.Invoice.String())
	if err != nil {
		return err
	}
	if invoice.SubscriptionID == "" {
		p.logger.Debug().
			Str("invoice_id", invoice.ID).
			Msg("invoice has no subscription, skipping")
		return nil
	}

	status := domain.StatusActive
	if env.Type == TypePaymentFailed {
		status = domain.StatusPastDue
	}
	if err := p.store.SetSubscriptionStatus(ctx, invoice.SubscriptionID, status, nil); err != nil {
		return err
	}

	p.logger.Info().
		Str("subscription_id", invoice.SubscriptionID).
		Str("status", string(status)).
		Msg("subscription status updated from payment")
	p.publish(env, CategoryPayment, wpi.ID)
	return nil
}

func (p *Processor) handleInvoice(ctx context.Context, env Envelope) error {
	var wi wireInvoice
	if err := json.Unmarshal(env.Data.Object, &wi); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.invoice", "malformed invoice payload")
	}

	subID := wi.subscriptionID()
	if subID == "" {
		p.logger.Debug().Str("invoice_id", wi.ID).Msg("invoice has no subscription, skipping")
		return nil
	}

	status := domain.StatusActive
	if env.Type == TypeInvoicePaymentFail {
		status = domain.StatusPastDue
	}
	if err := p.store.SetSubscriptionStatus(ctx, subID, status, wi.PeriodEnd.TimePtr()); err != nil {
		return err
	}

	p.logger.Info().
		Str("subscription_id", subID).
		Str("invoice_id", wi.ID).
		Str("status", string(status)).
		Msg("subscription status updated from invoice")
	p.publish(env, CategoryInvoice, wi.ID)
	return nil
}

func (p *Processor) handleRefund(ctx context.Context, env Envelope) error {
	var wr wireRefund
	if err := json.Unmarshal(env.Data.Object, &wr); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.refund", "malformed refund payload")
	}

	refund := domain.Refund{
		ID:              wr.ID,
		Amount:          wr.Amount,
		Currency:        wr.Currency,
		PaymentIntentID: wr.PaymentIntent.String(),
		Status:          domain.CoerceRefundStatus(wr.Status),
		Reason:          wr.Reason,
		FailureReason:   wr.FailureReason,
		ReceiptNumber:   wr.ReceiptNumber,
		Metadata:        wr.Metadata,
		CreatedAt:       wr.Created.Time(),
	}
	if env.Type == TypeRefundFailed {
		refund.Status = domain.RefundFailed
	}

	if err := p.store.UpsertRefund(ctx, refund); err != nil {
		return err
	}

	p.logger.Info().
		Str("refund_id", refund.ID).
		Str("status", string(refund.Status)).
		Msg("refund upserted")
	p.publish(env, CategoryRefund, refund.ID)
	return nil
}

// handlePlan persists a legacy plan as a recurring price.
func (p *Processor) handlePlan(ctx context.Context, env Envelope) error {
	var wp wirePlan
	if err := json.Unmarshal(env.Data.Object, &wp); err != nil {
		return domain.WrapError(err, domain.EPAYLOAD, "event.plan", "malformed plan payload")
	}

	if env.Type == TypePlanDeleted {
		if err := p.store.DeactivatePrice(ctx, wp.ID); err != nil {
			return err
		}
		p.logger.Info().Str("plan_id", wp.ID).Msg("plan deactivated")
		p.publish(env, CategoryPlan, wp.ID)
		return nil
	}

	price := domain.Price{
		ID:         wp.ID,
		ProductID:  wp.Product.String(),
		Currency:   wp.Currency,
		UnitAmount: wp.Amount,
		Type:       "recurring",
		Recurring: &domain.Recurring{
			Interval:      wp.Interval,
			IntervalCount: wp.IntervalCount,
		},
		Active:    wp.Active,
		Metadata:  wp.Metadata,
		CreatedAt: wp.Created.Time(),
	}
	if err := p.store.UpsertPrice(ctx, price); err != nil {
		return err
	}

	p.logger.Info().Str("plan_id", wp.ID).Msg("plan upserted as recurring price")
	p.publish(env, CategoryPlan, wp.ID)
	return nil
}

// handleObserved logs event categories we acknowledge but do not persist.
func (p *Processor) handleObserved(env Envelope, category Category) error {
	var tag struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data.Object, &tag)

	p.logger.Info().
		Str("event_type", env.Type).
		Str("category", category.String()).
		Str("resource_id", tag.ID).
		Msg("event observed")
	return nil
}

func (p *Processor) publish(env Envelope, category Category, resourceID string) {
	p.publisher.Publish(events.Notification{
		EventID:    env.ID,
		EventType:  env.Type,
		Category:   category.String(),
		ResourceID: resourceID,
		OccurredAt: time.Now().UTC(),
	})
}
