// Package reconcile pushes subscription state into the identity provider so
// access-control decisions can be made from the user's custom data without a
// billing lookup. Reconciliation is best-effort: the local store is the
// source of record and every failure here is logged and swallowed.
package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/identity"
	"github.com/pverheyen/heimdall/internal/telemetry"
)

// IdentityClient is the slice of the management API the reconciler needs.
type IdentityClient interface {
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	PatchCustomData(ctx context.Context, userID string, customData map[string]any) error
}

// CustomerGetter resolves a provider customer id to its local mirror.
type CustomerGetter interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
}

// Reconciler mirrors subscription changes onto identity-provider user
// records.
type Reconciler struct {
	customers CustomerGetter
	users     IdentityClient
	logger    zerolog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(customers CustomerGetter, users IdentityClient, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		customers: customers,
		users:     users,
		logger:    logger.With().Str("component", "reconcile").Logger(),
	}
}

// SubscriptionChanged writes the subscription's state to the owning user's
// custom data. The existing stripeCustomerId key is preserved; the
// subscription key is replaced wholesale. Read-modify-write is not atomic;
// the next subscription event converges the record.
func (r *Reconciler) SubscriptionChanged(ctx context.Context, sub domain.Subscription) {
	customer, err := r.customers.GetCustomer(ctx, sub.CustomerID)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("customer_id", sub.CustomerID).
			Str("subscription_id", sub.ID).
			Msg("customer lookup failed, skipping reconcile")
		r.failed("customer_lookup")
		return
	}
	if customer.AccountID == "" {
		r.logger.Warn().
			Str("customer_id", customer.ID).
			Str("subscription_id", sub.ID).
			Msg("customer has no linked account, skipping reconcile")
		r.skipped()
		return
	}

	user, err := r.users.GetUser(ctx, customer.AccountID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("account_id", customer.AccountID).
			Str("subscription_id", sub.ID).
			Msg("failed to fetch identity user")
		r.failed("fetch")
		return
	}

	customData := map[string]any{
		"subscription": map[string]any{
			"id":               sub.ID,
			"status":           string(sub.Status),
			"priceId":          sub.PriceID,
			"currentPeriodEnd": periodEndEpoch(sub),
		},
	}
	// Keep the customer link intact; the management API replaces the whole
	// customData object on write.
	if user.CustomData != nil {
		if v, ok := user.CustomData["stripeCustomerId"]; ok {
			customData["stripeCustomerId"] = v
		}
	}

	if err := r.users.PatchCustomData(ctx, customer.AccountID, customData); err != nil {
		r.logger.Error().Err(err).
			Str("account_id", customer.AccountID).
			Str("subscription_id", sub.ID).
			Msg("failed to update identity custom data")
		r.failed("write")
		return
	}

	r.logger.Info().
		Str("account_id", customer.AccountID).
		Str("subscription_id", sub.ID).
		Str("status", string(sub.Status)).
		Msg("identity subscription state updated")
}

func periodEndEpoch(sub domain.Subscription) int64 {
	if sub.CurrentPeriodEnd.IsZero() {
		return 0
	}
	return sub.CurrentPeriodEnd.Unix()
}

func (r *Reconciler) failed(reason string) {
	if telemetry.Billing != nil {
		telemetry.Billing.ReconcileFailed.WithLabelValues(reason).Inc()
	}
}

func (r *Reconciler) skipped() {
	if telemetry.Billing != nil {
		telemetry.Billing.ReconcileSkipped.WithLabelValues().Inc()
	}
}
