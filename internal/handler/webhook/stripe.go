// Package webhook receives provider callbacks. Handlers verify authenticity
// before any parsing: the raw body bytes are checked against the signature
// header, then handed to the event processor.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/billing"
	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/event"
	"github.com/pverheyen/heimdall/internal/handler"
	"github.com/pverheyen/heimdall/internal/telemetry"
)

// EventProcessor applies one verified event envelope.
type EventProcessor interface {
	Process(ctx context.Context, env event.Envelope) error
}

// StripeHandler handles Stripe webhook deliveries.
type StripeHandler struct {
	provider  billing.Provider
	processor EventProcessor
	config    StripeWebhookConfig
	logger    zerolog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling.
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from the Stripe dashboard.
	WebhookSecret string
}

// NewStripeHandler creates a Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, processor EventProcessor, config StripeWebhookConfig, logger zerolog.Logger) *StripeHandler {
	return &StripeHandler{
		provider:  provider,
		processor: processor,
		config:    config,
		logger:    logger.With().Str("component", "webhook.stripe").Logger(),
	}
}

// HandleWebhook processes an incoming Stripe webhook delivery.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:4000/webhooks/stripe
//	stripe trigger customer.subscription.updated
func (h *StripeHandler) HandleWebhook(c echo.Context) error {
	startTime := time.Now()

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read webhook body")
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYLOAD, "webhook.stripe", "error reading request body"))
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn().Msg("missing Stripe-Signature header")
		return handler.ErrorResponse(c, domain.Errorf(domain.ESIGNATURE, "webhook.stripe", "missing signature"))
	}

	// Verification runs on the raw bytes, before any parsing.
	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		return handler.ErrorResponse(c, err)
	}

	var env event.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Error().Err(err).Msg("failed to parse webhook envelope")
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYLOAD, "webhook.stripe", "invalid JSON"))
	}

	h.logger.Info().
		Str("event_id", env.ID).
		Str("event_type", env.Type).
		Msg("webhook received")

	if telemetry.Billing != nil {
		telemetry.Billing.WebhookReceived.WithLabelValues(env.Type).Inc()
		defer func() {
			telemetry.Billing.WebhookLatency.WithLabelValues(env.Type).Observe(time.Since(startTime).Seconds())
		}()
	}

	if err := h.processor.Process(c.Request().Context(), env); err != nil {
		h.logger.Error().Err(err).
			Str("event_id", env.ID).
			Str("event_type", env.Type).
			Msg("webhook processing failed")
		if telemetry.Billing != nil {
			telemetry.Billing.WebhookFailed.WithLabelValues(env.Type, domain.ErrorCode(err)).Inc()
		}
		// Stripe retries on non-2xx; the status tells it whether retrying
		// can help.
		return handler.ErrorResponse(c, err)
	}

	if telemetry.Billing != nil {
		telemetry.Billing.WebhookProcessed.WithLabelValues(env.Type).Inc()
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
