package webhook

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/billing"
	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/handler"
)

// CustomDataWriter writes a user's custom data in the identity provider.
type CustomDataWriter interface {
	PatchCustomData(ctx context.Context, userID string, customData map[string]any) error
}

// CustomerUpserter persists the local customer mirror.
type CustomerUpserter interface {
	UpsertCustomer(ctx context.Context, c domain.Customer) error
}

// LogtoHandler handles identity-provider lifecycle hooks. On registration it
// provisions a billing customer and links it back onto the user record.
type LogtoHandler struct {
	provider billing.Provider
	users    CustomDataWriter
	store    CustomerUpserter
	logger   zerolog.Logger
}

// NewLogtoHandler creates a Logto webhook handler.
func NewLogtoHandler(provider billing.Provider, users CustomDataWriter, store CustomerUpserter, logger zerolog.Logger) *LogtoHandler {
	return &LogtoHandler{
		provider: provider,
		users:    users,
		store:    store,
		logger:   logger.With().Str("component", "webhook.logto").Logger(),
	}
}

// logtoHook is the hook delivery shape.
type logtoHook struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
	User   struct {
		ID           string `json:"id"`
		PrimaryEmail string `json:"primaryEmail"`
		Name         string `json:"name"`
	} `json:"user"`
}

// HandleWebhook processes a Logto hook delivery. Only PostRegister is acted
// on; other events are acknowledged.
func (h *LogtoHandler) HandleWebhook(c echo.Context) error {
	var hook logtoHook
	if err := c.Bind(&hook); err != nil {
		h.logger.Error().Err(err).Msg("failed to parse hook payload")
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYLOAD, "webhook.logto", "invalid JSON"))
	}

	if hook.Event != "PostRegister" {
		h.logger.Debug().Str("event", hook.Event).Msg("ignoring hook event")
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}

	userID := hook.UserID
	if userID == "" {
		userID = hook.User.ID
	}
	if hook.User.PrimaryEmail == "" {
		return handler.ErrorResponse(c, domain.Invalid("webhook.logto", "email is required for customer creation"))
	}
	if userID == "" {
		return handler.ErrorResponse(c, domain.Invalid("webhook.logto", "userId is required for customer creation"))
	}

	ctx := c.Request().Context()
	customer, err := h.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
		Email: hook.User.PrimaryEmail,
		Name:  hook.User.Name,
		Metadata: map[string]string{
			"accountId": userID,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create billing customer")
		return handler.ErrorResponse(c, err)
	}

	h.logger.Info().
		Str("user_id", userID).
		Str("customer_id", customer.ID).
		Msg("billing customer created for new user")

	// Mirror write is best-effort: failing the delivery would make Logto
	// retry the hook and create a duplicate provider customer, and the
	// customer.created webhook converges the mirror regardless.
	err = h.store.UpsertCustomer(ctx, domain.Customer{
		ID:        customer.ID,
		AccountID: userID,
		Email:     hook.User.PrimaryEmail,
		Name:      hook.User.Name,
		Metadata:  map[string]string{"accountId": userID},
	})
	if err != nil {
		h.logger.Warn().Err(err).
			Str("customer_id", customer.ID).
			Msg("failed to persist customer mirror")
	}

	// Fresh registration: no prior custom data worth preserving.
	err = h.users.PatchCustomData(ctx, userID, map[string]any{
		"stripeCustomerId": customer.ID,
		"subscription":     nil,
	})
	if err != nil {
		h.logger.Error().Err(err).
			Str("user_id", userID).
			Str("customer_id", customer.ID).
			Msg("failed to link customer onto user record")
		return handler.ErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true, "customerId": customer.ID})
}
