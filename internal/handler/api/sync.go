// Package api exposes the operational JSON endpoints: backfill triggering
// and read access to the mirrored billing resources.
package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/handler"
)

// SyncRunner drives a backfill over the named resources.
type SyncRunner interface {
	Run(ctx context.Context, resources []domain.SyncResource, opts domain.SyncOptions) []domain.SyncResult
}

// SyncHandler exposes the backfill trigger endpoint.
type SyncHandler struct {
	runner   SyncRunner
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(runner SyncRunner, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		runner:   runner,
		validate: validator.New(),
		logger:   logger.With().Str("component", "api.sync").Logger(),
	}
}

type syncRequest struct {
	// Resources names the resource types to backfill. Empty means all.
	// Names are checked against the domain's syncable set after binding.
	Resources []string `json:"resources"`

	Limit         int64  `json:"limit" validate:"gte=0,lte=100"`
	StartingAfter string `json:"startingAfter"`
	CreatedAfter  int64  `json:"createdAfter" validate:"gte=0"`
}

type syncResponse struct {
	Success bool                `json:"success"`
	Results []domain.SyncResult `json:"results"`
}

// HandleSync triggers a synchronous backfill run and reports per-resource
// results. Partial failure still responds 200: the results carry the detail.
func (h *SyncHandler) HandleSync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EINVALID, "api.sync", "invalid JSON"))
	}
	if err := h.validate.Struct(&req); err != nil {
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EINVALID, "api.sync", "invalid sync request"))
	}

	resources := domain.AllSyncResources
	if len(req.Resources) > 0 {
		resources = make([]domain.SyncResource, 0, len(req.Resources))
		for _, name := range req.Resources {
			if !domain.ValidSyncResource(name) {
				return handler.ErrorResponse(c, domain.Errorf(domain.EINVALID, "api.sync", "unknown resource: %s", name))
			}
			resources = append(resources, domain.SyncResource(name))
		}
	}

	h.logger.Info().
		Strs("resources", resourceNames(resources)).
		Int64("limit", req.Limit).
		Msg("backfill requested")

	results := h.runner.Run(c.Request().Context(), resources, domain.SyncOptions{
		Limit:         req.Limit,
		StartingAfter: req.StartingAfter,
		CreatedAfter:  req.CreatedAfter,
	})

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
			break
		}
	}

	return c.JSON(http.StatusOK, syncResponse{Success: success, Results: results})
}

func resourceNames(resources []domain.SyncResource) []string {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = string(r)
	}
	return names
}
