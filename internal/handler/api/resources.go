package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/handler"
)

// ResourceHandler exposes read access to the mirrored billing resources.
type ResourceHandler struct {
	store domain.BillingStore
}

// NewResourceHandler creates a resource read handler.
func NewResourceHandler(store domain.BillingStore) *ResourceHandler {
	return &ResourceHandler{store: store}
}

func (h *ResourceHandler) GetCustomer(c echo.Context) error {
	customer, err := h.store.GetCustomer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "customer": customer})
}

func (h *ResourceHandler) GetSubscription(c echo.Context) error {
	sub, err := h.store.GetSubscription(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "subscription": sub})
}

func (h *ResourceHandler) GetProduct(c echo.Context) error {
	product, err := h.store.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "product": product})
}

func (h *ResourceHandler) GetPrice(c echo.Context) error {
	price, err := h.store.GetPrice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "price": price})
}

func (h *ResourceHandler) GetRefund(c echo.Context) error {
	refund, err := h.store.GetRefund(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "refund": refund})
}
