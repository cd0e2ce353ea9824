// Package routes wires handlers onto the HTTP server.
package routes

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/handler"
	"github.com/pverheyen/heimdall/internal/handler/api"
	"github.com/pverheyen/heimdall/internal/handler/webhook"
)

// Deps contains the handlers the server exposes.
type Deps struct {
	StripeWebhook *webhook.StripeHandler
	LogtoWebhook  *webhook.LogtoHandler
	Sync          *api.SyncHandler
	Resources     *api.ResourceHandler
	Health        *handler.HealthHandler
	Logger        zerolog.Logger
}

// Register attaches middleware and all routes to e.
//
// Webhook routes carry no authentication middleware: each handler verifies
// the delivery signature itself.
func Register(e *echo.Echo, deps Deps) {
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(deps.Logger))

	e.GET("/healthz", deps.Health.Healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/webhooks/stripe", deps.StripeWebhook.HandleWebhook)
	e.POST("/webhooks/logto", deps.LogtoWebhook.HandleWebhook)

	g := e.Group("/api")
	g.POST("/sync", deps.Sync.HandleSync)
	g.GET("/customers/:id", deps.Resources.GetCustomer)
	g.GET("/subscriptions/:id", deps.Resources.GetSubscription)
	g.GET("/products/:id", deps.Resources.GetProduct)
	g.GET("/prices/:id", deps.Resources.GetPrice)
	g.GET("/refunds/:id", deps.Resources.GetRefund)
}

// requestLogger emits one structured line per request.
func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			evt := logger.Info()
			if v.Status >= 500 {
				evt = logger.Error()
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency.Round(time.Microsecond)).
				Err(v.Error).
				Msg("request")
			return nil
		},
	})
}
