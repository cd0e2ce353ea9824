package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pverheyen/heimdall/internal"
	"github.com/pverheyen/heimdall/internal/billing"
	"github.com/pverheyen/heimdall/internal/event"
	"github.com/pverheyen/heimdall/internal/events"
	"github.com/pverheyen/heimdall/internal/handler"
	"github.com/pverheyen/heimdall/internal/handler/api"
	"github.com/pverheyen/heimdall/internal/handler/webhook"
	"github.com/pverheyen/heimdall/internal/identity"
	"github.com/pverheyen/heimdall/internal/postgres"
	"github.com/pverheyen/heimdall/internal/reconcile"
	"github.com/pverheyen/heimdall/internal/routes"
	"github.com/pverheyen/heimdall/internal/syncer"
	"github.com/pverheyen/heimdall/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info().Msg("connecting to database")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info().Msg("running database migrations")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	telemetry.InitBillingMetrics(cfg.MetricsNamespace)

	store := postgres.NewStore(pool)

	// Billing provider
	provider, err := billing.NewStripeProvider(billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize billing provider: %w", err)
	}

	// Identity provider management client
	tokens := identity.NewTokenSource(cfg.Logto.Endpoint, cfg.Logto.AppID, cfg.Logto.AppSecret, &http.Client{
		Timeout: 10 * time.Second,
	})
	users := identity.NewClient(cfg.Logto.Endpoint, tokens, logger)

	reconciler := reconcile.NewReconciler(store, users, logger)

	// Event notifications are optional; without a broker they are discarded.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	processor := event.NewProcessor(store, provider, reconciler, publisher, logger)
	syn := syncer.NewSyncer(provider, processor, logger)

	e := echo.New()
	routes.Register(e, routes.Deps{
		StripeWebhook: webhook.NewStripeHandler(provider, processor, webhook.StripeWebhookConfig{
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}, logger),
		LogtoWebhook: webhook.NewLogtoHandler(provider, users, store, logger),
		Sync:         api.NewSyncHandler(syn, logger),
		Resources:    api.NewResourceHandler(store),
		Health:       handler.NewHealthHandler(store),
		Logger:       logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("address", addr).Str("env", cfg.Env).Msg("starting server")

	if err := e.Start(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
