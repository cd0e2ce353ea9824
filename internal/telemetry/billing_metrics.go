package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics holds Prometheus metrics for the webhook pipeline, the
// backfill driver, and the identity reconciler.
type BillingMetrics struct {
	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Backfill
	SyncRecordsProcessed *prometheus.CounterVec
	SyncRecordsFailed    *prometheus.CounterVec
	SyncRuns             *prometheus.CounterVec

	// Reconciler
	ReconcileFailed  *prometheus.CounterVec
	ReconcileSkipped *prometheus.CounterVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
	IdentityLatency  *prometheus.HistogramVec

	// Fan-out
	NotificationsPublished *prometheus.CounterVec
}

// NewBillingMetrics creates and registers all billing metrics.
func NewBillingMetrics(namespace string) *BillingMetrics {
	if namespace == "" {
		namespace = "heimdall"
	}

	subsystem := "billing"

	m := &BillingMetrics{
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total webhooks successfully processed",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total webhook processing failures",
			},
			[]string{"event_type", "error_type"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"event_type"},
		),

		SyncRecordsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_records_processed_total",
				Help:      "Total backfill records successfully applied",
			},
			[]string{"resource"},
		),
		SyncRecordsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_records_failed_total",
				Help:      "Total backfill records that failed to apply",
			},
			[]string{"resource"},
		),
		SyncRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_runs_total",
				Help:      "Total backfill runs by outcome",
			},
			[]string{"resource", "outcome"}, // outcome: clean, partial
		),

		ReconcileFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_failed_total",
				Help:      "Total identity-provider reconcile failures (best-effort path)",
			},
			[]string{"reason"}, // reason: token, fetch, write
		),
		ReconcileSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconcile_skipped_total",
				Help:      "Total reconciles skipped for customers without a linked account",
			},
			[]string{},
		),

		StripeAPILatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		IdentityLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "identity_api_duration_seconds",
				Help:      "Identity provider API call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		NotificationsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notifications_published_total",
				Help:      "Total billing notifications handed to the message bus",
			},
			[]string{"category"},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Billing *BillingMetrics

// InitBillingMetrics initializes the global billing metrics instance
func InitBillingMetrics(namespace string) *BillingMetrics {
	Billing = NewBillingMetrics(namespace)
	return Billing
}
