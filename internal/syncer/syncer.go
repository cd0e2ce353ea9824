// Package syncer backfills local state from the billing provider's list
// APIs. Each listed record is wrapped in a synthetic event envelope and fed
// through the same processor the live webhook path uses, so both paths share
// one set of upsert semantics.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/billing"
	"github.com/pverheyen/heimdall/internal/domain"
	"github.com/pverheyen/heimdall/internal/event"
	"github.com/pverheyen/heimdall/internal/telemetry"
)

// EventProcessor applies one event envelope.
type EventProcessor interface {
	Process(ctx context.Context, env event.Envelope) error
}

// syntheticTypes maps each syncable resource to the event type its records
// replay as. Update types are used so backfilled records follow the same
// upsert-and-reconcile path as a live change.
var syntheticTypes = map[domain.SyncResource]string{
	domain.SyncCustomers:     event.TypeCustomerUpdated,
	domain.SyncSubscriptions: event.TypeSubscriptionUpdated,
	domain.SyncProducts:      event.TypeProductUpdated,
	domain.SyncPrices:        event.TypePriceUpdated,
}

// Syncer drives backfill runs.
type Syncer struct {
	provider  billing.Provider
	processor EventProcessor
	logger    zerolog.Logger
}

// NewSyncer creates a backfill driver.
func NewSyncer(provider billing.Provider, processor EventProcessor, logger zerolog.Logger) *Syncer {
	return &Syncer{
		provider:  provider,
		processor: processor,
		logger:    logger.With().Str("component", "syncer").Logger(),
	}
}

// Run backfills the given resources in order. A failed record is counted and
// skipped, never halting the run; a failed listing ends that resource's run
// but later resources still execute.
func (s *Syncer) Run(ctx context.Context, resources []domain.SyncResource, opts domain.SyncOptions) []domain.SyncResult {
	logger := s.logger.With().Str("run_id", uuid.NewString()).Logger()

	results := make([]domain.SyncResult, 0, len(resources))
	for _, resource := range resources {
		results = append(results, s.syncResource(ctx, logger, resource, opts))
	}
	return results
}

func (s *Syncer) syncResource(ctx context.Context, logger zerolog.Logger, resource domain.SyncResource, opts domain.SyncOptions) domain.SyncResult {
	result := domain.SyncResult{Resource: resource}

	eventType, ok := syntheticTypes[resource]
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("unknown resource: %s", resource))
		return result
	}

	logger.Info().
		Str("resource", string(resource)).
		Int64("limit", opts.Limit).
		Str("starting_after", opts.StartingAfter).
		Msg("backfill started")

	listErr := s.provider.ListResources(ctx, resource, opts, func(raw json.RawMessage) error {
		env := event.SyntheticEnvelope(eventType, raw)
		if err := s.processor.Process(ctx, env); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, err.Error())
			s.recordFailed(resource)
			logger.Warn().Err(err).
				Str("resource", string(resource)).
				Msg("backfill record failed")
			return nil
		}
		result.SyncedCount++
		s.recordProcessed(resource)
		return nil
	})

	result.Success = listErr == nil
	if listErr != nil {
		result.Errors = append(result.Errors, listErr.Error())
		logger.Error().Err(listErr).
			Str("resource", string(resource)).
			Msg("backfill listing failed")
	}

	outcome := "clean"
	if !result.Success || result.FailedCount > 0 {
		outcome = "partial"
	}
	s.recordRun(resource, outcome)

	logger.Info().
		Str("resource", string(resource)).
		Int("synced", result.SyncedCount).
		Int("failed", result.FailedCount).
		Bool("success", result.Success).
		Msg("backfill finished")
	return result
}

func (s *Syncer) recordProcessed(resource domain.SyncResource) {
	if telemetry.Billing != nil {
		telemetry.Billing.SyncRecordsProcessed.WithLabelValues(string(resource)).Inc()
	}
}

func (s *Syncer) recordFailed(resource domain.SyncResource) {
	if telemetry.Billing != nil {
		telemetry.Billing.SyncRecordsFailed.WithLabelValues(string(resource)).Inc()
	}
}

func (s *Syncer) recordRun(resource domain.SyncResource, outcome string) {
	if telemetry.Billing != nil {
		telemetry.Billing.SyncRuns.WithLabelValues(string(resource), outcome).Inc()
	}
}
