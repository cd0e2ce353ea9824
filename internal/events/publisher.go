// Package events publishes compact billing-event notifications for
// out-of-process consumers (provisioning, e-mails). Publishing is
// best-effort: a failed publish is logged and dropped, never surfaced to the
// webhook path.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pverheyen/heimdall/internal/telemetry"
)

// Notification is the compact shape published after a successful upsert.
type Notification struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	Category   string    `json:"category"`
	ResourceID string    `json:"resourceId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher fans out billing notifications.
type Publisher interface {
	Publish(n Notification)
	Close()
}

// natsConn is the slice of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes notifications to billing.events.<category>.
type NATSPublisher struct {
	conn   natsConn
	logger zerolog.Logger
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("heimdall"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) Publish(n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.logger.Error().Err(err).Str("event_id", n.EventID).Msg("marshal notification")
		return
	}

	subject := "billing.events." + n.Category
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).
			Str("subject", subject).
			Str("resource_id", n.ResourceID).
			Msg("dropped billing notification")
		return
	}

	if telemetry.Billing != nil {
		telemetry.Billing.NotificationsPublished.WithLabelValues(n.Category).Inc()
	}
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("nats drain")
	}
}

// NoopPublisher discards notifications. Used when messaging is disabled and
// in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Notification) {}
func (NoopPublisher) Close()               {}
