package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes approval events to NATS for consumption by
// the notifications service.
//
// Subject convention: notifications.payments.<event_type>
// Event types: bulk_approved, bulk_rejected, bulk_partial
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt approval operations.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType  string         `json:"event_type"`
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	PaymentIDs []string       `json:"payment_ids"`
	FailedIDs  []string       `json:"failed_ids,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Remarks    string         `json:"remarks,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection disables publishing.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

// PublishBulkEvent publishes a bulk approval outcome event.
// Subject: notifications.payments.<eventType>
func (p *NotificationPublisher) PublishBulkEvent(event *NotificationEvent) {
	if p.conn == nil {
		return
	}
	if len(event.PaymentIDs) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.payments.%s", event.EventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Int("payment_count", len(event.PaymentIDs)).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Int("payment_count", len(event.PaymentIDs)).
		Msg("notification: event published")
}
