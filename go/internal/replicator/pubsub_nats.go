package replicator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/match/events"
)

// NATSPubSub adapts a core NATS connection to the subscriber's PubSub
// interface. Core subscriptions see only messages published while they
// are open, which is exactly the no-replay behavior session switching
// relies on.
type NATSPubSub struct {
	nc *nats.Conn
}

// NewNATSPubSub wraps an established NATS connection.
func NewNATSPubSub(nc *nats.Conn) *NATSPubSub {
	return &NATSPubSub{nc: nc}
}

// Subscribe opens a subject subscription and decodes each message into a
// match event before handing it to the handler.
func (p *NATSPubSub) Subscribe(subject string, handler func(*events.MatchEvent)) (Subscription, error) {
	sub, err := p.nc.Subscribe(subject, func(msg *nats.Msg) {
		var envelope struct {
			EventID   string          `json:"eventId"`
			EventType string          `json:"eventType"`
			SessionID string          `json:"sessionId"`
			Timestamp time.Time       `json:"timestamp"`
			Payload   json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			log.Error().Err(err).
				Str("subject", msg.Subject).
				Msg("failed to unmarshal event envelope")
			return
		}
		handler(&events.MatchEvent{
			ID:        envelope.EventID,
			SessionID: envelope.SessionID,
			Type:      events.EventType(envelope.EventType),
			Timestamp: envelope.Timestamp,
			Data:      envelope.Payload,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return natsSubscription{sub: sub}, nil
}

// Publish sends a raw payload on a subject. Peers without JetStream access
// can still push through the core connection.
func (p *NATSPubSub) Publish(subject string, payload []byte) error {
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
