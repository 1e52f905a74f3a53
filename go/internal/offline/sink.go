package offline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/match"
	"github.com/matchlive/matchcore/go/internal/match/events"
	"github.com/matchlive/matchcore/go/internal/models"
)

// ActionEmitEvent is the queued action kind for a deferred broadcast.
const ActionEmitEvent = "emit_event"

type emitEnvelope struct {
	SessionID string          `json:"session_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// FallbackSink tries the primary sink first and queues the broadcast for
// later replay when the transport is down. It is both the sink the match
// app writes to and the Sender the queue drains through, so replayed
// events take the exact path a live one would.
type FallbackSink struct {
	primary match.EventSink
	queue   *Queue
}

// NewFallbackSink wraps a primary sink with offline queueing. The queue
// is attached after construction because it drains through this same
// sink.
func NewFallbackSink(primary match.EventSink) *FallbackSink {
	return &FallbackSink{primary: primary}
}

// AttachQueue wires the queue the sink falls back to. Must be called
// before the first Emit.
func (f *FallbackSink) AttachQueue(queue *Queue) {
	f.queue = queue
}

// Emit forwards to the primary sink, queueing on failure. Enqueueing
// counts as success from the caller's point of view.
func (f *FallbackSink) Emit(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, payload []byte) error {
	err := f.primary.Emit(ctx, sessionID, eventType, payload)
	if err == nil {
		return nil
	}
	if f.queue == nil {
		return err
	}

	log.Warn().Err(err).
		Str("session_id", sessionID.String()).
		Str("event_type", string(eventType)).
		Msg("primary sink unavailable, queueing event")

	envelope, mErr := json.Marshal(emitEnvelope{
		SessionID: sessionID.String(),
		EventType: string(eventType),
		Payload:   payload,
	})
	if mErr != nil {
		return fmt.Errorf("failed to marshal queued event: %w", mErr)
	}

	if _, qErr := f.queue.Enqueue(ctx, ActionEmitEvent, envelope); qErr != nil {
		return fmt.Errorf("failed to queue event after sink failure: %w", qErr)
	}
	return nil
}

// Send replays a queued broadcast against the primary sink.
func (f *FallbackSink) Send(ctx context.Context, item models.QueueItem) error {
	if item.Action != ActionEmitEvent {
		return fmt.Errorf("unknown queued action %q", item.Action)
	}

	var envelope emitEnvelope
	if err := json.Unmarshal(item.Payload, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal queued event: %w", err)
	}
	sessionID, err := uuid.Parse(envelope.SessionID)
	if err != nil {
		return fmt.Errorf("queued event has bad session id %q: %w", envelope.SessionID, err)
	}
	return f.primary.Emit(ctx, sessionID, events.EventType(envelope.EventType), envelope.Payload)
}
