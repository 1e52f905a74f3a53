package replicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/match/events"
)

// Subscription is a live per-session event feed.
type Subscription interface {
	Unsubscribe() error
}

// PubSub abstracts the event transport on the receiving side. The NATS
// adapter implements it in production; tests use an in-memory fake.
type PubSub interface {
	Subscribe(subject string, handler func(*events.MatchEvent)) (Subscription, error)
}

// DefaultReconnectDelay is how long a dropped subscriber waits before its
// single reconnect attempt.
const DefaultReconnectDelay = 2 * time.Second

// Subscriber follows exactly one session's event feed at a time. Switching
// sessions tears down the old subscription before the new one opens, so a
// client is never subscribed to two feeds at once. After a drop it retries
// once; a second failure stays down until the next explicit Switch.
type Subscriber struct {
	pubsub         PubSub
	clock          clockwork.Clock
	subjectPrefix  string
	reconnectDelay time.Duration
	handler        func(*events.MatchEvent)

	mu               sync.Mutex
	sessionID        uuid.UUID
	sub              Subscription
	active           bool
	reconnectPending bool
	reconnectUsed    bool
}

// NewSubscriber creates a subscriber delivering events to handler.
func NewSubscriber(pubsub PubSub, clock clockwork.Clock, subjectPrefix string, handler func(*events.MatchEvent)) *Subscriber {
	if subjectPrefix == "" {
		subjectPrefix = "match.events"
	}
	return &Subscriber{
		pubsub:         pubsub,
		clock:          clock,
		subjectPrefix:  subjectPrefix,
		reconnectDelay: DefaultReconnectDelay,
		handler:        handler,
	}
}

// Switch moves the subscriber to a different session. The previous
// subscription is always torn down, even when opening the new one fails.
func (s *Subscriber) Switch(sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked()
	s.sessionID = sessionID
	s.reconnectUsed = false

	if err := s.subscribeLocked(); err != nil {
		return err
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Msg("subscriber switched session")
	return nil
}

// Close tears down the current subscription.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// Active reports whether a subscription is currently open.
func (s *Subscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SessionID returns the session the subscriber currently follows.
func (s *Subscriber) SessionID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// NotifyDropped tells the subscriber its feed broke. The first drop per
// session schedules one delayed reconnect; further drops are ignored so a
// flapping transport cannot turn the subscriber into a retry loop.
func (s *Subscriber) NotifyDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.reconnectPending {
		return
	}
	s.active = false
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}

	if s.reconnectUsed {
		log.Warn().
			Str("session_id", s.sessionID.String()).
			Msg("subscription dropped again, staying down until next switch")
		return
	}
	s.reconnectUsed = true
	s.reconnectPending = true
	sessionID := s.sessionID

	log.Warn().
		Str("session_id", sessionID.String()).
		Dur("delay", s.reconnectDelay).
		Msg("subscription dropped, scheduling reconnect")

	s.clock.AfterFunc(s.reconnectDelay, func() {
		s.reconnect(sessionID)
	})
}

func (s *Subscriber) reconnect(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconnectPending = false
	// A Switch may have landed while we waited.
	if s.sessionID != sessionID || s.active {
		return
	}

	if err := s.subscribeLocked(); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("reconnect failed, staying down until next switch")
		return
	}
	log.Info().
		Str("session_id", sessionID.String()).
		Msg("subscription reestablished")
}

func (s *Subscriber) subscribeLocked() error {
	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, s.sessionID)
	sub, err := s.pubsub.Subscribe(subject, s.handler)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	s.sub = sub
	s.active = true
	return nil
}

func (s *Subscriber) teardownLocked() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).
				Str("session_id", s.sessionID.String()).
				Msg("failed to unsubscribe cleanly")
		}
		s.sub = nil
	}
	s.active = false
	s.reconnectPending = false
}
