package clocksync

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/match/events"
	"github.com/matchlive/matchcore/go/internal/models"
)

// DefaultRefreshInterval keeps the local display smooth between broadcasts.
const DefaultRefreshInterval = 250 * time.Millisecond

// Elapsed derives the authoritative elapsed seconds for a session from its
// clock triple. While live: max(0, floor((now - startedAt - pausedMs)/1000)).
// While paused the value is frozen at the pause timestamp. Scheduled and
// ended sessions read zero. The triple, never a client-side running total,
// is the single source of truth.
func Elapsed(status models.MatchStatus, startedAt, pausedAt *time.Time, pausedMs int64, now time.Time) int {
	if startedAt == nil {
		return 0
	}

	switch status {
	case models.MatchStatusLive:
		return clampSeconds(now.Sub(*startedAt).Milliseconds() - pausedMs)
	case models.MatchStatusPaused:
		if pausedAt == nil {
			return 0
		}
		return clampSeconds(pausedAt.Sub(*startedAt).Milliseconds() - pausedMs)
	default:
		return 0
	}
}

func clampSeconds(ms int64) int {
	if ms < 0 {
		return 0
	}
	return int(ms / 1000)
}

// Syncer recomputes elapsed time for one session on a short local interval
// and immediately on receipt of any lifecycle broadcast, which is
// authoritative over anything accumulated locally. Missing or delayed local
// ticks never desynchronize the value.
type Syncer struct {
	clock    clockwork.Clock
	interval time.Duration
	onUpdate func(elapsedSec int)

	mu    sync.Mutex
	triple events.ClockFields

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewSyncer creates a syncer that calls onUpdate with the current elapsed
// seconds on every refresh. Pass clockwork.NewRealClock() in production and
// a fake clock in tests.
func NewSyncer(clock clockwork.Clock, interval time.Duration, onUpdate func(elapsedSec int)) *Syncer {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Syncer{
		clock:    clock,
		interval: interval,
		onUpdate: onUpdate,
		triple:   events.ClockFields{Status: models.MatchStatusScheduled},
		stopCh:   make(chan struct{}),
	}
}

// Start runs the periodic refresh until the context is cancelled or Stop is
// called. The ticker is cooperative and never blocks on I/O.
func (s *Syncer) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := s.clock.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.Chan():
				s.refresh()
			}
		}
	}()
}

// Stop tears down the refresh loop. Safe to call more than once.
func (s *Syncer) Stop() {
	s.stopped.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// ApplyStatus replaces the local clock triple with an authoritative one
// (e.g. a match_status fetched on join) and refreshes immediately.
func (s *Syncer) ApplyStatus(triple events.ClockFields) {
	s.mu.Lock()
	s.triple = triple
	s.mu.Unlock()
	s.refresh()
}

// ApplyEvent applies a lifecycle broadcast. Non-lifecycle events are
// ignored; the goal stream does not carry clock data.
func (s *Syncer) ApplyEvent(event *events.MatchEvent) {
	triple, ok := events.ClockFromEvent(event)
	if !ok {
		return
	}
	log.Debug().
		Str("session_id", event.SessionID).
		Str("event_type", string(event.Type)).
		Msg("applying lifecycle clock")
	s.ApplyStatus(triple)
}

// Elapsed returns the current derived elapsed seconds.
func (s *Syncer) Elapsed() int {
	s.mu.Lock()
	t := s.triple
	s.mu.Unlock()
	return Elapsed(t.Status, t.StartedAt, t.PausedAt, t.PausedMs, s.clock.Now())
}

func (s *Syncer) refresh() {
	if s.onUpdate != nil {
		s.onUpdate(s.Elapsed())
	}
}
