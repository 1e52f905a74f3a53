package offline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// Storage persists queued actions so they survive restarts. Items come
// back from GetAll in insertion order.
type Storage interface {
	Add(ctx context.Context, item models.QueueItem) error
	GetAll(ctx context.Context) ([]models.QueueItem, error)
	Remove(ctx context.Context, id uuid.UUID) error
	IncrementRetries(ctx context.Context, id uuid.UUID) (int, error)
}

// Sender replays a queued action against the live transport.
type Sender interface {
	Send(ctx context.Context, item models.QueueItem) error
}

// BackoffPolicy maps a consecutive-failure count to the delay before the
// next flush attempt.
type BackoffPolicy func(attempt int) time.Duration

// DefaultBackoff doubles the delay per consecutive failed flush, capped
// at 30 seconds.
func DefaultBackoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// Config controls queue behavior.
type Config struct {
	FlushInterval time.Duration
	MaxRetries    int
	Backoff       BackoffPolicy
}

// DefaultConfig returns sensible queue defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 5 * time.Second,
		MaxRetries:    3,
		Backoff:       DefaultBackoff,
	}
}

// Queue holds actions taken while the transport is unreachable and
// replays them in order once it recovers. An item that fails MaxRetries
// sends is dropped and reported through the exhaustion callback rather
// than blocking everything behind it.
type Queue struct {
	storage     Storage
	sender      Sender
	clock       clockwork.Clock
	config      Config
	onExhausted func(item models.QueueItem, err error)

	mu       sync.Mutex
	failures int

	stopChan chan struct{}
	stopped  sync.Once
	wg       sync.WaitGroup
}

// NewQueue creates an offline action queue.
func NewQueue(storage Storage, sender Sender, clock clockwork.Clock, config Config, onExhausted func(models.QueueItem, error)) *Queue {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	if config.Backoff == nil {
		config.Backoff = DefaultBackoff
	}
	return &Queue{
		storage:     storage,
		sender:      sender,
		clock:       clock,
		config:      config,
		onExhausted: onExhausted,
		stopChan:    make(chan struct{}),
	}
}

// Enqueue durably records an action for later replay.
func (q *Queue) Enqueue(ctx context.Context, action string, payload json.RawMessage) (models.QueueItem, error) {
	item := models.QueueItem{
		ID:         uuid.New(),
		Action:     action,
		Payload:    payload,
		CreatedAt:  q.clock.Now(),
		MaxRetries: q.config.MaxRetries,
	}
	if err := q.storage.Add(ctx, item); err != nil {
		return models.QueueItem{}, err
	}
	log.Debug().
		Str("item_id", item.ID.String()).
		Str("action", action).
		Msg("queued offline action")
	return item, nil
}

// Start launches the background flusher. A single goroutine drains the
// queue, so replay order always matches enqueue order.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go q.run(ctx)
	log.Info().
		Dur("flush_interval", q.config.FlushInterval).
		Int("max_retries", q.config.MaxRetries).
		Msg("offline queue started")
}

// Stop shuts down the background flusher. Safe to call more than once.
func (q *Queue) Stop() {
	q.stopped.Do(func() {
		close(q.stopChan)
	})
	q.wg.Wait()
	log.Info().Msg("offline queue stopped")
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	timer := q.clock.NewTimer(q.config.FlushInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-timer.Chan():
			if err := q.Flush(ctx); err != nil {
				q.mu.Lock()
				q.failures++
				delay := q.config.Backoff(q.failures)
				q.mu.Unlock()
				log.Warn().Err(err).
					Dur("next_attempt_in", delay).
					Msg("offline flush failed, backing off")
				timer.Reset(delay)
				continue
			}
			q.mu.Lock()
			q.failures = 0
			q.mu.Unlock()
			timer.Reset(q.config.FlushInterval)
		}
	}
}

// Flush replays all queued items in insertion order. Each successful
// send removes its item; a failed send increments the item's retry count
// and, once the count reaches MaxRetries, drops the item with a
// QueueExhausted report. Flush returns an error only when the transport
// looks down (some item failed without exhausting), so the caller can
// back off.
func (q *Queue) Flush(ctx context.Context) error {
	items, err := q.storage.GetAll(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for _, item := range items {
		// An item can come back from storage with its budget already
		// spent (crash between the retry increment and the drop). It
		// gets no further sends.
		if item.RetryCount >= item.MaxRetries {
			q.exhaust(ctx, item, errNoAttemptsLeft)
			continue
		}
		if err := q.sender.Send(ctx, item); err != nil {
			retries, incErr := q.storage.IncrementRetries(ctx, item.ID)
			if incErr != nil {
				return incErr
			}
			if retries >= item.MaxRetries {
				q.exhaust(ctx, item, err)
				continue
			}
			log.Warn().Err(err).
				Str("item_id", item.ID.String()).
				Str("action", item.Action).
				Int("retries", retries).
				Msg("offline replay failed, will retry")
			lastErr = err
			continue
		}

		if err := q.storage.Remove(ctx, item.ID); err != nil {
			return err
		}
		log.Debug().
			Str("item_id", item.ID.String()).
			Str("action", item.Action).
			Msg("replayed offline action")
	}
	return lastErr
}

var errNoAttemptsLeft = errors.New("no send attempts remaining")

// Pending returns the queued items in replay order.
func (q *Queue) Pending(ctx context.Context) ([]models.QueueItem, error) {
	return q.storage.GetAll(ctx)
}

func (q *Queue) exhaust(ctx context.Context, item models.QueueItem, cause error) {
	if err := q.storage.Remove(ctx, item.ID); err != nil {
		log.Error().Err(err).
			Str("item_id", item.ID.String()).
			Msg("failed to drop exhausted item")
	}
	err := matcherr.QueueExhausted("action %s dropped after %d attempts: %v", item.Action, item.MaxRetries, cause)
	log.Error().Err(err).
		Str("item_id", item.ID.String()).
		Str("action", item.Action).
		Msg("offline action exhausted retries")
	if q.onExhausted != nil {
		q.onExhausted(item, err)
	}
}
