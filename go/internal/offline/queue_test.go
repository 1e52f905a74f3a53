package offline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []models.QueueItem
	failures map[string]int // action -> remaining failures
	err      error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: make(map[string]int)}
}

func (s *fakeSender) Send(ctx context.Context, item models.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if n := s.failures[item.Action]; n > 0 {
		s.failures[item.Action] = n - 1
		return errors.New("send failed")
	}
	s.sent = append(s.sent, item)
	return nil
}

func (s *fakeSender) sentActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, item := range s.sent {
		out = append(out, item.Action)
	}
	return out
}

func newTestQueue(sender Sender, onExhausted func(models.QueueItem, error)) *Queue {
	return NewQueue(NewMemoryStorage(), sender, clockwork.NewFakeClock(), Config{
		MaxRetries: 3,
	}, onExhausted)
}

func TestFlushReplaysInOrder(t *testing.T) {
	sender := newFakeSender()
	queue := newTestQueue(sender, nil)
	ctx := context.Background()

	for _, action := range []string{"first", "second", "third"} {
		if _, err := queue.Enqueue(ctx, action, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", action, err)
		}
	}

	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got := sender.sentActions()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("sent %d actions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d = %s, want %s", i, got[i], want[i])
		}
	}

	pending, err := queue.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after flush = %d, want 0", len(pending))
	}
}

func TestFlushRetriesThenSucceeds(t *testing.T) {
	sender := newFakeSender()
	sender.failures["flaky"] = 1
	queue := newTestQueue(sender, nil)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, "flaky", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := queue.Flush(ctx); err == nil {
		t.Fatal("Flush() expected error on first attempt")
	}
	pending, _ := queue.Pending(ctx)
	if len(pending) != 1 || pending[0].RetryCount != 1 {
		t.Fatalf("pending = %+v, want one item with retry count 1", pending)
	}

	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("Flush() second attempt error = %v", err)
	}
	if got := sender.sentActions(); len(got) != 1 {
		t.Errorf("sent = %d, want 1", len(got))
	}
	pending, _ = queue.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after success = %d, want 0", len(pending))
	}
}

func TestExhaustedItemIsDroppedAndReported(t *testing.T) {
	sender := newFakeSender()
	sender.failures["doomed"] = 10

	var exhausted []models.QueueItem
	var exhaustedErr error
	queue := newTestQueue(sender, func(item models.QueueItem, err error) {
		exhausted = append(exhausted, item)
		exhaustedErr = err
	})
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, "doomed", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// MaxRetries failed sends, then the item is dropped.
	for i := 0; i < 2; i++ {
		if err := queue.Flush(ctx); err == nil {
			t.Fatalf("Flush() attempt %d expected error", i+1)
		}
	}
	// Third failure exhausts; Flush itself reports success since nothing
	// retryable remains.
	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("Flush() exhausting attempt error = %v", err)
	}

	if len(exhausted) != 1 {
		t.Fatalf("exhausted callbacks = %d, want 1", len(exhausted))
	}
	if exhausted[0].Action != "doomed" {
		t.Errorf("exhausted action = %s, want doomed", exhausted[0].Action)
	}
	if !matcherr.IsKind(exhaustedErr, matcherr.KindQueueExhausted) {
		t.Errorf("exhausted error = %v, want queue exhausted kind", exhaustedErr)
	}

	pending, _ := queue.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after exhaustion = %d, want 0", len(pending))
	}
}

func TestFlushDropsItemAlreadyAtBudget(t *testing.T) {
	storage := NewMemoryStorage()
	sender := newFakeSender()
	ctx := context.Background()

	// An item restored from storage with its budget already spent (the
	// process died between the retry increment and the drop) gets no
	// further send attempts.
	stale := models.QueueItem{
		ID:         uuid.New(),
		Action:     "stale",
		Payload:    json.RawMessage(`{}`),
		RetryCount: 3,
		MaxRetries: 3,
	}
	if err := storage.Add(ctx, stale); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var exhausted []models.QueueItem
	var exhaustedErr error
	queue := NewQueue(storage, sender, clockwork.NewFakeClock(), Config{MaxRetries: 3}, func(item models.QueueItem, err error) {
		exhausted = append(exhausted, item)
		exhaustedErr = err
	})

	if err := queue.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := sender.sentActions(); len(got) != 0 {
		t.Fatalf("sent = %v, want no attempts for an exhausted item", got)
	}
	if len(exhausted) != 1 || exhausted[0].ID != stale.ID {
		t.Fatalf("exhausted callbacks = %+v, want the stale item", exhausted)
	}
	if !matcherr.IsKind(exhaustedErr, matcherr.KindQueueExhausted) {
		t.Errorf("exhausted error = %v, want queue exhausted kind", exhaustedErr)
	}
	pending, _ := queue.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestExhaustionDoesNotBlockLaterItems(t *testing.T) {
	sender := newFakeSender()
	sender.failures["doomed"] = 10
	queue := newTestQueue(sender, nil)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, "doomed", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := queue.Enqueue(ctx, "healthy", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// The healthy item behind the failing one still goes out on the
	// first flush.
	if err := queue.Flush(ctx); err == nil {
		t.Fatal("Flush() expected error while doomed item retries")
	}
	if got := sender.sentActions(); len(got) != 1 || got[0] != "healthy" {
		t.Fatalf("sent = %v, want [healthy]", got)
	}
}

func TestQueueItemsSurviveRestart(t *testing.T) {
	storage := NewMemoryStorage()
	clock := clockwork.NewFakeClock()
	sender := newFakeSender()
	sender.err = errors.New("offline")
	ctx := context.Background()

	queue := NewQueue(storage, sender, clock, Config{MaxRetries: 3}, nil)
	if _, err := queue.Enqueue(ctx, "persisted", json.RawMessage(`{"n":1}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// A fresh queue over the same storage sees the item.
	sender.err = nil
	requeued := NewQueue(storage, sender, clock, Config{MaxRetries: 3}, nil)
	if err := requeued.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := sender.sentActions(); len(got) != 1 || got[0] != "persisted" {
		t.Fatalf("sent = %v, want [persisted]", got)
	}
}

func TestDefaultBackoffCaps(t *testing.T) {
	if DefaultBackoff(1) >= DefaultBackoff(2) {
		t.Error("backoff should grow with consecutive failures")
	}
	if got := DefaultBackoff(10); got.Seconds() != 30 {
		t.Errorf("backoff cap = %v, want 30s", got)
	}
}
