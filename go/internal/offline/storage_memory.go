package offline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// MemoryStorage keeps queued items in process memory. It backs tests and
// deployments that accept losing the queue on restart.
type MemoryStorage struct {
	mu    sync.Mutex
	items []models.QueueItem
}

// NewMemoryStorage creates an empty in-memory queue store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Add(ctx context.Context, item models.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *MemoryStorage) GetAll(ctx context.Context) ([]models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.QueueItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *MemoryStorage) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return matcherr.NotFound("no queued item %s", id)
}

func (s *MemoryStorage) IncrementRetries(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].RetryCount++
			return s.items[i].RetryCount, nil
		}
	}
	return 0, matcherr.NotFound("no queued item %s", id)
}
