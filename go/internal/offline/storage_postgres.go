package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// PostgresStorage persists queued actions in the offline_queue table so
// they survive restarts. created_at ordering preserves replay order.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a durable queue store.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) Add(ctx context.Context, item models.QueueItem) error {
	const query = `
		INSERT INTO offline_queue (id, action, payload, created_at, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.ExecContext(ctx, query,
		item.ID, item.Action, []byte(item.Payload), item.CreatedAt, item.RetryCount, item.MaxRetries,
	); err != nil {
		return fmt.Errorf("failed to enqueue action %s: %w", item.Action, err)
	}
	return nil
}

func (s *PostgresStorage) GetAll(ctx context.Context) ([]models.QueueItem, error) {
	const query = `
		SELECT id, action, payload, created_at, retry_count, max_retries
		FROM offline_queue
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var (
			item    models.QueueItem
			payload []byte
		)
		if err := rows.Scan(&item.ID, &item.Action, &payload, &item.CreatedAt, &item.RetryCount, &item.MaxRetries); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Payload = payload
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStorage) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove queue item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return matcherr.NotFound("no queued item %s", id)
	}
	return nil
}

func (s *PostgresStorage) IncrementRetries(ctx context.Context, id uuid.UUID) (int, error) {
	const query = `
		UPDATE offline_queue
		SET retry_count = retry_count + 1
		WHERE id = $1
		RETURNING retry_count`

	var count int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, matcherr.NotFound("no queued item %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment retries for %s: %w", id, err)
	}
	return count, nil
}
