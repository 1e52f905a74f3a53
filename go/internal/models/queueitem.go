package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueItem is a state-changing request captured while the network path was
// down. An item is removed exactly once: on successful delivery or on
// exhausting its retry budget.
type QueueItem struct {
	ID         uuid.UUID       `json:"id"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}
