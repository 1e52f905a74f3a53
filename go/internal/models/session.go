package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus defines the lifecycle status of a match session.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "SCHEDULED"
	MatchStatusLive      MatchStatus = "LIVE"
	MatchStatusPaused    MatchStatus = "PAUSED"
	MatchStatusEnded     MatchStatus = "ENDED"
)

// MatchSession represents one live game. Elapsed time is always derived
// from (StartedAt, PausedMs), never from accumulated ticks.
type MatchSession struct {
	ID               uuid.UUID   `json:"id"`
	Status           MatchStatus `json:"status"`
	RoundDurationSec int         `json:"round_duration_sec"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	PausedAt         *time.Time  `json:"paused_at,omitempty"`
	PausedMs         int64       `json:"paused_ms"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
