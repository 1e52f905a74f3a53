package models

import (
	"time"

	"github.com/google/uuid"
)

// GoalEvent records a single goal inside the current round.
type GoalEvent struct {
	ID       uuid.UUID  `json:"id"`
	Team     TeamColor  `json:"team"`
	ScorerID uuid.UUID  `json:"scorer_id"`
	AssistID *uuid.UUID `json:"assist_id,omitempty"`
	ScoredAt time.Time  `json:"scored_at"`
}

// Round is one scoring period between two in-play teams. A round is
// superseded, never deleted: its summary survives as a RoundHistoryEntry.
type Round struct {
	Number  int               `json:"number"`
	InPlay  [2]TeamColor      `json:"in_play"`
	Scores  map[TeamColor]int `json:"scores"`
	Goals   []GoalEvent       `json:"goals"`
	Running bool              `json:"running"`
}

// RoundHistoryEntry is the append-only summary of a completed round.
// Winner is nil on a draw.
type RoundHistoryEntry struct {
	RoundNumber int        `json:"round_number"`
	Left        TeamColor  `json:"left"`
	Right       TeamColor  `json:"right"`
	LeftScore   int        `json:"left_score"`
	RightScore  int        `json:"right_score"`
	Winner      *TeamColor `json:"winner,omitempty"`
	EndedAt     time.Time  `json:"ended_at"`
}
