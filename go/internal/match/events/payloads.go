package events

import (
	"encoding/json"
	"time"

	"github.com/matchlive/matchcore/go/internal/models"
)

// EventType identifies a match_event broadcast.
type EventType string

const (
	EventTypeMatchStarted EventType = "MatchStarted"
	EventTypeMatchPaused  EventType = "MatchPaused"
	EventTypeMatchReset   EventType = "MatchReset"
	EventTypeMatchEnded   EventType = "MatchEnded"
	EventTypeGoalAdded    EventType = "GoalAdded"
	EventTypeGoalEdited   EventType = "GoalEdited"
	EventTypeGoalDeleted  EventType = "GoalDeleted"
	EventTypeRoundEnded   EventType = "RoundEnded"
)

// MatchEvent is the envelope for every match_event broadcast.
type MatchEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ClockFields is embedded in every lifecycle payload. The
// (StartedAt, PausedAt, PausedMs) triple is the single source of truth for
// elapsed time; receivers recompute from it and discard any locally
// accumulated value.
type ClockFields struct {
	Status    models.MatchStatus `json:"status"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	PausedAt  *time.Time         `json:"paused_at,omitempty"`
	PausedMs  int64              `json:"paused_ms"`
}

// MatchStartedPayload is the payload for a MatchStarted event. Emitted on
// both initial start and resume from pause.
type MatchStartedPayload struct {
	SessionID   string    `json:"session_id"`
	RoundNumber int       `json:"round_number"`
	ResumedAt   time.Time `json:"resumed_at"`
	ClockFields
}

// MatchPausedPayload is the payload for a MatchPaused event.
type MatchPausedPayload struct {
	SessionID string    `json:"session_id"`
	PausedAt  time.Time `json:"paused_at"`
	ClockFields
}

// MatchResetPayload is the payload for a MatchReset event.
type MatchResetPayload struct {
	SessionID   string    `json:"session_id"`
	RoundNumber int       `json:"round_number"`
	ResetAt     time.Time `json:"reset_at"`
	ClockFields
}

// MatchEndedPayload is the payload for a MatchEnded event.
type MatchEndedPayload struct {
	SessionID string    `json:"session_id"`
	EndedAt   time.Time `json:"ended_at"`
	ClockFields
}

// GoalAddedPayload is the payload for a GoalAdded event.
type GoalAddedPayload struct {
	SessionID   string                   `json:"session_id"`
	GoalID      string                   `json:"goal_id"`
	Team        models.TeamColor         `json:"team"`
	ScorerID    string                   `json:"scorer_id"`
	AssistID    *string                  `json:"assist_id,omitempty"`
	RoundNumber int                      `json:"round_number"`
	Scores      map[models.TeamColor]int `json:"scores"`
	ScoredAt    time.Time                `json:"scored_at"`
}

// GoalEditedPayload is the payload for a GoalEdited event.
type GoalEditedPayload struct {
	SessionID   string                   `json:"session_id"`
	GoalID      string                   `json:"goal_id"`
	Team        models.TeamColor         `json:"team"`
	ScorerID    string                   `json:"scorer_id"`
	AssistID    *string                  `json:"assist_id,omitempty"`
	RoundNumber int                      `json:"round_number"`
	Scores      map[models.TeamColor]int `json:"scores"`
}

// GoalDeletedPayload is the payload for a GoalDeleted event. Scores carries
// the recomputed values so projections never drift from the log.
type GoalDeletedPayload struct {
	SessionID   string                   `json:"session_id"`
	GoalID      string                   `json:"goal_id"`
	Team        models.TeamColor         `json:"team"`
	RoundNumber int                      `json:"round_number"`
	Scores      map[models.TeamColor]int `json:"scores"`
}

// RoundEndedPayload is the payload for a RoundEnded event.
type RoundEndedPayload struct {
	SessionID      string            `json:"session_id"`
	RoundNumber    int               `json:"round_number"`
	Left           models.TeamColor  `json:"left"`
	Right          models.TeamColor  `json:"right"`
	LeftScore      int               `json:"left_score"`
	RightScore     int               `json:"right_score"`
	Winner         *models.TeamColor `json:"winner,omitempty"`
	Continuing     models.TeamColor  `json:"continuing"`
	NextChallenger models.TeamColor  `json:"next_challenger"`
	NextRound      int               `json:"next_round"`
	EndedAt        time.Time         `json:"ended_at"`
}

// MatchStatusPayload is the match_status message sent to clients joining
// mid-match. The event stream never backfills history; late joiners fetch
// this instead.
type MatchStatusPayload struct {
	SessionID   string                   `json:"session_id"`
	RoundNumber int                      `json:"round_number"`
	InPlay      [2]models.TeamColor      `json:"in_play"`
	Scores      map[models.TeamColor]int `json:"scores"`
	Running     bool                     `json:"running"`
	ElapsedSec  int                      `json:"elapsed_sec"`
	ClockFields
}

// ParseEventPayload parses event data into the appropriate payload struct.
func ParseEventPayload(event *MatchEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeMatchStarted:
		var payload MatchStartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchPaused:
		var payload MatchPausedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchReset:
		var payload MatchResetPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchEnded:
		var payload MatchEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGoalAdded:
		var payload GoalAddedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGoalEdited:
		var payload GoalEditedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGoalDeleted:
		var payload GoalDeletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundEnded:
		var payload RoundEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // unknown event type
	}
}

// Lifecycle reports whether the event type changes the session lifecycle
// and therefore carries an authoritative clock triple.
func Lifecycle(t EventType) bool {
	switch t {
	case EventTypeMatchStarted, EventTypeMatchPaused, EventTypeMatchReset, EventTypeMatchEnded:
		return true
	}
	return false
}

// ClockFromEvent extracts the authoritative clock triple from a lifecycle
// event. ok is false for non-lifecycle events.
func ClockFromEvent(event *MatchEvent) (ClockFields, bool) {
	if !Lifecycle(event.Type) {
		return ClockFields{}, false
	}
	payload, err := ParseEventPayload(event)
	if err != nil {
		return ClockFields{}, false
	}
	switch p := payload.(type) {
	case MatchStartedPayload:
		return p.ClockFields, true
	case MatchPausedPayload:
		return p.ClockFields, true
	case MatchResetPayload:
		return p.ClockFields, true
	case MatchEndedPayload:
		return p.ClockFields, true
	}
	return ClockFields{}, false
}
