package match

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/balancer"
	"github.com/matchlive/matchcore/go/internal/match/events"
	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// Repository defines what the app needs from the persistence layer. The
// core never embeds storage logic; the backing store is external.
type Repository interface {
	LoadRoster(ctx context.Context, matchID uuid.UUID) ([]models.Player, error)
	SaveSnapshot(ctx context.Context, matchID uuid.UUID, snap Snapshot) error
	AppendHistory(ctx context.Context, matchID uuid.UUID, entry models.RoundHistoryEntry) error
}

// EventSink receives every applied mutation for fan-out. Implementations
// absorb transport failures (retry, offline queue); a sink error never
// blocks the state machine.
type EventSink interface {
	Emit(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, payload []byte) error
}

// CreateSessionRequest configures a new match session draw.
type CreateSessionRequest struct {
	MatchID          uuid.UUID
	TeamSize         int
	RoundDurationSec int
	Seed             int64
}

// AddGoalRequest credits a goal to an in-play team.
type AddGoalRequest struct {
	Team     models.TeamColor
	ScorerID uuid.UUID
	AssistID *uuid.UUID
}

// App owns the registry of live session states and applies validated
// mutations: each one is applied to the state holder, persisted as a
// snapshot, and offered to the event sink.
type App struct {
	repo  Repository
	sink  EventSink
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[uuid.UUID]*State
}

// NewApp creates a match app. Pass clockwork.NewRealClock() in production.
func NewApp(repo Repository, sink EventSink, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		sink:     sink,
		clock:    clock,
		sessions: make(map[uuid.UUID]*State),
	}
}

// CreateSession loads the roster, balances it into teams and registers a
// fresh session state. The assignment is returned for display alongside
// its balance statistics.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*State, *balancer.Assignment, error) {
	roster, err := a.repo.LoadRoster(ctx, req.MatchID)
	if err != nil {
		return nil, nil, err
	}

	assignment, err := balancer.Balance(roster, req.TeamSize, balancer.WithSeed(req.Seed))
	if err != nil {
		return nil, nil, err
	}

	state, err := NewState(req.MatchID, req.RoundDurationSec, assignment.Teams, a.clock.Now())
	if err != nil {
		return nil, nil, err
	}

	a.mu.Lock()
	a.sessions[req.MatchID] = state
	a.mu.Unlock()

	a.persist(ctx, state)

	log.Info().
		Str("session_id", req.MatchID.String()).
		Int("players", len(roster)).
		Int("teams", len(assignment.Teams)).
		Float64("rating_variance", assignment.Stats.Variance).
		Msg("session created")

	return state, assignment, nil
}

// RestoreSession registers a session rebuilt from a persisted snapshot.
func (a *App) RestoreSession(snap Snapshot) (*State, error) {
	state, err := RestoreState(snap)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.sessions[snap.Session.ID] = state
	a.mu.Unlock()

	log.Info().
		Str("session_id", snap.Session.ID.String()).
		Int("round", snap.Round.Number).
		Msg("session restored from snapshot")
	return state, nil
}

// Session returns the state holder for a registered session.
func (a *App) Session(sessionID uuid.UUID) (*State, error) {
	a.mu.RLock()
	state, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if !ok {
		return nil, matcherr.NotFound("no session %s", sessionID)
	}
	return state, nil
}

// CloseSession drops a session from the registry.
func (a *App) CloseSession(sessionID uuid.UUID) {
	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
}

// StartMatch transitions a session to Live and broadcasts the new clock
// triple.
func (a *App) StartMatch(ctx context.Context, sessionID uuid.UUID) error {
	state, err := a.Session(sessionID)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	if err := state.Start(now); err != nil {
		return err
	}
	a.persist(ctx, state)

	a.emit(ctx, state, events.EventTypeMatchStarted, events.MatchStartedPayload{
		SessionID:   sessionID.String(),
		RoundNumber: state.Round().Number,
		ResumedAt:   now,
		ClockFields: state.ClockFields(),
	})
	return nil
}

// PauseMatch transitions a session to Paused and broadcasts the frozen
// clock triple.
func (a *App) PauseMatch(ctx context.Context, sessionID uuid.UUID) error {
	state, err := a.Session(sessionID)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	if err := state.Pause(now); err != nil {
		return err
	}
	a.persist(ctx, state)

	a.emit(ctx, state, events.EventTypeMatchPaused, events.MatchPausedPayload{
		SessionID:   sessionID.String(),
		PausedAt:    now,
		ClockFields: state.ClockFields(),
	})
	return nil
}

// ResetMatch zeroes the current round and clock.
func (a *App) ResetMatch(ctx context.Context, sessionID uuid.UUID) error {
	state, err := a.Session(sessionID)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	if err := state.Reset(now); err != nil {
		return err
	}
	a.persist(ctx, state)

	a.emit(ctx, state, events.EventTypeMatchReset, events.MatchResetPayload{
		SessionID:   sessionID.String(),
		RoundNumber: state.Round().Number,
		ResetAt:     now,
		ClockFields: state.ClockFields(),
	})
	return nil
}

// EndMatch terminates a session.
func (a *App) EndMatch(ctx context.Context, sessionID uuid.UUID) error {
	state, err := a.Session(sessionID)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	if err := state.End(now); err != nil {
		return err
	}
	a.persist(ctx, state)

	a.emit(ctx, state, events.EventTypeMatchEnded, events.MatchEndedPayload{
		SessionID:   sessionID.String(),
		EndedAt:     now,
		ClockFields: state.ClockFields(),
	})
	return nil
}

// AddGoal validates and applies a goal, then broadcasts it with the
// resulting scores.
func (a *App) AddGoal(ctx context.Context, sessionID uuid.UUID, req AddGoalRequest) (models.GoalEvent, error) {
	state, err := a.Session(sessionID)
	if err != nil {
		return models.GoalEvent{}, err
	}

	goal, err := state.AddGoal(req.Team, req.ScorerID, req.AssistID, a.clock.Now())
	if err != nil {
		return models.GoalEvent{}, err
	}
	a.persist(ctx, state)

	round := state.Round()
	a.emit(ctx, state, events.EventTypeGoalAdded, events.GoalAddedPayload{
		SessionID:   sessionID.String(),
		GoalID:      goal.ID.String(),
		Team:        goal.Team,
		ScorerID:    goal.ScorerID.String(),
		AssistID:    uuidPtrToString(goal.AssistID),
		RoundNumber: round.Number,
		Scores:      round.Scores,
		ScoredAt:    goal.ScoredAt,
	})
	return goal, nil
}

// EditGoal patches an existing goal event.
func (a *App) EditGoal(ctx context.Context, sessionID, goalID uuid.UUID, patch GoalPatch) (models.GoalEvent, error) {
	state, err := a.Session(sessionID)
	if err != nil {
		return models.GoalEvent{}, err
	}

	goal, err := state.EditGoal(goalID, patch, a.clock.Now())
	if err != nil {
		return models.GoalEvent{}, err
	}
	a.persist(ctx, state)

	round := state.Round()
	a.emit(ctx, state, events.EventTypeGoalEdited, events.GoalEditedPayload{
		SessionID:   sessionID.String(),
		GoalID:      goal.ID.String(),
		Team:        goal.Team,
		ScorerID:    goal.ScorerID.String(),
		AssistID:    uuidPtrToString(goal.AssistID),
		RoundNumber: round.Number,
		Scores:      round.Scores,
	})
	return goal, nil
}

// DeleteGoal removes a goal event; scores are recomputed from the
// remaining log before the broadcast goes out.
func (a *App) DeleteGoal(ctx context.Context, sessionID, goalID uuid.UUID) error {
	state, err := a.Session(sessionID)
	if err != nil {
		return err
	}

	removed, err := state.DeleteGoal(goalID, a.clock.Now())
	if err != nil {
		return err
	}
	a.persist(ctx, state)

	round := state.Round()
	a.emit(ctx, state, events.EventTypeGoalDeleted, events.GoalDeletedPayload{
		SessionID:   sessionID.String(),
		GoalID:      removed.ID.String(),
		Team:        removed.Team,
		RoundNumber: round.Number,
		Scores:      round.Scores,
	})
	return nil
}

// EndRound applies the winner-stays transition, appends the completed
// round to history and broadcasts the rotation.
func (a *App) EndRound(ctx context.Context, sessionID uuid.UUID, explicitNext *models.TeamColor) (models.RoundHistoryEntry, error) {
	state, err := a.Session(sessionID)
	if err != nil {
		return models.RoundHistoryEntry{}, err
	}

	now := a.clock.Now()
	entry, rotation, err := state.EndRoundChooseNext(explicitNext, now)
	if err != nil {
		return models.RoundHistoryEntry{}, err
	}

	if err := a.repo.AppendHistory(ctx, sessionID, entry); err != nil {
		// The in-memory history is authoritative for the running session;
		// persistence catches up on the next snapshot.
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Int("round", entry.RoundNumber).
			Msg("failed to append round history")
	}
	a.persist(ctx, state)

	a.emit(ctx, state, events.EventTypeRoundEnded, events.RoundEndedPayload{
		SessionID:      sessionID.String(),
		RoundNumber:    entry.RoundNumber,
		Left:           entry.Left,
		Right:          entry.Right,
		LeftScore:      entry.LeftScore,
		RightScore:     entry.RightScore,
		Winner:         entry.Winner,
		Continuing:     rotation.Continuing,
		NextChallenger: rotation.NextChallenger,
		NextRound:      rotation.NextRound,
		EndedAt:        now,
	})
	return entry, nil
}

// SwapSubstitute rotates a substitute into the active lineup.
func (a *App) SwapSubstitute(ctx context.Context, sessionID uuid.UUID, color models.TeamColor, outID, inID uuid.UUID) error {
	state, err := a.Session(sessionID)
	if err != nil {
		return err
	}

	if err := state.SwapSubstitute(color, outID, inID, a.clock.Now()); err != nil {
		return err
	}
	a.persist(ctx, state)
	return nil
}

// Status builds the match_status payload a late joiner fetches instead of
// expecting the event stream to backfill.
func (a *App) Status(ctx context.Context, sessionID uuid.UUID) (events.MatchStatusPayload, error) {
	state, err := a.Session(sessionID)
	if err != nil {
		return events.MatchStatusPayload{}, err
	}
	return state.StatusPayload(a.clock.Now()), nil
}

func (a *App) persist(ctx context.Context, state *State) {
	snap := state.Snapshot()
	if err := a.repo.SaveSnapshot(ctx, snap.Session.ID, snap); err != nil {
		log.Error().Err(err).
			Str("session_id", snap.Session.ID.String()).
			Msg("failed to save snapshot")
	}
}

func (a *App) emit(ctx context.Context, state *State, eventType events.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).
			Str("event_type", string(eventType)).
			Msg("failed to marshal event payload")
		return
	}

	sessionID := state.Session().ID
	if err := a.sink.Emit(ctx, sessionID, eventType, data); err != nil {
		// Transport failures are the sink's problem (retry/offline queue);
		// the state machine is already consistent.
		log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", string(eventType)).
			Msg("event sink rejected broadcast")
	}
}

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
