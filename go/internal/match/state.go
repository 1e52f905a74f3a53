package match

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matchlive/matchcore/go/internal/clocksync"
	"github.com/matchlive/matchcore/go/internal/match/events"
	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// State is the session-scoped holder for one live match. One instance per
// match id, passed by handle; concurrent sessions never share memory.
type State struct {
	mu      sync.Mutex
	session models.MatchSession
	round   models.Round
	teams   map[models.TeamColor]*models.Team
	order   []models.TeamColor
	history []models.RoundHistoryEntry

	// advisory UI counter, never the source of truth for elapsed time
	ticks int
}

// Rotation describes the outcome of a round-end transition.
type Rotation struct {
	Continuing     models.TeamColor
	NextChallenger models.TeamColor
	NextRound      int
}

// GoalPatch replaces fields on an existing goal event. Score bookkeeping is
// never patched directly; scores are recomputed from the log.
type GoalPatch struct {
	Team        *models.TeamColor
	ScorerID    *uuid.UUID
	AssistID    *uuid.UUID
	ClearAssist bool
}

// NewState creates the state for a fresh draw. The first two teams in draw
// order open round 1.
func NewState(sessionID uuid.UUID, roundDurationSec int, teams []models.Team, now time.Time) (*State, error) {
	if len(teams) < 2 {
		return nil, matcherr.Validation("a match needs at least 2 teams, got %d", len(teams))
	}

	s := &State{
		session: models.MatchSession{
			ID:               sessionID,
			Status:           models.MatchStatusScheduled,
			RoundDurationSec: roundDurationSec,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		teams: make(map[models.TeamColor]*models.Team, len(teams)),
	}
	s.installTeams(teams)
	s.round = models.Round{
		Number: 1,
		InPlay: [2]models.TeamColor{s.order[0], s.order[1]},
		Scores: map[models.TeamColor]int{s.order[0]: 0, s.order[1]: 0},
	}
	return s, nil
}

func (s *State) installTeams(teams []models.Team) {
	s.order = s.order[:0]
	s.teams = make(map[models.TeamColor]*models.Team, len(teams))
	for i := range teams {
		t := teams[i]
		s.teams[t.Color] = &t
		s.order = append(s.order, t.Color)
	}
}

// Start transitions Scheduled or Paused to Live. Resuming folds the pause
// interval into the accumulated paused duration so the clock triple stays
// authoritative.
func (s *State) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.session.Status {
	case models.MatchStatusScheduled:
		startedAt := now
		s.session.StartedAt = &startedAt
		s.session.PausedMs = 0
		s.session.PausedAt = nil
	case models.MatchStatusPaused:
		if s.session.PausedAt != nil {
			s.session.PausedMs += now.Sub(*s.session.PausedAt).Milliseconds()
		}
		s.session.PausedAt = nil
	default:
		return matcherr.InvalidState("cannot start match in status %s", s.session.Status)
	}

	s.session.Status = models.MatchStatusLive
	s.session.UpdatedAt = now
	s.round.Running = true
	return nil
}

// Pause transitions Live to Paused and freezes the clock at now.
func (s *State) Pause(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status != models.MatchStatusLive {
		return matcherr.InvalidState("cannot pause match in status %s", s.session.Status)
	}

	pausedAt := now
	s.session.PausedAt = &pausedAt
	s.session.Status = models.MatchStatusPaused
	s.session.UpdatedAt = now
	s.round.Running = false
	return nil
}

// Reset zeroes the current round's scores and goal log and stops the clock.
// Round number and the in-play pair are untouched. An ended match cannot be
// reset.
func (s *State) Reset(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status == models.MatchStatusEnded {
		return matcherr.InvalidState("cannot reset an ended match")
	}

	for c := range s.round.Scores {
		s.round.Scores[c] = 0
	}
	s.round.Goals = nil
	s.round.Running = false
	s.session.Status = models.MatchStatusScheduled
	s.session.StartedAt = nil
	s.session.PausedAt = nil
	s.session.PausedMs = 0
	s.session.UpdatedAt = now
	s.ticks = 0
	return nil
}

// End terminates the session. Ended is terminal.
func (s *State) End(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status == models.MatchStatusEnded {
		return matcherr.InvalidState("match already ended")
	}

	if s.session.Status == models.MatchStatusPaused && s.session.PausedAt != nil {
		s.session.PausedMs += now.Sub(*s.session.PausedAt).Milliseconds()
		s.session.PausedAt = nil
	}
	s.session.Status = models.MatchStatusEnded
	s.session.UpdatedAt = now
	s.round.Running = false
	return nil
}

// AddGoal appends a goal event for an in-play team and bumps its score.
func (s *State) AddGoal(team models.TeamColor, scorerID uuid.UUID, assistID *uuid.UUID, now time.Time) (models.GoalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status != models.MatchStatusLive {
		return models.GoalEvent{}, matcherr.InvalidState("cannot add goal in status %s", s.session.Status)
	}
	if !s.inPlay(team) {
		return models.GoalEvent{}, matcherr.Validation("team %s is not in play", team)
	}

	goal := models.GoalEvent{
		ID:       uuid.New(),
		Team:     team,
		ScorerID: scorerID,
		AssistID: assistID,
		ScoredAt: now,
	}
	s.round.Goals = append(s.round.Goals, goal)
	s.round.Scores[team]++
	s.session.UpdatedAt = now
	return goal, nil
}

// EditGoal replaces fields on an existing goal event and recomputes scores
// from the log.
func (s *State) EditGoal(goalID uuid.UUID, patch GoalPatch, now time.Time) (models.GoalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.goalIndex(goalID)
	if idx < 0 {
		return models.GoalEvent{}, matcherr.NotFound("goal event %s not found", goalID)
	}

	if patch.Team != nil {
		if !s.inPlay(*patch.Team) {
			return models.GoalEvent{}, matcherr.Validation("team %s is not in play", *patch.Team)
		}
		s.round.Goals[idx].Team = *patch.Team
	}
	if patch.ScorerID != nil {
		s.round.Goals[idx].ScorerID = *patch.ScorerID
	}
	if patch.ClearAssist {
		s.round.Goals[idx].AssistID = nil
	} else if patch.AssistID != nil {
		s.round.Goals[idx].AssistID = patch.AssistID
	}

	s.recomputeScoresLocked()
	s.session.UpdatedAt = now
	return s.round.Goals[idx], nil
}

// DeleteGoal removes a goal event and recomputes scores from the remaining
// log, so the score never drifts from the events.
func (s *State) DeleteGoal(goalID uuid.UUID, now time.Time) (models.GoalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.goalIndex(goalID)
	if idx < 0 {
		return models.GoalEvent{}, matcherr.NotFound("goal event %s not found", goalID)
	}

	removed := s.round.Goals[idx]
	s.round.Goals = append(s.round.Goals[:idx], s.round.Goals[idx+1:]...)
	s.recomputeScoresLocked()
	s.session.UpdatedAt = now
	return removed, nil
}

// RecomputeScores rebuilds the per-team scores from the goal log. This is
// the canonical repair path for the score invariant.
func (s *State) RecomputeScores() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeScoresLocked()
}

func (s *State) recomputeScoresLocked() {
	for c := range s.round.Scores {
		s.round.Scores[c] = 0
	}
	for _, g := range s.round.Goals {
		s.round.Scores[g.Team]++
	}
}

// EndRoundChooseNext closes the current round under the winner-stays rule.
// The higher-scoring team continues; on a draw the left-hand team continues
// by convention. The next challenger is explicit if supplied, otherwise the
// first palette color with a team that was not part of the closing pair.
// With only two teams in the game there is no rotation pool, so the evicted
// opponent is re-challenged (product rule chosen here, pending
// clarification).
func (s *State) EndRoundChooseNext(explicit *models.TeamColor, now time.Time) (models.RoundHistoryEntry, Rotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Status == models.MatchStatusEnded {
		return models.RoundHistoryEntry{}, Rotation{}, matcherr.InvalidState("match already ended")
	}

	left, right := s.round.InPlay[0], s.round.InPlay[1]
	leftScore, rightScore := s.round.Scores[left], s.round.Scores[right]

	entry := models.RoundHistoryEntry{
		RoundNumber: s.round.Number,
		Left:        left,
		Right:       right,
		LeftScore:   leftScore,
		RightScore:  rightScore,
		EndedAt:     now,
	}

	continuing := left
	switch {
	case leftScore > rightScore:
		winner := left
		entry.Winner = &winner
	case rightScore > leftScore:
		winner := right
		entry.Winner = &winner
		continuing = right
	}

	evicted := left
	if continuing == left {
		evicted = right
	}

	challenger, err := s.nextChallengerLocked(explicit, continuing, evicted)
	if err != nil {
		return models.RoundHistoryEntry{}, Rotation{}, err
	}

	s.history = append(s.history, entry)

	s.round = models.Round{
		Number: s.round.Number + 1,
		InPlay: [2]models.TeamColor{continuing, challenger},
		Scores: map[models.TeamColor]int{continuing: 0, challenger: 0},
	}
	s.session.UpdatedAt = now

	return entry, Rotation{
		Continuing:     continuing,
		NextChallenger: challenger,
		NextRound:      s.round.Number,
	}, nil
}

func (s *State) nextChallengerLocked(explicit *models.TeamColor, continuing, evicted models.TeamColor) (models.TeamColor, error) {
	if explicit != nil {
		c := *explicit
		if _, ok := s.teams[c]; !ok {
			return "", matcherr.Validation("no team with color %s in this match", c)
		}
		if c == continuing {
			return "", matcherr.Validation("next challenger cannot be the continuing team %s", c)
		}
		return c, nil
	}

	for _, c := range models.Palette() {
		if _, ok := s.teams[c]; !ok {
			continue
		}
		if c == continuing || c == evicted {
			continue
		}
		return c, nil
	}

	// No eligible color left (two-team game): re-challenge the evicted side.
	return evicted, nil
}

// Tick bumps the advisory local counter used for display smoothness.
// Missing or delayed ticks never desynchronize the match.
func (s *State) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	return s.ticks
}

// SwapSubstitute swaps a starter out for a substitute on the same team.
func (s *State) SwapSubstitute(color models.TeamColor, outID, inID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams[color]
	if !ok {
		return matcherr.NotFound("no team with color %s in this match", color)
	}

	outIdx, inIdx := -1, -1
	for i := range team.Players {
		switch team.Players[i].ID {
		case outID:
			outIdx = i
		case inID:
			inIdx = i
		}
	}
	if outIdx < 0 {
		return matcherr.NotFound("player %s not on team %s", outID, color)
	}
	if inIdx < 0 {
		return matcherr.NotFound("player %s not on team %s", inID, color)
	}
	if team.Players[outIdx].Substitute {
		return matcherr.Validation("player %s is not in the active lineup", outID)
	}
	if !team.Players[inIdx].Substitute {
		return matcherr.Validation("player %s is already in the active lineup", inID)
	}

	team.Players[outIdx].Substitute = true
	team.Players[inIdx].Substitute = false
	s.session.UpdatedAt = now
	return nil
}

// ReplaceTeams installs a fresh draw. The current round keeps its number
// but scores and goal log reset for the new pairing.
func (s *State) ReplaceTeams(teams []models.Team, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(teams) < 2 {
		return matcherr.Validation("a match needs at least 2 teams, got %d", len(teams))
	}
	if s.session.Status == models.MatchStatusLive {
		return matcherr.InvalidState("cannot re-draw teams while live")
	}

	s.installTeams(teams)
	s.round.InPlay = [2]models.TeamColor{s.order[0], s.order[1]}
	s.round.Scores = map[models.TeamColor]int{s.order[0]: 0, s.order[1]: 0}
	s.round.Goals = nil
	s.round.Running = false
	s.session.UpdatedAt = now
	return nil
}

// Elapsed derives the authoritative elapsed seconds from the clock triple.
func (s *State) Elapsed(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clocksync.Elapsed(s.session.Status, s.session.StartedAt, s.session.PausedAt, s.session.PausedMs, now)
}

// EligibleScorers lists the active lineup of an in-play team.
func (s *State) EligibleScorers(color models.TeamColor) []models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams[color]
	if !ok {
		return nil
	}
	return team.Starters()
}

// Session returns a copy of the session record.
func (s *State) Session() models.MatchSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Round returns a copy of the current round, including the goal log.
func (s *State) Round() models.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyRoundLocked()
}

func (s *State) copyRoundLocked() models.Round {
	r := s.round
	r.Scores = make(map[models.TeamColor]int, len(s.round.Scores))
	for c, v := range s.round.Scores {
		r.Scores[c] = v
	}
	r.Goals = append([]models.GoalEvent(nil), s.round.Goals...)
	return r
}

// History returns a copy of the completed-round summaries.
func (s *State) History() []models.RoundHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RoundHistoryEntry(nil), s.history...)
}

// Teams returns copies of the teams in draw order.
func (s *State) Teams() []models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyTeamsLocked()
}

func (s *State) copyTeamsLocked() []models.Team {
	teams := make([]models.Team, 0, len(s.order))
	for _, c := range s.order {
		t := *s.teams[c]
		t.Players = append([]models.Player(nil), t.Players...)
		teams = append(teams, t)
	}
	return teams
}

// StatusPayload builds the match_status message for clients joining
// mid-match.
func (s *State) StatusPayload(now time.Time) events.MatchStatusPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[models.TeamColor]int, len(s.round.Scores))
	for c, v := range s.round.Scores {
		scores[c] = v
	}

	triple := s.clockFieldsLocked()
	return events.MatchStatusPayload{
		SessionID:   s.session.ID.String(),
		RoundNumber: s.round.Number,
		InPlay:      s.round.InPlay,
		Scores:      scores,
		Running:     s.round.Running,
		ElapsedSec:  clocksync.Elapsed(triple.Status, triple.StartedAt, triple.PausedAt, triple.PausedMs, now),
		ClockFields: triple,
	}
}

// ClockFields returns the authoritative clock triple for broadcasts.
func (s *State) ClockFields() events.ClockFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockFieldsLocked()
}

func (s *State) clockFieldsLocked() events.ClockFields {
	return events.ClockFields{
		Status:    s.session.Status,
		StartedAt: s.session.StartedAt,
		PausedAt:  s.session.PausedAt,
		PausedMs:  s.session.PausedMs,
	}
}

func (s *State) inPlay(team models.TeamColor) bool {
	return team == s.round.InPlay[0] || team == s.round.InPlay[1]
}

func (s *State) goalIndex(goalID uuid.UUID) int {
	for i := range s.round.Goals {
		if s.round.Goals[i].ID == goalID {
			return i
		}
	}
	return -1
}
