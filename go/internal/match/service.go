package match

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// Service exposes the match app over HTTP.
type Service struct {
	app *App
}

// NewService creates a new match service.
func NewService(app *App) *Service {
	return &Service{app: app}
}

type createSessionRequest struct {
	MatchID          string `json:"match_id"`
	TeamSize         int    `json:"team_size"`
	RoundDurationSec int    `json:"round_duration_sec"`
	Seed             int64  `json:"seed"`
}

type addGoalRequest struct {
	Team     models.TeamColor `json:"team"`
	ScorerID string           `json:"scorer_id"`
	AssistID *string          `json:"assist_id,omitempty"`
}

type editGoalRequest struct {
	Team        *models.TeamColor `json:"team,omitempty"`
	ScorerID    *string           `json:"scorer_id,omitempty"`
	AssistID    *string           `json:"assist_id,omitempty"`
	ClearAssist bool              `json:"clear_assist"`
}

type endRoundRequest struct {
	NextChallenger *models.TeamColor `json:"next_challenger,omitempty"`
}

type swapSubstituteRequest struct {
	Team  models.TeamColor `json:"team"`
	OutID string           `json:"out_id"`
	InID  string           `json:"in_id"`
}

// RegisterRoutes registers the session API with an HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /api/sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/sessions/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /api/sessions/{id}/end", s.handleEnd)
	mux.HandleFunc("POST /api/sessions/{id}/goals", s.handleAddGoal)
	mux.HandleFunc("PATCH /api/sessions/{id}/goals/{goalID}", s.handleEditGoal)
	mux.HandleFunc("DELETE /api/sessions/{id}/goals/{goalID}", s.handleDeleteGoal)
	mux.HandleFunc("POST /api/sessions/{id}/rounds/end", s.handleEndRound)
	mux.HandleFunc("POST /api/sessions/{id}/substitutions", s.handleSwapSubstitute)
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		http.Error(w, "invalid match_id format", http.StatusBadRequest)
		return
	}

	state, assignment, err := s.app.CreateSession(r.Context(), CreateSessionRequest{
		MatchID:          matchID,
		TeamSize:         req.TeamSize,
		RoundDurationSec: req.RoundDurationSec,
		Seed:             req.Seed,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": state.Session(),
		"teams":   assignment.Teams,
		"stats":   assignment.Stats,
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	status, err := s.app.Status(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	state, err := s.app.Session(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state.History())
}

func (s *Service) handleStart(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.app.StartMatch)
}

func (s *Service) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.app.PauseMatch)
}

func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.app.ResetMatch)
}

func (s *Service) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.app.EndMatch)
}

func (s *Service) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) error) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := op(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	status, err := s.app.Status(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req addGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	scorerID, err := uuid.Parse(req.ScorerID)
	if err != nil {
		http.Error(w, "invalid scorer_id format", http.StatusBadRequest)
		return
	}
	assistID, ok := parseOptionalUUID(w, req.AssistID, "assist_id")
	if !ok {
		return
	}

	goal, err := s.app.AddGoal(r.Context(), sessionID, AddGoalRequest{
		Team:     req.Team,
		ScorerID: scorerID,
		AssistID: assistID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Service) handleEditGoal(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	goalID, err := uuid.Parse(r.PathValue("goalID"))
	if err != nil {
		http.Error(w, "invalid goal id format", http.StatusBadRequest)
		return
	}

	var req editGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	patch := GoalPatch{Team: req.Team, ClearAssist: req.ClearAssist}
	if req.ScorerID != nil {
		scorerID, err := uuid.Parse(*req.ScorerID)
		if err != nil {
			http.Error(w, "invalid scorer_id format", http.StatusBadRequest)
			return
		}
		patch.ScorerID = &scorerID
	}
	assistID, ok := parseOptionalUUID(w, req.AssistID, "assist_id")
	if !ok {
		return
	}
	patch.AssistID = assistID

	goal, err := s.app.EditGoal(r.Context(), sessionID, goalID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Service) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	goalID, err := uuid.Parse(r.PathValue("goalID"))
	if err != nil {
		http.Error(w, "invalid goal id format", http.StatusBadRequest)
		return
	}

	if err := s.app.DeleteGoal(r.Context(), sessionID, goalID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleEndRound(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req endRoundRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	entry, err := s.app.EndRound(r.Context(), sessionID, req.NextChallenger)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Service) handleSwapSubstitute(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req swapSubstituteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outID, err := uuid.Parse(req.OutID)
	if err != nil {
		http.Error(w, "invalid out_id format", http.StatusBadRequest)
		return
	}
	inID, err := uuid.Parse(req.InID)
	if err != nil {
		http.Error(w, "invalid in_id format", http.StatusBadRequest)
		return
	}

	if err := s.app.SwapSubstitute(r.Context(), sessionID, req.Team, outID, inID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return sessionID, true
}

func parseOptionalUUID(w http.ResponseWriter, raw *string, field string) (*uuid.UUID, bool) {
	if raw == nil {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		http.Error(w, "invalid "+field+" format", http.StatusBadRequest)
		return nil, false
	}
	return &id, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case matcherr.IsKind(err, matcherr.KindValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case matcherr.IsKind(err, matcherr.KindNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case matcherr.IsKind(err, matcherr.KindInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
