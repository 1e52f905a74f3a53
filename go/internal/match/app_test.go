package match

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/matchlive/matchcore/go/internal/match/events"
	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

type fakeRepo struct {
	mu        sync.Mutex
	roster    []models.Player
	rosterErr error
	snapshots map[uuid.UUID]Snapshot
	history   map[uuid.UUID][]models.RoundHistoryEntry
}

func newFakeRepo(roster []models.Player) *fakeRepo {
	return &fakeRepo{
		roster:    roster,
		snapshots: make(map[uuid.UUID]Snapshot),
		history:   make(map[uuid.UUID][]models.RoundHistoryEntry),
	}
}

func (r *fakeRepo) LoadRoster(ctx context.Context, matchID uuid.UUID) ([]models.Player, error) {
	if r.rosterErr != nil {
		return nil, r.rosterErr
	}
	return r.roster, nil
}

func (r *fakeRepo) SaveSnapshot(ctx context.Context, matchID uuid.UUID, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[matchID] = snap
	return nil
}

func (r *fakeRepo) AppendHistory(ctx context.Context, matchID uuid.UUID, entry models.RoundHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[matchID] = append(r.history[matchID], entry)
	return nil
}

type recordedEmit struct {
	sessionID uuid.UUID
	eventType events.EventType
	payload   []byte
}

type fakeSink struct {
	mu    sync.Mutex
	emits []recordedEmit
	err   error
}

func (s *fakeSink) Emit(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.emits = append(s.emits, recordedEmit{sessionID: sessionID, eventType: eventType, payload: payload})
	return nil
}

func (s *fakeSink) types() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.EventType, 0, len(s.emits))
	for _, e := range s.emits {
		out = append(out, e.eventType)
	}
	return out
}

func testRoster(n int) []models.Player {
	players := make([]models.Player, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, models.Player{
			ID:          uuid.New(),
			DisplayName: "player",
			Rating:      (i % 5) + 1,
		})
	}
	return players
}

func newTestApp(t *testing.T, roster []models.Player) (*App, *fakeRepo, *fakeSink, uuid.UUID) {
	t.Helper()

	repo := newFakeRepo(roster)
	sink := &fakeSink{}
	app := NewApp(repo, sink, clockwork.NewFakeClock())

	matchID := uuid.New()
	_, _, err := app.CreateSession(context.Background(), CreateSessionRequest{
		MatchID:          matchID,
		TeamSize:         2,
		RoundDurationSec: 420,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return app, repo, sink, matchID
}

func TestCreateSessionBalancesAndPersists(t *testing.T) {
	repo := newFakeRepo(testRoster(8))
	sink := &fakeSink{}
	app := NewApp(repo, sink, clockwork.NewFakeClock())

	matchID := uuid.New()
	state, assignment, err := app.CreateSession(context.Background(), CreateSessionRequest{
		MatchID:          matchID,
		TeamSize:         2,
		RoundDurationSec: 420,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if len(assignment.Teams) != 4 {
		t.Errorf("teams = %d, want 4", len(assignment.Teams))
	}
	if state.Session().ID != matchID {
		t.Errorf("session id = %s, want %s", state.Session().ID, matchID)
	}
	if _, ok := repo.snapshots[matchID]; !ok {
		t.Error("initial snapshot not persisted")
	}
}

func TestCreateSessionRosterFailure(t *testing.T) {
	repo := newFakeRepo(nil)
	repo.rosterErr = errors.New("db down")
	app := NewApp(repo, &fakeSink{}, clockwork.NewFakeClock())

	_, _, err := app.CreateSession(context.Background(), CreateSessionRequest{
		MatchID:  uuid.New(),
		TeamSize: 2,
	})
	if err == nil {
		t.Fatal("CreateSession() expected error")
	}
}

func TestLifecycleOperationsEmitEvents(t *testing.T) {
	app, repo, sink, matchID := newTestApp(t, testRoster(8))
	ctx := context.Background()

	if err := app.StartMatch(ctx, matchID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}
	if err := app.PauseMatch(ctx, matchID); err != nil {
		t.Fatalf("PauseMatch() error = %v", err)
	}
	if err := app.StartMatch(ctx, matchID); err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if err := app.ResetMatch(ctx, matchID); err != nil {
		t.Fatalf("ResetMatch() error = %v", err)
	}
	if err := app.StartMatch(ctx, matchID); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if err := app.EndMatch(ctx, matchID); err != nil {
		t.Fatalf("EndMatch() error = %v", err)
	}

	want := []events.EventType{
		events.EventTypeMatchStarted,
		events.EventTypeMatchPaused,
		events.EventTypeMatchStarted,
		events.EventTypeMatchReset,
		events.EventTypeMatchStarted,
		events.EventTypeMatchEnded,
	}
	got := sink.types()
	if len(got) != len(want) {
		t.Fatalf("emitted %d events, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	snap, ok := repo.snapshots[matchID]
	if !ok {
		t.Fatal("no snapshot persisted")
	}
	if snap.Session.Status != models.MatchStatusEnded {
		t.Errorf("persisted status = %s, want ended", snap.Session.Status)
	}
}

func TestLifecyclePayloadCarriesClockTriple(t *testing.T) {
	app, _, sink, matchID := newTestApp(t, testRoster(8))
	ctx := context.Background()

	if err := app.StartMatch(ctx, matchID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}

	var payload events.MatchStartedPayload
	if err := json.Unmarshal(sink.emits[0].payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Status != models.MatchStatusLive {
		t.Errorf("payload status = %s, want live", payload.Status)
	}
	if payload.StartedAt == nil {
		t.Error("payload started_at missing")
	}
}

func TestAddGoalEmitsScores(t *testing.T) {
	app, _, sink, matchID := newTestApp(t, testRoster(8))
	ctx := context.Background()

	if err := app.StartMatch(ctx, matchID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}

	state, err := app.Session(matchID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	team := state.Round().InPlay[0]
	scorer := state.EligibleScorers(team)[0]

	goal, err := app.AddGoal(ctx, matchID, AddGoalRequest{Team: team, ScorerID: scorer.ID})
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}

	last := sink.emits[len(sink.emits)-1]
	if last.eventType != events.EventTypeGoalAdded {
		t.Fatalf("last event = %s, want goal added", last.eventType)
	}
	var payload events.GoalAddedPayload
	if err := json.Unmarshal(last.payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.GoalID != goal.ID.String() {
		t.Errorf("payload goal id = %s, want %s", payload.GoalID, goal.ID)
	}
	if payload.Scores[team] != 1 {
		t.Errorf("payload score = %d, want 1", payload.Scores[team])
	}
}

func TestEndRoundAppendsHistory(t *testing.T) {
	app, repo, sink, matchID := newTestApp(t, testRoster(8))
	ctx := context.Background()

	entry, err := app.EndRound(ctx, matchID, nil)
	if err != nil {
		t.Fatalf("EndRound() error = %v", err)
	}
	if entry.RoundNumber != 1 {
		t.Errorf("entry round = %d, want 1", entry.RoundNumber)
	}

	if got := repo.history[matchID]; len(got) != 1 {
		t.Errorf("persisted history = %d entries, want 1", len(got))
	}

	last := sink.emits[len(sink.emits)-1]
	if last.eventType != events.EventTypeRoundEnded {
		t.Errorf("last event = %s, want round ended", last.eventType)
	}
}

func TestSinkFailureDoesNotBlockMutation(t *testing.T) {
	app, _, sink, matchID := newTestApp(t, testRoster(8))
	sink.err = errors.New("transport down")

	if err := app.StartMatch(context.Background(), matchID); err != nil {
		t.Fatalf("StartMatch() with failing sink error = %v", err)
	}

	state, err := app.Session(matchID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if state.Session().Status != models.MatchStatusLive {
		t.Errorf("status = %s, want live despite sink failure", state.Session().Status)
	}
}

func TestUnknownSession(t *testing.T) {
	app := NewApp(newFakeRepo(nil), &fakeSink{}, clockwork.NewFakeClock())

	err := app.StartMatch(context.Background(), uuid.New())
	if !matcherr.IsKind(err, matcherr.KindNotFound) {
		t.Fatalf("StartMatch() error = %v, want not found", err)
	}
}

func TestRestoreSessionRegistersState(t *testing.T) {
	app, repo, _, matchID := newTestApp(t, testRoster(8))
	ctx := context.Background()

	if err := app.StartMatch(ctx, matchID); err != nil {
		t.Fatalf("StartMatch() error = %v", err)
	}
	snap := repo.snapshots[matchID]

	// Simulate a restart.
	app.CloseSession(matchID)
	if _, err := app.Session(matchID); !matcherr.IsKind(err, matcherr.KindNotFound) {
		t.Fatalf("Session() after close error = %v, want not found", err)
	}

	restored, err := app.RestoreSession(snap)
	if err != nil {
		t.Fatalf("RestoreSession() error = %v", err)
	}
	if restored.Session().Status != models.MatchStatusLive {
		t.Errorf("restored status = %s, want live", restored.Session().Status)
	}
	if _, err := app.Session(matchID); err != nil {
		t.Errorf("Session() after restore error = %v", err)
	}
}
