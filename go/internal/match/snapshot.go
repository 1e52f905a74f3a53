package match

import (
	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

// SnapshotVersion is bumped whenever the snapshot schema changes. Restore
// rejects versions it does not understand rather than silently corrupting a
// previously saved session.
const SnapshotVersion = 1

// Snapshot is the explicit, versioned persistence form of a session's
// whole state.
type Snapshot struct {
	Version int                        `json:"version"`
	Session models.MatchSession        `json:"session"`
	Round   models.Round               `json:"round"`
	Teams   []models.Team              `json:"teams"`
	History []models.RoundHistoryEntry `json:"history"`
	Ticks   int                        `json:"ticks"`
}

// Snapshot captures the full session state for persistence.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Version: SnapshotVersion,
		Session: s.session,
		Round:   s.copyRoundLocked(),
		Teams:   s.copyTeamsLocked(),
		History: append([]models.RoundHistoryEntry(nil), s.history...),
		Ticks:   s.ticks,
	}
}

// RestoreState rebuilds a session state holder from a snapshot.
func RestoreState(snap Snapshot) (*State, error) {
	if snap.Version != SnapshotVersion {
		return nil, matcherr.Validation("unsupported snapshot version %d, want %d", snap.Version, SnapshotVersion)
	}
	if len(snap.Teams) < 2 {
		return nil, matcherr.Validation("snapshot has %d teams, want at least 2", len(snap.Teams))
	}

	s := &State{
		session: snap.Session,
		history: append([]models.RoundHistoryEntry(nil), snap.History...),
		ticks:   snap.Ticks,
	}
	s.installTeams(snap.Teams)

	s.round = snap.Round
	if s.round.Scores == nil {
		s.round.Scores = map[models.TeamColor]int{
			s.round.InPlay[0]: 0,
			s.round.InPlay[1]: 0,
		}
	}
	s.recomputeScoresLocked()
	return s, nil
}
