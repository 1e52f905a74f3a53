package balancer

import (
	"testing"

	"github.com/google/uuid"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

func roster(ratings ...int) []models.Player {
	players := make([]models.Player, 0, len(ratings))
	for _, r := range ratings {
		players = append(players, models.Player{
			ID:          uuid.New(),
			DisplayName: "player",
			Rating:      r,
		})
	}
	return players
}

func TestBalanceTeamCountAndSizes(t *testing.T) {
	tests := []struct {
		name      string
		ratings   []int
		teamSize  int
		wantTeams int
	}{
		{name: "two full teams", ratings: []int{5, 5, 5, 5, 1, 1, 1, 1}, teamSize: 4, wantTeams: 2},
		{name: "three teams", ratings: []int{5, 4, 4, 3, 3, 2, 2, 1, 1}, teamSize: 3, wantTeams: 3},
		{name: "clamped to four", ratings: []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 1}, teamSize: 2, wantTeams: 4},
		{name: "clamped to two", ratings: []int{5, 4}, teamSize: 10, wantTeams: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Balance(roster(tt.ratings...), tt.teamSize)
			if err != nil {
				t.Fatalf("Balance() error = %v", err)
			}
			if len(got.Teams) != tt.wantTeams {
				t.Fatalf("Balance() teams = %d, want %d", len(got.Teams), tt.wantTeams)
			}

			total := 0
			minSize, maxSize := len(tt.ratings), 0
			seen := make(map[models.TeamColor]bool)
			for _, team := range got.Teams {
				if seen[team.Color] {
					t.Errorf("duplicate team color %s", team.Color)
				}
				seen[team.Color] = true

				size := len(team.Players)
				total += size
				if size < minSize {
					minSize = size
				}
				if size > maxSize {
					maxSize = size
				}
			}
			if total != len(tt.ratings) {
				t.Errorf("assigned %d players, want %d", total, len(tt.ratings))
			}
			if maxSize-minSize > 1 {
				t.Errorf("team sizes differ by %d, want at most 1", maxSize-minSize)
			}
		})
	}
}

func TestBalanceEqualTalentSplitsEvenly(t *testing.T) {
	got, err := Balance(roster(5, 5, 5, 5, 1, 1, 1, 1), 4)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}

	for _, team := range got.Teams {
		if rating := team.TotalRating(); rating != 12 {
			t.Errorf("team %s total rating = %d, want 12", team.Color, rating)
		}
	}
	if got.Stats.Variance != 0 {
		t.Errorf("variance = %v, want 0", got.Stats.Variance)
	}
}

func TestBalanceUnevenTalentStaysClose(t *testing.T) {
	got, err := Balance(roster(5, 4, 4, 3, 3, 2), 3)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if len(got.Teams) != 2 {
		t.Fatalf("Balance() teams = %d, want 2", len(got.Teams))
	}

	diff := got.Stats.MaxRating - got.Stats.MinRating
	if diff > 1 {
		t.Errorf("rating spread = %d, want at most 1", diff)
	}
}

func TestBalanceInsufficientPlayers(t *testing.T) {
	_, err := Balance(roster(5), 2)
	if err == nil {
		t.Fatal("Balance() expected error for single player")
	}
	if !matcherr.IsKind(err, matcherr.KindValidation) {
		t.Errorf("Balance() error kind = %v, want validation", err)
	}
}

func TestBalanceInvalidTeamSize(t *testing.T) {
	_, err := Balance(roster(5, 4, 3), 0)
	if err == nil {
		t.Fatal("Balance() expected error for zero team size")
	}
	if !matcherr.IsKind(err, matcherr.KindValidation) {
		t.Errorf("Balance() error kind = %v, want validation", err)
	}
}

func TestBalanceOverflowBecomesSubstitutes(t *testing.T) {
	got, err := Balance(roster(9, 8, 7, 6, 5, 4, 3, 2, 1), 2)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}

	subs := 0
	starters := 0
	for _, team := range got.Teams {
		starters += len(team.Starters())
		for _, p := range team.Players {
			if p.Substitute {
				subs++
			}
		}
	}
	if starters != 8 {
		t.Errorf("starters = %d, want 8", starters)
	}
	if subs != 1 {
		t.Errorf("substitutes = %d, want 1", subs)
	}
}

func TestBalanceSameSeedIsDeterministic(t *testing.T) {
	players := roster(5, 5, 4, 4, 3, 3, 2, 2)

	first, err := Balance(players, 4, WithSeed(42))
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	second, err := Balance(players, 4, WithSeed(42))
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}

	for i := range first.Teams {
		if first.Teams[i].Color != second.Teams[i].Color {
			t.Fatalf("team %d color differs between identical draws", i)
		}
		if len(first.Teams[i].Players) != len(second.Teams[i].Players) {
			t.Fatalf("team %d size differs between identical draws", i)
		}
		for j := range first.Teams[i].Players {
			if first.Teams[i].Players[j].ID != second.Teams[i].Players[j].ID {
				t.Errorf("team %d slot %d differs between identical draws", i, j)
			}
		}
	}
}

func TestEligibleScorersExcludesSubstitutes(t *testing.T) {
	got, err := Balance(roster(9, 8, 7, 6, 5), 2)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}

	for _, team := range got.Teams {
		for _, p := range got.EligibleScorers(team.Color) {
			if p.Substitute {
				t.Errorf("substitute %s listed as eligible scorer", p.ID)
			}
		}
	}
}

func TestComputeStats(t *testing.T) {
	teams := []models.Team{
		{Color: models.TeamColorRed, Players: []models.Player{{Rating: 6}, {Rating: 4}}},
		{Color: models.TeamColorBlue, Players: []models.Player{{Rating: 5}, {Rating: 3}}},
	}

	stats := computeStats(teams)
	if stats.AverageRating != 9 {
		t.Errorf("average = %v, want 9", stats.AverageRating)
	}
	if stats.MinRating != 8 || stats.MaxRating != 10 {
		t.Errorf("min/max = %d/%d, want 8/10", stats.MinRating, stats.MaxRating)
	}
	if stats.Variance != 1 {
		t.Errorf("variance = %v, want 1", stats.Variance)
	}
}
