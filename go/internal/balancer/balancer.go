package balancer

import (
	"math/rand"
	"sort"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
)

const (
	minTeams = 2
	maxTeams = 4 // bounded by the color palette
)

// Stats summarizes how balanced a draw came out, over the active lineups.
type Stats struct {
	AverageRating float64 `json:"average_rating"`
	MinRating     int     `json:"min_rating"`
	MaxRating     int     `json:"max_rating"`
	Variance      float64 `json:"variance"`
}

// Assignment is the result of balancing a roster into teams.
type Assignment struct {
	Teams []models.Team `json:"teams"`
	Stats Stats         `json:"stats"`
}

type config struct {
	seed int64
}

// Option configures a draw.
type Option func(*config)

// WithSeed seeds the shuffle applied within equal-rating groups. Re-drawing
// the same roster with a different seed can produce a different valid
// assignment.
func WithSeed(seed int64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// Balance assigns players to ceil(N/teamSize) teams, clamped to 2-4, using
// an alternating-direction round-robin so cumulative ratings converge.
// Players beyond teamSize*teamCount stay on their assigned team as
// substitutes. Team sizes differ by at most one.
func Balance(players []models.Player, teamSize int, opts ...Option) (*Assignment, error) {
	if len(players) < 2 {
		return nil, matcherr.Validation("at least 2 players required, got %d", len(players))
	}
	if teamSize < 1 {
		return nil, matcherr.Validation("team size must be at least 1, got %d", teamSize)
	}

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	teamCount := (len(players) + teamSize - 1) / teamSize
	if teamCount < minTeams {
		teamCount = minTeams
	}
	if teamCount > maxTeams {
		teamCount = maxTeams
	}

	ordered := draftOrder(players, cfg.seed)

	palette := models.Palette()
	teams := make([]models.Team, teamCount)
	for i := range teams {
		teams[i] = models.Team{Color: palette[i]}
	}

	starterCutoff := teamSize * teamCount
	for i, teamIdx := range snakeOrder(len(ordered), teamCount) {
		p := ordered[i]
		p.Substitute = i >= starterCutoff
		teams[teamIdx].Players = append(teams[teamIdx].Players, p)
	}

	return &Assignment{
		Teams: teams,
		Stats: computeStats(teams),
	}, nil
}

// draftOrder sorts players by rating descending, shuffling within
// equal-rating groups so a re-draw can land differently.
func draftOrder(players []models.Player, seed int64) []models.Player {
	ordered := make([]models.Player, len(players))
	copy(ordered, players)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Rating > ordered[j].Rating
	})

	return ordered
}

// snakeOrder yields the team index for each draft slot: 1..k, then k..1,
// repeating, so high- and low-rated players interleave.
func snakeOrder(slots, teamCount int) []int {
	order := make([]int, 0, slots)
	for len(order) < slots {
		round := len(order) / teamCount
		pos := len(order) % teamCount
		if round%2 == 1 {
			pos = teamCount - 1 - pos
		}
		order = append(order, pos)
	}
	return order
}

func computeStats(teams []models.Team) Stats {
	if len(teams) == 0 {
		return Stats{}
	}

	totals := make([]int, len(teams))
	sum := 0
	for i := range teams {
		totals[i] = teams[i].TotalRating()
		sum += totals[i]
	}

	stats := Stats{
		AverageRating: float64(sum) / float64(len(teams)),
		MinRating:     totals[0],
		MaxRating:     totals[0],
	}
	for _, t := range totals {
		if t < stats.MinRating {
			stats.MinRating = t
		}
		if t > stats.MaxRating {
			stats.MaxRating = t
		}
	}

	var variance float64
	for _, t := range totals {
		d := float64(t) - stats.AverageRating
		variance += d * d
	}
	stats.Variance = variance / float64(len(teams))

	return stats
}

// EligibleScorers returns the players on the given team who may currently
// be credited with a goal. Substitutes are excluded until swapped in.
func (a *Assignment) EligibleScorers(color models.TeamColor) []models.Player {
	for i := range a.Teams {
		if a.Teams[i].Color == color {
			return a.Teams[i].Starters()
		}
	}
	return nil
}
