package models

// TeamColor identifies a team by its jersey color. The palette is fixed at
// exactly four colors.
type TeamColor string

const (
	TeamColorRed    TeamColor = "RED"
	TeamColorBlue   TeamColor = "BLUE"
	TeamColorGreen  TeamColor = "GREEN"
	TeamColorYellow TeamColor = "YELLOW"
)

// Palette returns the four team colors in draw order.
func Palette() [4]TeamColor {
	return [4]TeamColor{TeamColorRed, TeamColorBlue, TeamColorGreen, TeamColorYellow}
}

// ValidColor reports whether c is one of the four palette colors.
func ValidColor(c TeamColor) bool {
	for _, p := range Palette() {
		if p == c {
			return true
		}
	}
	return false
}

// Team represents one side in a match session. Teams are created by the
// balancer at draw time and recreated on re-draw.
type Team struct {
	Color   TeamColor `json:"color"`
	Players []Player  `json:"players"`
}

// Starters returns the players currently in the active lineup.
func (t *Team) Starters() []Player {
	starters := make([]Player, 0, len(t.Players))
	for _, p := range t.Players {
		if !p.Substitute {
			starters = append(starters, p)
		}
	}
	return starters
}

// TotalRating sums the star ratings of the active lineup.
func (t *Team) TotalRating() int {
	total := 0
	for _, p := range t.Players {
		if !p.Substitute {
			total += p.Rating
		}
	}
	return total
}
