package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matchlive/matchcore/go/internal/dbconfig"
)

// RosterPlayer mirrors the roster.json layout
type RosterPlayer struct {
	ID           uuid.UUID `json:"id"`
	MatchID      uuid.UUID `json:"match_id"`
	DisplayName  string    `json:"display_name"`
	Rating       int       `json:"rating"`
	Position     *string   `json:"position"`
	JerseyNumber *int      `json:"jersey_number"`
}

func main() {
	rosterPath := flag.String("file", "go/internal/assets/roster.json", "path to the roster JSON file")
	flag.Parse()

	ctx := context.Background()

	// 1) Load the roster file
	data, err := os.ReadFile(*rosterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *rosterPath, err)
		os.Exit(1)
	}
	var players []RosterPlayer
	if err := json.Unmarshal(data, &players); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal roster: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.FromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed roster
	total, inserted, skipped, errs := len(players), 0, 0, 0
	for _, p := range players {
		tag, err := pool.Exec(ctx, `
            INSERT INTO roster_players (
              id, match_id, display_name, rating, position, jersey_number
            ) VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (id) DO NOTHING
        `, p.ID, p.MatchID, p.DisplayName, p.Rating, p.Position, p.JerseyNumber)
		if err != nil {
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Roster seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
