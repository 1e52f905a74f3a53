package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchlive/matchcore/go/internal/matcherr"
	"github.com/matchlive/matchcore/go/internal/models"
	"github.com/matchlive/matchcore/go/internal/sqlutil"
)

// PostgresRepository implements Repository over hand-written SQL.
// Snapshots are stored as one JSONB document per match; round history
// rows are append-only.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository backed by the given database.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LoadRoster returns the attending players registered for a match.
func (r *PostgresRepository) LoadRoster(ctx context.Context, matchID uuid.UUID) ([]models.Player, error) {
	const query = `
		SELECT id, display_name, rating, position, jersey_number
		FROM roster_players
		WHERE match_id = $1
		ORDER BY display_name`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster for match %s: %w", matchID, err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var (
			p        models.Player
			position sql.NullString
			jersey   sql.NullInt32
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Rating, &position, &jersey); err != nil {
			return nil, fmt.Errorf("failed to scan roster player: %w", err)
		}
		p.Position = sqlutil.FromSqlString(position)
		p.JerseyNumber = sqlutil.FromSqlInt32(jersey)
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster rows: %w", err)
	}
	return players, nil
}

// SaveSnapshot upserts the session snapshot document.
func (r *PostgresRepository) SaveSnapshot(ctx context.Context, matchID uuid.UUID, snap Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	const query = `
		INSERT INTO match_snapshots (match_id, version, snapshot, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (match_id)
		DO UPDATE SET version = EXCLUDED.version, snapshot = EXCLUDED.snapshot, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, matchID, snap.Version, doc); err != nil {
		return fmt.Errorf("failed to save snapshot for match %s: %w", matchID, err)
	}
	return nil
}

// LoadSnapshot fetches the persisted snapshot for a match.
func (r *PostgresRepository) LoadSnapshot(ctx context.Context, matchID uuid.UUID) (Snapshot, error) {
	const query = `SELECT snapshot FROM match_snapshots WHERE match_id = $1`

	var doc []byte
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, matcherr.NotFound("no snapshot for match %s", matchID)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load snapshot for match %s: %w", matchID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot for match %s: %w", matchID, err)
	}
	return snap, nil
}

// AppendHistory records a completed round. The insert runs in a
// transaction with the snapshot touch so readers never see a history row
// ahead of the snapshot round counter.
func (r *PostgresRepository) AppendHistory(ctx context.Context, matchID uuid.UUID, entry models.RoundHistoryEntry) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO round_history
				(match_id, round_number, left_team, right_team, left_score, right_score, winner, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		var winner *string
		if entry.Winner != nil {
			w := string(*entry.Winner)
			winner = &w
		}

		if _, err := tx.ExecContext(ctx, query,
			matchID,
			entry.RoundNumber,
			string(entry.Left),
			string(entry.Right),
			entry.LeftScore,
			entry.RightScore,
			sqlutil.ToSqlString(winner),
			entry.EndedAt,
		); err != nil {
			return fmt.Errorf("failed to insert round history: %w", err)
		}

		const touch = `UPDATE match_snapshots SET updated_at = NOW() WHERE match_id = $1`
		if _, err := tx.ExecContext(ctx, touch, matchID); err != nil {
			return fmt.Errorf("failed to touch snapshot: %w", err)
		}
		return nil
	})
}
