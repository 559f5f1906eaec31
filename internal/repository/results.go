package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Tantawi65/khofogame/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_results (
	match_id     TEXT PRIMARY KEY,
	winner_id    TEXT NOT NULL DEFAULT '',
	winner_name  TEXT NOT NULL DEFAULT '',
	players      JSONB NOT NULL,
	aborted      BOOLEAN NOT NULL DEFAULT FALSE,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS match_results_winner_idx ON match_results (winner_id);
CREATE INDEX IF NOT EXISTS match_results_finished_idx ON match_results (finished_at DESC);
`

// querier is the subset of *pgxpool.Pool the repository needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ResultRepository stores finished matches. It implements
// game.ResultRecorder.
type ResultRepository struct {
	db querier
}

// NewResultRepository creates a repository on db.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db.pool}
}

// EnsureSchema creates the results table if needed.
func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create match_results: %w", err)
	}
	return nil
}

// RecordResult inserts result. Recording the same match twice keeps the
// first row.
func (r *ResultRepository) RecordResult(ctx context.Context, result game.Result) error {
	players, err := json.Marshal(result.Players)
	if err != nil {
		return fmt.Errorf("failed to encode players: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO match_results (match_id, winner_id, winner_name, players, aborted, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id) DO NOTHING`,
		result.MatchID,
		result.WinnerID,
		result.WinnerName,
		players,
		result.Aborted,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for match %s: %w", result.MatchID, err)
	}
	return nil
}

// RecentResults returns up to limit results, newest first.
func (r *ResultRepository) RecentResults(ctx context.Context, limit int) ([]game.Result, error) {
	rows, err := r.db.Query(ctx, `
		SELECT match_id, winner_id, winner_name, players, aborted, started_at, finished_at
		FROM match_results
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []game.Result
	for rows.Next() {
		var (
			res     game.Result
			players []byte
		)
		if err := rows.Scan(&res.MatchID, &res.WinnerID, &res.WinnerName, &players, &res.Aborted, &res.StartedAt, &res.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal(players, &res.Players); err != nil {
			return nil, fmt.Errorf("failed to decode players of %s: %w", res.MatchID, err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// WinCount is one row of the leaderboard.
type WinCount struct {
	PlayerID   string
	PlayerName string
	Wins       int
	LastWin    time.Time
}

// Leaderboard counts wins per player, most wins first.
func (r *ResultRepository) Leaderboard(ctx context.Context, limit int) ([]WinCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT winner_id, MAX(winner_name), COUNT(*), MAX(finished_at)
		FROM match_results
		WHERE winner_id <> '' AND NOT aborted
		GROUP BY winner_id
		ORDER BY COUNT(*) DESC, MAX(finished_at) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []WinCount
	for rows.Next() {
		var wc WinCount
		if err := rows.Scan(&wc.PlayerID, &wc.PlayerName, &wc.Wins, &wc.LastWin); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, wc)
	}
	return out, rows.Err()
}
