package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tantawi65/khofogame/internal/config"
	"github.com/Tantawi65/khofogame/internal/game"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	calls []execCall
	err   error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func sampleResult() game.Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return game.Result{
		MatchID:    "m-1",
		WinnerID:   "p2",
		WinnerName: "Bob",
		Players:    []game.Seat{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}},
		StartedAt:  start,
		FinishedAt: start.Add(7 * time.Minute),
	}
}

func TestRecordResultArguments(t *testing.T) {
	fq := &fakeQuerier{}
	repo := &ResultRepository{db: fq}

	require.NoError(t, repo.RecordResult(context.Background(), sampleResult()))

	require.Len(t, fq.calls, 1)
	args := fq.calls[0].args
	require.Len(t, args, 7)
	assert.Equal(t, "m-1", args[0])
	assert.Equal(t, "p2", args[1])

	var players []game.Seat
	require.NoError(t, json.Unmarshal(args[3].([]byte), &players))
	assert.Equal(t, sampleResult().Players, players)
	assert.Contains(t, fq.calls[0].sql, "ON CONFLICT")
}

func TestRecordResultWrapsError(t *testing.T) {
	fq := &fakeQuerier{err: errors.New("connection refused")}
	repo := &ResultRepository{db: fq}

	err := repo.RecordResult(context.Background(), sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m-1")
	assert.ErrorIs(t, err, fq.err)
}

func TestEnsureSchema(t *testing.T) {
	fq := &fakeQuerier{}
	repo := &ResultRepository{db: fq}

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.Len(t, fq.calls, 1)
	assert.Contains(t, fq.calls[0].sql, "CREATE TABLE IF NOT EXISTS match_results")
}

// TestResultsRoundTrip runs against a real database when
// KHOFO_TEST_DATABASE_URL is set.
func TestResultsRoundTrip(t *testing.T) {
	url := os.Getenv("KHOFO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("KHOFO_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, config.DatabaseConfig{URL: url, MaxConns: 2, ConnectTimeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewResultRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	res := sampleResult()
	res.MatchID = uuid.New().String()
	require.NoError(t, repo.RecordResult(ctx, res))
	require.NoError(t, repo.RecordResult(ctx, res))

	recent, err := repo.RecentResults(ctx, 50)
	require.NoError(t, err)
	var found bool
	for _, r := range recent {
		if r.MatchID == res.MatchID {
			found = true
			assert.Equal(t, res.Players, r.Players)
			assert.Equal(t, "p2", r.WinnerID)
		}
	}
	assert.True(t, found)

	board, err := repo.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, board)
}
