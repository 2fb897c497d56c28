package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLeaderboardManager(t *testing.T) *LeaderboardManager {
	t.Helper()
	client, _ := newTestRedisClient(t)
	return NewLeaderboardManager(client)
}

func TestLeaderboard_RecordGameResult_NewPlayer(t *testing.T) {
	t.Parallel()

	lm := newTestLeaderboardManager(t)
	ctx := context.Background()

	require.NoError(t, lm.RecordGameResult(ctx, GameResult{PlayerName: "Alice", Saboteur: true, Winner: true}))

	stats, err := lm.GetPlayerStats(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Equal(t, "Alice", stats.PlayerName)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1, stats.SaboteurGames)
	assert.Equal(t, 1, stats.SaboteurWins)
	assert.Equal(t, WinAsSaboteur, stats.Score)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.NotZero(t, stats.CreatedAt)
}

func TestLeaderboard_ScoreNeverNegative(t *testing.T) {
	t.Parallel()

	lm := newTestLeaderboardManager(t)
	ctx := context.Background()

	require.NoError(t, lm.RecordGameResult(ctx, GameResult{PlayerName: "Bob"}))
	stats, err := lm.GetPlayerStats(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Score)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 1, stats.CrewGames)
	assert.Equal(t, -1, stats.CurrentStreak)
}

func TestLeaderboard_StreakBonus(t *testing.T) {
	t.Parallel()

	lm := newTestLeaderboardManager(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, lm.RecordGameResult(ctx, GameResult{PlayerName: "Carol", Winner: true}))
	}
	stats, err := lm.GetPlayerStats(ctx, "Carol")
	require.NoError(t, err)
	assert.Equal(t, 3*WinAsCrew+StreakBonus3, stats.Score)
	assert.Equal(t, 3, stats.MaxWinStreak)
	assert.InDelta(t, 100.0, stats.WinRate(), 0.001)
}

func TestLeaderboard_GetLeaderboardAndRank(t *testing.T) {
	t.Parallel()

	lm := newTestLeaderboardManager(t)
	ctx := context.Background()

	err := lm.RecordGame(ctx, []GameResult{
		{PlayerName: "Sab", Saboteur: true, Winner: true},
		{PlayerName: "Crew1", Winner: false},
		{PlayerName: "Crew2", Winner: false},
	})
	require.NoError(t, err)
	require.NoError(t, lm.RecordGameResult(ctx, GameResult{PlayerName: "Crew1", Winner: true}))

	entries, err := lm.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Sab", entries[0].PlayerName)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Crew1", entries[1].PlayerName)
	assert.Equal(t, WinAsCrew, entries[1].Score)

	rank, err := lm.GetPlayerRank(ctx, "sab")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	rank, err = lm.GetPlayerRank(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rank)
}

func TestLeaderboard_NilClientIsNoop(t *testing.T) {
	t.Parallel()

	lm := NewLeaderboardManager(nil)
	ctx := context.Background()

	assert.NoError(t, lm.RecordGameResult(ctx, GameResult{PlayerName: "x"}))
	stats, err := lm.GetPlayerStats(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, stats)
	entries, err := lm.GetLeaderboard(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
