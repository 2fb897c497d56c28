package handler

import (
	"context"
	"fmt"

	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/types"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// handleGetStats 获取个人统计（按昵称）
func (h *Handler) handleGetStats(ctx context.Context, client types.ClientInterface, _ *protocol.Message) error {
	result := protocol.StatsResultPayload{
		PlayerID:   client.GetID(),
		PlayerName: client.GetName(),
	}
	if h.leaderboard == nil || client.GetName() == "" {
		client.SendMessage(codec.MustNewMessage(protocol.MsgStatsResult, result))
		return nil
	}

	stats, err := h.leaderboard.GetPlayerStats(ctx, client.GetName())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	if stats != nil {
		rank, _ := h.leaderboard.GetPlayerRank(ctx, client.GetName())

		result.PlayerName = stats.PlayerName
		result.TotalGames = stats.TotalGames
		result.Wins = stats.Wins
		result.Losses = stats.Losses
		result.WinRate = stats.WinRate()
		result.CrewGames = stats.CrewGames
		result.CrewWins = stats.CrewWins
		result.SaboteurGames = stats.SaboteurGames
		result.SaboteurWins = stats.SaboteurWins
		result.Score = stats.Score
		result.Rank = int(rank)
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgStatsResult, result))
	return nil
}

// handleGetLeaderboard 获取排行榜
func (h *Handler) handleGetLeaderboard(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	limit := defaultLeaderboardLimit
	if payload, err := codec.ParsePayload[protocol.GetLeaderboardPayload](msg); err == nil && payload.Limit > 0 {
		limit = min(payload.Limit, maxLeaderboardLimit)
	}

	result := protocol.LeaderboardResultPayload{Entries: []protocol.LeaderboardEntry{}}
	if h.leaderboard != nil {
		entries, err := h.leaderboard.GetLeaderboard(ctx, limit)
		if err != nil {
			return fmt.Errorf("get leaderboard: %w", err)
		}
		for _, e := range entries {
			result.Entries = append(result.Entries, protocol.LeaderboardEntry{
				Rank:       e.Rank,
				PlayerName: e.PlayerName,
				Score:      e.Score,
				Wins:       e.Wins,
				WinRate:    e.WinRate,
			})
		}
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgLeaderboardResult, result))
	return nil
}
