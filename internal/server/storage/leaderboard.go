package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key
	playerStatsKey = "player:stats:"
	leaderboardKey = "leaderboard:score"
)

// 积分规则
const (
	WinAsSaboteur  = 30  // 破坏者获胜
	WinAsCrew      = 15  // 船员获胜
	LoseAsSaboteur = -15 // 破坏者失败
	LoseAsCrew     = -10 // 船员失败

	StreakBonus3 = 5  // 3 连胜加成
	StreakBonus5 = 10 // 5 连胜加成
)

// PlayerStats 玩家统计数据，以昵称为键
type PlayerStats struct {
	PlayerName string `json:"player_name"`

	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`

	CrewGames     int `json:"crew_games"`
	CrewWins      int `json:"crew_wins"`
	SaboteurGames int `json:"saboteur_games"`
	SaboteurWins  int `json:"saboteur_wins"`

	Score         int `json:"score"`
	CurrentStreak int `json:"current_streak"` // 正数为连胜，负数为连败
	MaxWinStreak  int `json:"max_win_streak"`

	LastPlayedAt int64 `json:"last_played_at"`
	CreatedAt    int64 `json:"created_at"`
}

// WinRate 胜率（百分比）
func (s *PlayerStats) WinRate() float64 {
	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalGames) * 100
}

// GameResult 单个玩家的一局结果
type GameResult struct {
	PlayerName string
	Saboteur   bool
	Winner     bool
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int
	PlayerName string
	Score      int
	Wins       int
	WinRate    float64
}

// LeaderboardManager 排行榜管理器，client 为 nil 时所有操作为空操作
type LeaderboardManager struct {
	redis *redis.Client
	now   func() time.Time
}

// NewLeaderboardManager 创建排行榜管理器
func NewLeaderboardManager(client *redis.Client) *LeaderboardManager {
	return &LeaderboardManager{redis: client, now: time.Now}
}

// Enabled 是否连接了 Redis
func (lm *LeaderboardManager) Enabled() bool {
	return lm != nil && lm.redis != nil
}

func statsKey(name string) string {
	return playerStatsKey + strings.ToLower(strings.TrimSpace(name))
}

// GetPlayerStats 获取玩家统计，不存在时返回 nil
func (lm *LeaderboardManager) GetPlayerStats(ctx context.Context, playerName string) (*PlayerStats, error) {
	if !lm.Enabled() {
		return nil, nil
	}

	data, err := lm.redis.Get(ctx, statsKey(playerName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SavePlayerStats 保存玩家统计
func (lm *LeaderboardManager) SavePlayerStats(ctx context.Context, stats *PlayerStats) error {
	if !lm.Enabled() {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return lm.redis.Set(ctx, statsKey(stats.PlayerName), data, 0).Err()
}

// updateRoleStats 更新阵营统计并返回基础积分变化
func updateRoleStats(stats *PlayerStats, saboteur, winner bool) int {
	switch {
	case saboteur && winner:
		stats.SaboteurGames++
		stats.SaboteurWins++
		return WinAsSaboteur
	case saboteur:
		stats.SaboteurGames++
		return LoseAsSaboteur
	case winner:
		stats.CrewGames++
		stats.CrewWins++
		return WinAsCrew
	default:
		stats.CrewGames++
		return LoseAsCrew
	}
}

// updateWinLossStats 更新胜负统计和连胜/连败
func updateWinLossStats(stats *PlayerStats, winner bool) {
	if winner {
		stats.Wins++
		stats.CurrentStreak = max(1, stats.CurrentStreak+1)
	} else {
		stats.Losses++
		stats.CurrentStreak = min(-1, stats.CurrentStreak-1)
	}
	stats.MaxWinStreak = max(stats.MaxWinStreak, stats.CurrentStreak)
}

func streakBonus(streak int) int {
	switch {
	case streak >= 5:
		return StreakBonus5
	case streak >= 3:
		return StreakBonus3
	default:
		return 0
	}
}

// RecordGameResult 记录一名玩家的游戏结果
func (lm *LeaderboardManager) RecordGameResult(ctx context.Context, result GameResult) error {
	if !lm.Enabled() {
		return nil
	}

	stats, err := lm.GetPlayerStats(ctx, result.PlayerName)
	if err != nil {
		return err
	}
	now := lm.now().Unix()
	if stats == nil {
		stats = &PlayerStats{CreatedAt: now}
	}

	stats.PlayerName = result.PlayerName
	stats.TotalGames++
	stats.LastPlayedAt = now

	delta := updateRoleStats(stats, result.Saboteur, result.Winner)
	updateWinLossStats(stats, result.Winner)
	delta += streakBonus(stats.CurrentStreak)
	stats.Score = max(0, stats.Score+delta)

	if err := lm.SavePlayerStats(ctx, stats); err != nil {
		return err
	}
	return lm.redis.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(stats.Score),
		Member: strings.ToLower(strings.TrimSpace(stats.PlayerName)),
	}).Err()
}

// RecordGame 记录一局中所有玩家的结果
func (lm *LeaderboardManager) RecordGame(ctx context.Context, results []GameResult) error {
	var errs []error
	for _, r := range results {
		if err := lm.RecordGameResult(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetLeaderboard 获取排行榜（从高到低）
func (lm *LeaderboardManager) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if !lm.Enabled() || limit <= 0 {
		return nil, nil
	}

	results, err := lm.redis.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, result := range results {
		member, ok := result.Member.(string)
		if !ok {
			continue
		}
		stats, err := lm.GetPlayerStats(ctx, member)
		if err != nil || stats == nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Rank:       i + 1,
			PlayerName: stats.PlayerName,
			Score:      int(result.Score),
			Wins:       stats.Wins,
			WinRate:    stats.WinRate(),
		})
	}
	return entries, nil
}

// GetPlayerRank 获取玩家排名，未上榜返回 -1
func (lm *LeaderboardManager) GetPlayerRank(ctx context.Context, playerName string) (int64, error) {
	if !lm.Enabled() {
		return -1, nil
	}

	member := strings.ToLower(strings.TrimSpace(playerName))
	rank, err := lm.redis.ZRevRank(ctx, leaderboardKey, member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, nil
		}
		return -1, err
	}
	return rank + 1, nil
}
