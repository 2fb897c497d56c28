package server

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
)

const (
	monitorInterval       = 30 * time.Second
	shutdownCheckInterval = time.Second
	closeRoomsTimeout     = 5 * time.Second
)

// monitorStats 定期记录服务器状态
func (s *Server) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		log.Info().
			Int("online", s.GetOnlineCount()).
			Int("rooms", s.roomManager.RoomCount()).
			Int("active_games", s.roomManager.GetActiveGamesCount()).
			Int("goroutines", runtime.NumGoroutine()).
			Int("conns", len(s.semaphore)).
			Int("max_conns", s.maxConnections).
			Float64("mem_mb", float64(m.Alloc)/1024/1024).
			Msg("📊 监控")
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新房间
func (s *Server) EnterMaintenanceMode() {
	if s.maintenance.Swap(true) {
		return
	}

	s.BroadcastToLobby(codec.NewErrorMessageWithText(protocol.ErrCodeServerMaintenance,
		"👷🏻‍♂️ 维护模式：停止新的房间创建"))

	log.Info().Msg("🔧 进入维护模式")
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	return s.maintenance.Load()
}

// GracefulShutdown 等待进行中的游戏结束（最多 timeout），随后关闭所有房间和连接
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(shutdownCheckInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		active := s.roomManager.GetActiveGamesCount()
		if active == 0 {
			break
		}
		log.Info().Int("active_games", active).Msg("⏳ 等待游戏结束")
		<-ticker.C
	}

	if active := s.roomManager.GetActiveGamesCount(); active > 0 {
		log.Warn().Int("active_games", active).Msg("⚠️ 超时，强制关闭进行中的游戏")
	}

	s.Shutdown()
}

// Shutdown 关闭所有房间、连接和后台任务，可重复调用
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), closeRoomsTimeout)
	defer cancel()
	s.roomManager.CloseAll(ctx, "服务器维护中，房间已关闭")

	s.clientsMu.RLock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.RUnlock()

	s.cancel()
	s.roomManager.Stop()

	if s.redis != nil {
		_ = s.redis.Close()
	}

	log.Info().Msg("服务器已关闭")
}
