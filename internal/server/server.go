package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/palemoky/sabotage-station/internal/config"
	"github.com/palemoky/sabotage-station/internal/game/room"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/server/handler"
	"github.com/palemoky/sabotage-station/internal/server/session"
	"github.com/palemoky/sabotage-station/internal/server/storage"
	"github.com/palemoky/sabotage-station/internal/types"
)

const redisPingTimeout = 5 * time.Second

// Server WebSocket 服务器
type Server struct {
	config         *config.Config
	redis          *redis.Client
	redisStore     *storage.RedisStore
	leaderboard    *storage.LeaderboardManager
	roomManager    *room.RoomManager
	sessionManager *session.SessionManager
	handler        *handler.Handler
	upgrader       websocket.Upgrader
	format         codec.Format

	clients   map[string]types.ClientInterface
	clientsMu sync.RWMutex

	// 安全组件
	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter
	chatLimiter    *ChatRateLimiter
	ipFilter       *IPFilter

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	maintenance  atomic.Bool
	shutdownOnce sync.Once

	cancel context.CancelFunc
}

// NewServer 创建服务器实例，Redis 地址为空时以纯内存模式运行
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis 连接失败: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		config:         cfg,
		redis:          rdb,
		redisStore:     storage.NewRedisStore(rdb),
		leaderboard:    storage.NewLeaderboardManager(rdb),
		clients:        make(map[string]types.ClientInterface),
		format:         codec.Format(cfg.Server.WireFormat),
		rateLimiter:    NewRateLimiter(ctx, cfg.Security.RateLimit.MaxPerSecond, cfg.Security.RateLimit.Burst, cfg.Security.RateLimit.BanDurationTime()),
		originChecker:  NewOriginChecker(cfg.Security.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Security.MessageLimit.MaxPerSecond, cfg.Security.MessageLimit.Burst),
		chatLimiter:    NewChatRateLimiter(cfg.Security.ChatLimit.MaxPerSecond, cfg.Security.ChatLimit.Burst),
		ipFilter:       NewIPFilter(cfg.Security.IPWhitelist, cfg.Security.IPBlacklist),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
		cancel:         cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originChecker.Check,
	}

	s.sessionManager = session.NewSessionManager(ctx,
		session.WithStore(s.redisStore),
		session.WithGrace(cfg.Game.ReconnectGraceDuration()),
	)
	s.roomManager = room.NewRoomManager(ctx, s.redisStore, cfg.Game.RoomSettings(), cfg.Game.RoomTimeoutDuration(),
		room.WithRecorder(s.leaderboard),
	)

	s.handler = handler.NewHandler(handler.HandlerDeps{
		Server:         s,
		RoomManager:    s.roomManager,
		SessionManager: s.sessionManager,
		ChatLimiter:    s.chatLimiter,
		Leaderboard:    s.leaderboard,
	})

	log.Info().
		Float64("connect_rate", cfg.Security.RateLimit.MaxPerSecond).
		Float64("message_rate", cfg.Security.MessageLimit.MaxPerSecond).
		Float64("chat_rate", cfg.Security.ChatLimit.MaxPerSecond).
		Int("max_connections", cfg.Server.MaxConnections).
		Int("ip_whitelist", len(cfg.Security.IPWhitelist)).
		Int("ip_blacklist", len(cfg.Security.IPBlacklist)).
		Bool("redis", rdb != nil).
		Msg("🔒 安全配置")

	return s, nil
}

// Routes 返回 HTTP 路由
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/rooms", s.handleRoomList)
	return r
}

// Run 启动服务器，ctx 结束后执行优雅关闭
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, fmt.Sprint(s.config.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", "ws://"+addr+"/ws").Int("cpus", runtime.NumCPU()).Msg("🚀 服务器启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.monitorStats(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.GracefulShutdown(s.config.Server.ShutdownTimeoutDuration())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)

	if s.IsMaintenanceMode() {
		log.Info().Str("ip", clientIP).Msg("🔧 维护模式，拒绝新连接")
		http.Error(w, "Server is under maintenance, please try again later", http.StatusServiceUnavailable)
		return
	}

	if !s.ipFilter.IsAllowed(clientIP) {
		log.Warn().Str("ip", clientIP).Msg("🚫 IP 被过滤器拒绝")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if !s.originChecker.Check(r) {
		log.Warn().Str("origin", r.Header.Get("Origin")).Str("ip", clientIP).Msg("🚫 来源验证失败")
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	if !s.rateLimiter.Allow(clientIP) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	// 连接数限制，连接关闭后释放
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Warn().Int("max", s.maxConnections).Str("ip", clientIP).Msg("🚫 达到最大连接数限制")
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-s.semaphore
		log.Debug().Err(err).Str("ip", clientIP).Msg("WebSocket 升级失败")
		return
	}

	client := NewClient(s, conn, s.format)
	client.IP = clientIP
	s.registerClient(client)

	sess := s.sessionManager.CreateSession(client.GetID(), "")
	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID:       client.GetID(),
		ReconnectToken: sess.ReconnectToken,
	}))

	log.Info().Str("client", client.GetID()).Str("ip", clientIP).Msg("✅ 新连接")

	go client.WritePump()
	go func() {
		defer func() { <-s.semaphore }()
		client.ReadPump()
	}()
}

type healthResponse struct {
	Status      string `json:"status"`
	Online      int    `json:"online"`
	Rooms       int    `json:"rooms"`
	ActiveGames int    `json:"active_games"`
	Maintenance bool   `json:"maintenance"`
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Online:      s.GetOnlineCount(),
		Rooms:       s.roomManager.RoomCount(),
		ActiveGames: s.roomManager.GetActiveGamesCount(),
		Maintenance: s.IsMaintenanceMode(),
	})
}

// handleRoomList 可加入的房间列表
func (s *Server) handleRoomList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.RoomListResultPayload{Rooms: s.roomManager.GetRoomList()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// registerClient 注册客户端
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.GetID()] = client
}

// unregisterClient 注销客户端，仅当该 ID 仍指向此连接时生效
func (s *Server) unregisterClient(client *Client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	id := client.GetID()
	if current, ok := s.clients[id]; !ok || current != types.ClientInterface(client) {
		return false
	}
	delete(s.clients, id)
	log.Info().Str("client", id).Msg("❌ 连接断开")
	return true
}

// GetClientByID 获取在线连接
func (s *Server) GetClientByID(id string) types.ClientInterface {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.clients[id]
}

// RegisterClient 以指定 ID 注册连接，覆盖旧连接
func (s *Server) RegisterClient(id string, client types.ClientInterface) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[id] = client
}

// UnregisterClient 注销指定 ID
func (s *Server) UnregisterClient(id string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, id)
}

// RoomManager 房间注册表
func (s *Server) RoomManager() *room.RoomManager {
	return s.roomManager
}
