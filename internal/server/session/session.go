package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/server/storage"
)

const (
	// 默认重连等待时间
	defaultReconnectGrace = 20 * time.Second
	// 会话过期时间
	sessionExpireTime = 10 * time.Minute

	cleanupInterval = time.Minute
	mirrorTimeout   = 2 * time.Second
)

// PlayerSession 玩家会话（用于断线重连）
type PlayerSession struct {
	PlayerID       string
	ReconnectToken string

	playerName     string
	roomCode       string
	disconnectedAt time.Time
	online         bool

	mu sync.RWMutex
}

// PlayerName 玩家昵称
func (s *PlayerSession) PlayerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerName
}

// RoomCode 玩家所在房间
func (s *PlayerSession) RoomCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomCode
}

// IsOnline 是否在线
func (s *PlayerSession) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// DisconnectedAt 断线时间，在线时为零值
func (s *PlayerSession) DisconnectedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disconnectedAt
}

func (s *PlayerSession) toData() *storage.PlayerSessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := &storage.PlayerSessionData{
		PlayerID:   s.PlayerID,
		PlayerName: s.playerName,
		RoomCode:   s.roomCode,
		IsOnline:   s.online,
	}
	if !s.disconnectedAt.IsZero() {
		data.DisconnectedAt = s.disconnectedAt.Unix()
	}
	return data
}

// SessionManager 会话管理器
type SessionManager struct {
	sessions map[string]*PlayerSession // playerID -> session
	tokens   map[string]string         // token -> playerID
	mu       sync.RWMutex

	store *storage.RedisStore
	grace time.Duration
	now   func() time.Time
}

// Option 会话管理器选项
type Option func(*SessionManager)

// WithStore 将会话镜像到 Redis（不包含令牌）
func WithStore(store *storage.RedisStore) Option {
	return func(sm *SessionManager) { sm.store = store }
}

// WithGrace 设置重连宽限期
func WithGrace(d time.Duration) Option {
	return func(sm *SessionManager) {
		if d > 0 {
			sm.grace = d
		}
	}
}

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(sm *SessionManager) { sm.now = now }
}

// NewSessionManager 创建会话管理器，ctx 结束时停止清理协程
func NewSessionManager(ctx context.Context, opts ...Option) *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*PlayerSession),
		tokens:   make(map[string]string),
		grace:    defaultReconnectGrace,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(sm)
	}

	go sm.cleanupLoop(ctx)
	return sm
}

// CreateSession 创建新会话
func (sm *SessionManager) CreateSession(playerID, playerName string) *PlayerSession {
	session := &PlayerSession{
		PlayerID:       playerID,
		ReconnectToken: generateToken(),
		playerName:     playerName,
		online:         true,
	}

	sm.mu.Lock()
	if old, ok := sm.sessions[playerID]; ok {
		delete(sm.tokens, old.ReconnectToken)
	}
	sm.sessions[playerID] = session
	sm.tokens[session.ReconnectToken] = playerID
	sm.mu.Unlock()

	sm.mirror(session)
	return session
}

// GetSession 获取会话
func (sm *SessionManager) GetSession(playerID string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// GetSessionByToken 通过 token 获取会话
func (sm *SessionManager) GetSessionByToken(token string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	playerID, ok := sm.tokens[token]
	if !ok {
		return nil
	}
	return sm.sessions[playerID]
}

// update 修改会话并镜像到 Redis
func (sm *SessionManager) update(playerID string, fn func(s *PlayerSession)) {
	session := sm.GetSession(playerID)
	if session == nil {
		return
	}
	session.mu.Lock()
	fn(session)
	session.mu.Unlock()
	sm.mirror(session)
}

// SetOffline 设置玩家离线
func (sm *SessionManager) SetOffline(playerID string) {
	now := sm.now()
	sm.update(playerID, func(s *PlayerSession) {
		s.online = false
		s.disconnectedAt = now
	})
}

// SetOnline 设置玩家上线
func (sm *SessionManager) SetOnline(playerID string) {
	sm.update(playerID, func(s *PlayerSession) {
		s.online = true
		s.disconnectedAt = time.Time{}
	})
}

// SetRoom 设置玩家所在房间
func (sm *SessionManager) SetRoom(playerID, roomCode string) {
	sm.update(playerID, func(s *PlayerSession) { s.roomCode = roomCode })
}

// SetName 更新玩家昵称
func (sm *SessionManager) SetName(playerID, name string) {
	sm.update(playerID, func(s *PlayerSession) { s.playerName = name })
}

// DeleteSession 删除会话
func (sm *SessionManager) DeleteSession(playerID string) {
	sm.mu.Lock()
	session, ok := sm.sessions[playerID]
	if ok {
		delete(sm.tokens, session.ReconnectToken)
		delete(sm.sessions, playerID)
	}
	sm.mu.Unlock()

	if ok && sm.store.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := sm.store.DeleteSession(ctx, playerID); err != nil {
			log.Warn().Err(err).Str("player", playerID).Msg("会话镜像删除失败")
		}
	}
}

// CanReconnect 检查玩家是否可以重连
// 令牌必须属于该玩家，且离线时间不超过宽限期
func (sm *SessionManager) CanReconnect(token, playerID string) bool {
	sm.mu.RLock()
	storedPlayerID, ok := sm.tokens[token]
	session := sm.sessions[playerID]
	sm.mu.RUnlock()

	if !ok || storedPlayerID != playerID || session == nil {
		return false
	}

	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.online || sm.now().Sub(session.disconnectedAt) <= sm.grace
}

// IsOnline 检查玩家是否在线
func (sm *SessionManager) IsOnline(playerID string) bool {
	session := sm.GetSession(playerID)
	return session != nil && session.IsOnline()
}

// Count 会话数量
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// mirror 写入 Redis，失败只记录日志
func (sm *SessionManager) mirror(session *PlayerSession) {
	if !sm.store.Enabled() {
		return
	}
	data := session.toData()
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := sm.store.SaveSession(ctx, data); err != nil {
		log.Warn().Err(err).Str("player", data.PlayerID).Msg("会话镜像写入失败")
	}
}

// cleanupLoop 定期清理过期会话
func (sm *SessionManager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.cleanup()
		}
	}
}

// cleanup 清理离线超过会话过期时间的会话
func (sm *SessionManager) cleanup() {
	now := sm.now()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for playerID, session := range sm.sessions {
		session.mu.RLock()
		expired := !session.online && now.Sub(session.disconnectedAt) > sessionExpireTime
		session.mu.RUnlock()
		if expired {
			delete(sm.tokens, session.ReconnectToken)
			delete(sm.sessions, playerID)
		}
	}
}

// generateToken 生成随机 token
func generateToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
