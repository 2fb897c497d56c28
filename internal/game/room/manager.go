package room

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/server/storage"
	"github.com/palemoky/sabotage-station/internal/types"
)

const (
	roomCodeLength = 6            // 房间号长度
	roomCodeChars  = "0123456789" // 房间号字符集

	cleanupInterval = time.Minute
	persistTimeout  = 3 * time.Second
)

// GameRecorder 记录游戏结果
type GameRecorder interface {
	RecordGame(ctx context.Context, results []storage.GameResult) error
}

// RoomManager 房间注册表
// mu 只保护房间号表，不涉及任何房间内部状态
type RoomManager struct {
	settings    Settings
	redisStore  *storage.RedisStore
	recorder    GameRecorder
	roomTimeout time.Duration
	roomOpts    []Option

	rooms    map[string]*Room
	reserved map[string]struct{} // 已分配但房主尚未入座的房间号
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOption 注册表选项
type ManagerOption func(*RoomManager)

// WithRecorder 设置游戏结果记录器
func WithRecorder(rec GameRecorder) ManagerOption {
	return func(rm *RoomManager) { rm.recorder = rec }
}

// WithRoomOptions 为新建房间附加选项（时钟、随机源）
func WithRoomOptions(opts ...Option) ManagerOption {
	return func(rm *RoomManager) { rm.roomOpts = append(rm.roomOpts, opts...) }
}

// NewRoomManager 创建房间注册表并启动清理协程
func NewRoomManager(ctx context.Context, rs *storage.RedisStore, settings Settings, roomTimeout time.Duration, opts ...ManagerOption) *RoomManager {
	rm := &RoomManager{
		settings:    settings,
		redisStore:  rs,
		roomTimeout: roomTimeout,
		rooms:       make(map[string]*Room),
		reserved:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(rm)
	}
	rm.ctx, rm.cancel = context.WithCancel(ctx)

	if roomTimeout > 0 {
		rm.wg.Add(1)
		go rm.cleanupLoop()
	}
	return rm
}

// Settings 返回房间规则
func (rm *RoomManager) Settings() Settings {
	return rm.settings.normalize()
}

// CreateRoom 创建房间，创建者成为房主
func (rm *RoomManager) CreateRoom(ctx context.Context, client types.ClientInterface, name, avatar string) (string, error) {
	if _, err := NormalizeName(name); err != nil {
		return "", err
	}
	if client.GetRoom() != "" {
		return "", apperrors.ErrPhaseMismatch
	}

	rm.mu.Lock()
	code := rm.generateRoomCode()
	rm.reserved[code] = struct{}{}
	rm.mu.Unlock()

	// 房主入座后才登记到房间表
	room := rm.newRoom(code)
	err := room.Submit(ctx, Join{Client: client, Name: name, Avatar: avatar, Create: true})

	rm.mu.Lock()
	delete(rm.reserved, code)
	if err == nil {
		rm.rooms[code] = room
	}
	rm.mu.Unlock()

	if err != nil {
		_ = room.Submit(context.Background(), Close{Reason: "房间创建失败"})
		return "", err
	}
	return code, nil
}

// JoinRoom 加入房间
func (rm *RoomManager) JoinRoom(ctx context.Context, client types.ClientInterface, code, name, avatar string) error {
	if _, err := NormalizeName(name); err != nil {
		return err
	}
	if current := client.GetRoom(); current != "" && current != code {
		return apperrors.ErrPhaseMismatch
	}
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}
	return room.Submit(ctx, Join{Client: client, Name: name, Avatar: avatar})
}

// QuickMatch 加入人数最多且未满的大厅房间，没有时创建新房间
func (rm *RoomManager) QuickMatch(ctx context.Context, client types.ClientInterface, name, avatar string) (string, error) {
	if _, err := NormalizeName(name); err != nil {
		return "", err
	}
	for _, item := range rm.GetRoomList() {
		err := rm.JoinRoom(ctx, client, item.RoomCode, name, avatar)
		if err == nil {
			return item.RoomCode, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return rm.CreateRoom(ctx, client, name, avatar)
}

// LeaveRoom 离开当前房间
func (rm *RoomManager) LeaveRoom(ctx context.Context, client types.ClientInterface) error {
	code := client.GetRoom()
	if code == "" {
		return apperrors.ErrNotInRoom
	}
	return rm.Submit(ctx, code, Leave{PlayerID: client.GetID()})
}

// Disconnect 连接断开时通知房间
func (rm *RoomManager) Disconnect(ctx context.Context, client types.ClientInterface) {
	code := client.GetRoom()
	if code == "" {
		return
	}
	if err := rm.Submit(ctx, code, Disconnect{PlayerID: client.GetID()}); err != nil {
		log.Debug().Err(err).Str("room", code).Str("player", client.GetID()).Msg("掉线通知失败")
	}
}

// Reconnect 将新连接绑定回原房间位置
func (rm *RoomManager) Reconnect(ctx context.Context, code, playerID string, client types.ClientInterface) error {
	return rm.Submit(ctx, code, Reconnect{PlayerID: playerID, Client: client})
}

// Submit 将意图路由到房间
func (rm *RoomManager) Submit(ctx context.Context, code string, in Intent) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}
	return room.Submit(ctx, in)
}

// GetRoom 获取房间
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[code]
}

// GetRoomList 获取可加入的房间列表，人数多的在前
func (rm *RoomManager) GetRoomList() []protocol.RoomListItem {
	rm.mu.RLock()
	rooms := make([]protocol.RoomListItem, 0, len(rm.rooms))
	for code, room := range rm.rooms {
		s := room.Summary()
		if s.Phase == PhaseLobby && s.PlayerCount > 0 && s.PlayerCount < s.MaxPlayers {
			rooms = append(rooms, protocol.RoomListItem{
				RoomCode:    code,
				PlayerCount: s.PlayerCount,
				MaxPlayers:  s.MaxPlayers,
			})
		}
	}
	rm.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].PlayerCount != rooms[j].PlayerCount {
			return rooms[i].PlayerCount > rooms[j].PlayerCount
		}
		return rooms[i].RoomCode < rooms[j].RoomCode
	})
	return rooms
}

// RoomCount 当前房间数量
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// GetActiveGamesCount 获取进行中的游戏数量
func (rm *RoomManager) GetActiveGamesCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	count := 0
	for _, room := range rm.rooms {
		if room.Summary().Phase.InGame() {
			count++
		}
	}
	return count
}

// CloseAll 关闭所有房间（停服）
func (rm *RoomManager) CloseAll(ctx context.Context, reason string) {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.mu.RUnlock()

	for _, room := range rooms {
		_ = room.Submit(ctx, Close{Reason: reason})
	}
}

// Stop 停止清理协程并终止所有房间协程
func (rm *RoomManager) Stop() {
	rm.cancel()
	rm.wg.Wait()
}

func (rm *RoomManager) newRoom(code string) *Room {
	opts := append([]Option{WithHooks(Hooks{
		OnEmpty:    rm.remove,
		OnGameOver: rm.recordGame,
		OnChange:   rm.saveRoom,
	})}, rm.roomOpts...)
	return New(rm.ctx, code, rm.settings, opts...)
}

// remove 从注册表移除房间（房间清空时由房间协程回调）
func (rm *RoomManager) remove(code string) {
	rm.mu.Lock()
	delete(rm.rooms, code)
	rm.mu.Unlock()

	if rm.redisStore.Enabled() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			_ = rm.redisStore.DeleteRoom(ctx, code)
		}()
	}
}

func (rm *RoomManager) saveRoom(data *storage.RoomData) {
	if !rm.redisStore.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := rm.redisStore.SaveRoom(ctx, data.Code, data); err != nil {
			log.Warn().Err(err).Str("room", data.Code).Msg("房间镜像写入失败")
		}
	}()
}

func (rm *RoomManager) recordGame(code string, results []storage.GameResult) {
	if rm.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := rm.recorder.RecordGame(ctx, results); err != nil {
			log.Warn().Err(err).Str("room", code).Msg("游戏结果记录失败")
		}
	}()
}

// generateRoomCode 生成房间号，调用方需持有写锁
func (rm *RoomManager) generateRoomCode() string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeChars[rand.IntN(len(roomCodeChars))]
		}
		codeStr := string(code)
		if _, exists := rm.rooms[codeStr]; exists {
			continue
		}
		if _, exists := rm.reserved[codeStr]; !exists {
			return codeStr
		}
	}
}

// cleanupLoop 定期清理超时房间
func (rm *RoomManager) cleanupLoop() {
	defer rm.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.ctx.Done():
			return
		case now := <-ticker.C:
			rm.cleanup(now)
		}
	}
}

// cleanup 关闭在大厅或结束阶段停留过久的房间
func (rm *RoomManager) cleanup(now time.Time) {
	rm.mu.RLock()
	var stale []*Room
	for _, room := range rm.rooms {
		s := room.Summary()
		if (s.Phase == PhaseLobby || s.Phase == PhaseEnded) && now.Sub(s.IdleSince) > rm.roomTimeout {
			stale = append(stale, room)
		}
	}
	rm.mu.RUnlock()

	for _, room := range stale {
		_ = room.Submit(rm.ctx, Close{Reason: "房间超时已关闭"})
		log.Info().Str("room", room.Code).Msg("🏠 房间超时已清理")
	}
}
