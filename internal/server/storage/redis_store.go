package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key 前缀
	roomKeyPrefix    = "room:"
	sessionKeyPrefix = "session:"

	// 房间数据过期时间
	roomExpiration = 2 * time.Hour
	// 会话数据过期时间
	sessionExpiration = 30 * time.Minute
)

// RoomData 房间元数据（用于 Redis 镜像，不包含任何身份信息）
type RoomData struct {
	Code         string       `json:"code"`
	Phase        string       `json:"phase"`
	HostID       string       `json:"host_id"`
	Round        int          `json:"round"`
	TaskProgress int          `json:"task_progress"`
	Players      []PlayerData `json:"players"`
	PlayerOrder  []string     `json:"player_order"`
	CreatedAt    int64        `json:"created_at"`
	UpdatedAt    int64        `json:"updated_at"`
}

// PlayerData 玩家数据
type PlayerData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Alive  bool   `json:"alive"`
	Online bool   `json:"online"`
}

// RedisStore Redis 存储，client 为 nil 时所有操作为空操作
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Enabled 是否连接了 Redis
func (rs *RedisStore) Enabled() bool {
	return rs != nil && rs.client != nil
}

// --- 房间存储 ---

// SaveRoom 保存房间到 Redis
func (rs *RedisStore) SaveRoom(ctx context.Context, roomCode string, data *RoomData) error {
	if !rs.Enabled() || data == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化房间数据失败: %w", err)
	}

	return rs.client.Set(ctx, roomKeyPrefix+roomCode, jsonData, roomExpiration).Err()
}

// LoadRoom 从 Redis 加载房间，不存在时返回 nil
func (rs *RedisStore) LoadRoom(ctx context.Context, code string) (*RoomData, error) {
	if !rs.Enabled() {
		return nil, nil
	}

	data, err := rs.client.Get(ctx, roomKeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var roomData RoomData
	if err := json.Unmarshal(data, &roomData); err != nil {
		return nil, fmt.Errorf("反序列化房间数据失败: %w", err)
	}
	return &roomData, nil
}

// DeleteRoom 从 Redis 删除房间
func (rs *RedisStore) DeleteRoom(ctx context.Context, code string) error {
	if !rs.Enabled() {
		return nil
	}
	return rs.client.Del(ctx, roomKeyPrefix+code).Err()
}

// GetAllRoomCodes 获取所有房间号
func (rs *RedisStore) GetAllRoomCodes(ctx context.Context) ([]string, error) {
	if !rs.Enabled() {
		return nil, nil
	}

	var codes []string
	iter := rs.client.Scan(ctx, 0, roomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, iter.Val()[len(roomKeyPrefix):])
	}
	return codes, iter.Err()
}

// --- 会话存储 ---

// PlayerSessionData 玩家会话数据（用于 Redis 序列化）
type PlayerSessionData struct {
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	RoomCode       string `json:"room_code"`
	IsOnline       bool   `json:"is_online"`
	DisconnectedAt int64  `json:"disconnected_at,omitempty"`
}

// SaveSession 保存会话到 Redis（不保存重连令牌）
func (rs *RedisStore) SaveSession(ctx context.Context, session *PlayerSessionData) error {
	if !rs.Enabled() || session == nil {
		return nil
	}

	data := map[string]any{
		"player_id":   session.PlayerID,
		"player_name": session.PlayerName,
		"room_code":   session.RoomCode,
		"is_online":   session.IsOnline,
	}
	if session.DisconnectedAt != 0 {
		data["disconnected_at"] = session.DisconnectedAt
	}

	key := sessionKeyPrefix + session.PlayerID
	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, sessionExpiration)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadSession 从 Redis 加载会话
func (rs *RedisStore) LoadSession(ctx context.Context, playerID string) (*PlayerSessionData, error) {
	if !rs.Enabled() {
		return nil, nil
	}

	data, err := rs.client.HGetAll(ctx, sessionKeyPrefix+playerID).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &PlayerSessionData{
		PlayerID:   data["player_id"],
		PlayerName: data["player_name"],
		RoomCode:   data["room_code"],
		IsOnline:   data["is_online"] == "1",
	}, nil
}

// DeleteSession 删除会话
func (rs *RedisStore) DeleteSession(ctx context.Context, playerID string) error {
	if !rs.Enabled() {
		return nil
	}
	return rs.client.Del(ctx, sessionKeyPrefix+playerID).Err()
}
