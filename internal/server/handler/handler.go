package handler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/game/room"
	"github.com/palemoky/sabotage-station/internal/logger"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/server/session"
	"github.com/palemoky/sabotage-station/internal/server/storage"
	"github.com/palemoky/sabotage-station/internal/types"
)

// 单条消息的处理超时
const requestTimeout = 5 * time.Second

// Leaderboard 统计与排行榜查询
type Leaderboard interface {
	GetPlayerStats(ctx context.Context, playerName string) (*storage.PlayerStats, error)
	GetPlayerRank(ctx context.Context, playerName string) (int64, error)
	GetLeaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
}

// HandlerDeps 处理器依赖
type HandlerDeps struct {
	Server         types.ServerInterface
	RoomManager    *room.RoomManager
	SessionManager *session.SessionManager
	ChatLimiter    types.ChatLimiter
	Leaderboard    Leaderboard
}

// Handler 消息处理器，把客户端消息转换为房间意图
type Handler struct {
	server         types.ServerInterface
	roomManager    *room.RoomManager
	sessionManager *session.SessionManager
	chatLimiter    types.ChatLimiter
	leaderboard    Leaderboard
	handlers       map[protocol.MessageType]handlerFunc
}

// handlerFunc 统一的处理器函数签名，返回的错误由 Handle 统一回复
type handlerFunc func(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error

// NewHandler 创建处理器
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		server:         deps.Server,
		roomManager:    deps.RoomManager,
		sessionManager: deps.SessionManager,
		chatLimiter:    deps.ChatLimiter,
		leaderboard:    deps.Leaderboard,
	}
	h.initHandlers()
	return h
}

func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		// 连接操作
		protocol.MsgPing:      h.handlePing,
		protocol.MsgReconnect: h.handleReconnect,

		// 房间操作
		protocol.MsgCreateRoom:  h.handleCreateRoom,
		protocol.MsgJoinRoom:    h.handleJoinRoom,
		protocol.MsgLeaveRoom:   h.handleLeaveRoom,
		protocol.MsgQuickMatch:  h.handleQuickMatch,
		protocol.MsgStartRound:  h.handleStartRound,
		protocol.MsgGetRoomList: h.handleGetRoomList,

		// 游戏操作
		protocol.MsgMove:         h.handleMove,
		protocol.MsgCallMeeting:  h.handleCallMeeting,
		protocol.MsgReportBody:   h.handleReportBody,
		protocol.MsgVote:         h.handleVote,
		protocol.MsgTaskInteract: h.handleTaskInteract,
		protocol.MsgTaskComplete: h.handleTaskComplete,
		protocol.MsgSabotage:     h.handleSabotage,
		protocol.MsgUseAbility:   h.handleUseAbility,
		protocol.MsgChat:         h.handleChat,

		// 统计
		protocol.MsgGetStats:       h.handleGetStats,
		protocol.MsgGetLeaderboard: h.handleGetLeaderboard,
	}
}

// Handle 处理一条消息
func (h *Handler) Handle(client types.ClientInterface, msg *protocol.Message) {
	fn, ok := h.handlers[msg.Type]
	if !ok {
		log.Debug().Str("type", string(msg.Type)).Str("client", client.GetID()).Int("payload", len(msg.Payload)).Msg("⚠️ 未知消息类型")
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeUnknown))
		}
	}()

	if err := fn(ctx, client, msg); err != nil {
		h.replyError(client, msg.Type, err)
	}
}

// replyError 将错误转换为发给请求者的错误消息，静默错误直接丢弃
func (h *Handler) replyError(client types.ClientInterface, msgType protocol.MessageType, err error) {
	if apperrors.IsSilent(err) {
		return
	}

	var timed *apperrors.TimedError
	var gameErr *apperrors.GameError
	switch {
	case errors.As(err, &timed):
		client.SendMessage(codec.NewErrorMessageWithText(timed.Err.Code, timed.Error()))
	case errors.As(err, &gameErr):
		client.SendMessage(codec.NewErrorMessageWithText(gameErr.Code, gameErr.Message))
	default:
		log.Warn().Err(err).Str("type", string(msgType)).Str("client", client.GetID()).Msg("处理消息失败")
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeUnknown))
	}
}

// parse 解析 payload，失败时返回 ErrInvalidMessage
func parse[T any](msg *protocol.Message) (*T, error) {
	payload, err := codec.ParsePayload[T](msg)
	if err != nil {
		return nil, apperrors.ErrInvalidMessage
	}
	return payload, nil
}

// currentRoom 返回客户端所在房间；payload 中携带的房间号必须与之一致
func currentRoom(client types.ClientInterface, claimed string) (string, error) {
	code := client.GetRoom()
	if code == "" || (claimed != "" && claimed != code) {
		return "", apperrors.ErrNotInRoom
	}
	return code, nil
}
