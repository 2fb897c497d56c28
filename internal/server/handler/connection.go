package handler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/types"
)

// handlePing 处理心跳消息
func (h *Handler) handlePing(_ context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.PingPayload](msg)
	if err != nil {
		return err
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
	return nil
}

// handleReconnect 处理断线重连：新连接接管原玩家 ID，并在宽限期内回到原房间
func (h *Handler) handleReconnect(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.ReconnectPayload](msg)
	if err != nil {
		return err
	}

	if !h.sessionManager.CanReconnect(payload.Token, payload.PlayerID) {
		return apperrors.ErrReconnectFailed
	}
	sess := h.sessionManager.GetSession(payload.PlayerID)
	if sess == nil {
		return apperrors.ErrReconnectFailed
	}

	tempID := client.GetID()
	// 已在房间中的连接不能以其他玩家身份重连
	if tempID != payload.PlayerID && client.GetRoom() != "" {
		return apperrors.ErrPhaseMismatch
	}
	if tempID != payload.PlayerID {
		old := h.server.GetClientByID(payload.PlayerID)

		h.server.UnregisterClient(tempID)
		h.sessionManager.DeleteSession(tempID)
		client.SetID(payload.PlayerID)
		h.server.RegisterClient(payload.PlayerID, client)

		// 旧连接仍在时关闭，其断线处理会因 ID 已被接管而跳过
		if old != nil && old != client {
			old.Close()
		}
	}
	h.sessionManager.SetOnline(payload.PlayerID)
	if name := sess.PlayerName(); name != "" {
		client.SetName(name)
	}

	if code := sess.RoomCode(); code != "" {
		err := h.roomManager.Reconnect(ctx, code, payload.PlayerID, client)
		if err == nil {
			log.Info().Str("player", payload.PlayerID).Str("room", code).Msg("🔄 玩家重连回房间")
			return nil
		}
		if !errors.Is(err, apperrors.ErrRoomNotFound) && !errors.Is(err, apperrors.ErrNotInRoom) {
			return err
		}
		// 房间已解散或宽限期已过
		h.sessionManager.SetRoom(payload.PlayerID, "")
		client.SetRoom("")
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgReconnected, protocol.ReconnectedPayload{
		PlayerID: payload.PlayerID,
	}))
	log.Info().Str("player", payload.PlayerID).Msg("🔄 玩家重连")
	return nil
}
