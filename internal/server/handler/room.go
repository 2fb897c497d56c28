package handler

import (
	"context"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/game/room"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/types"
)

// handleCreateRoom 处理创建房间
func (h *Handler) handleCreateRoom(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	if h.server.IsMaintenanceMode() {
		return apperrors.ErrServerMaintenance
	}
	payload, err := parse[protocol.CreateRoomPayload](msg)
	if err != nil {
		return err
	}

	code, err := h.roomManager.CreateRoom(ctx, client, payload.Name, payload.Avatar)
	if err != nil {
		return err
	}
	h.syncSession(client, code)
	return nil
}

// handleJoinRoom 处理加入房间
func (h *Handler) handleJoinRoom(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	if h.server.IsMaintenanceMode() {
		return apperrors.ErrServerMaintenance
	}
	payload, err := parse[protocol.JoinRoomPayload](msg)
	if err != nil {
		return err
	}

	if err := h.roomManager.JoinRoom(ctx, client, payload.RoomCode, payload.Name, payload.Avatar); err != nil {
		return err
	}
	h.syncSession(client, payload.RoomCode)
	return nil
}

// handleQuickMatch 快速匹配：加入人数最多的可加入房间，没有则创建
func (h *Handler) handleQuickMatch(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	if h.server.IsMaintenanceMode() {
		return apperrors.ErrServerMaintenance
	}
	payload, err := parse[protocol.CreateRoomPayload](msg)
	if err != nil {
		return err
	}

	code, err := h.roomManager.QuickMatch(ctx, client, payload.Name, payload.Avatar)
	if err != nil {
		return err
	}
	h.syncSession(client, code)
	return nil
}

// handleLeaveRoom 处理离开房间
func (h *Handler) handleLeaveRoom(ctx context.Context, client types.ClientInterface, _ *protocol.Message) error {
	if err := h.roomManager.LeaveRoom(ctx, client); err != nil {
		return err
	}
	h.sessionManager.SetRoom(client.GetID(), "")
	return nil
}

// handleStartRound 房主开始游戏
func (h *Handler) handleStartRound(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.RoomPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.StartRound{PlayerID: client.GetID()})
}

// handleGetRoomList 获取可加入的房间列表
func (h *Handler) handleGetRoomList(_ context.Context, client types.ClientInterface, _ *protocol.Message) error {
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomList, protocol.RoomListResultPayload{
		Rooms: h.roomManager.GetRoomList(),
	}))
	return nil
}

// syncSession 记录会话所在房间和昵称，用于断线重连
func (h *Handler) syncSession(client types.ClientInterface, code string) {
	id := client.GetID()
	h.sessionManager.SetName(id, client.GetName())
	h.sessionManager.SetRoom(id, code)
}
