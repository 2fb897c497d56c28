package handler

import (
	"context"
	"errors"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/game/room"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/types"
)

// handleMove 位置更新
func (h *Handler) handleMove(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.MovePayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.Move{PlayerID: client.GetID(), X: payload.X, Y: payload.Y})
}

func (h *Handler) handleCallMeeting(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	return h.callMeeting(ctx, client, msg, false)
}

func (h *Handler) handleReportBody(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	return h.callMeeting(ctx, client, msg, true)
}

func (h *Handler) callMeeting(ctx context.Context, client types.ClientInterface, msg *protocol.Message, report bool) error {
	payload, err := parse[protocol.RoomPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.CallMeeting{PlayerID: client.GetID(), Report: report})
}

// handleVote 投票
func (h *Handler) handleVote(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.VotePayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.Vote{PlayerID: client.GetID(), TargetID: payload.TargetID})
}

// handleTaskInteract 与任务站交互
// 任务站被锁定时回复 task_access_blocked 而不是通用错误
func (h *Handler) handleTaskInteract(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.StationPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}

	err = h.roomManager.Submit(ctx, code, room.TaskInteract{PlayerID: client.GetID(), StationID: payload.StationID})
	var timed *apperrors.TimedError
	if errors.As(err, &timed) && errors.Is(err, apperrors.ErrStationLocked) {
		client.SendMessage(codec.MustNewMessage(protocol.MsgTaskAccessBlocked, protocol.TaskAccessBlockedPayload{
			StationID:      payload.StationID,
			TimeoutSeconds: timed.RemainingSeconds(),
		}))
		return nil
	}
	return err
}

// handleTaskComplete 完成任务
func (h *Handler) handleTaskComplete(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.StationPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.TaskComplete{PlayerID: client.GetID(), StationID: payload.StationID})
}

// handleSabotage 破坏任务站
func (h *Handler) handleSabotage(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.StationPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.Sabotage{PlayerID: client.GetID(), StationID: payload.StationID})
}

// handleUseAbility 使用技能
func (h *Handler) handleUseAbility(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.UseAbilityPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}
	return h.roomManager.Submit(ctx, code, room.UseAbility{
		PlayerID:    client.GetID(),
		AbilityType: payload.AbilityType,
		TargetID:    payload.TargetID,
	})
}
