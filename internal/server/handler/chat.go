package handler

import (
	"context"

	"github.com/palemoky/sabotage-station/internal/game/room"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/types"
)

// handleChat 房间聊天
func (h *Handler) handleChat(ctx context.Context, client types.ClientInterface, msg *protocol.Message) error {
	payload, err := parse[protocol.ChatPayload](msg)
	if err != nil {
		return err
	}
	code, err := currentRoom(client, payload.RoomCode)
	if err != nil {
		return err
	}

	if h.chatLimiter != nil {
		if allowed, reason := h.chatLimiter.AllowChat(client.GetID()); !allowed {
			client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, reason))
			return nil
		}
	}

	return h.roomManager.Submit(ctx, code, room.Chat{PlayerID: client.GetID(), Text: payload.Content})
}
