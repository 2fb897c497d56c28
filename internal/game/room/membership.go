package room

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/game/role"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/types"
)

const maxChatLength = 200

// Join 加入房间；Create 为 true 时表示房主创建房间
type Join struct {
	Client types.ClientInterface
	Name   string
	Avatar string
	Create bool
}

func (in Join) apply(r *Room) error {
	name, err := NormalizeName(in.Name)
	if err != nil {
		return err
	}
	id := in.Client.GetID()
	if _, exists := r.players[id]; exists {
		r.sendTo(id, codec.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{Room: r.snapshot()}))
		return nil
	}
	if r.phase != PhaseLobby {
		return apperrors.ErrPhaseMismatch
	}
	if len(r.players) >= r.settings.MaxPlayers {
		return apperrors.ErrRoomFull
	}

	p := newPlayer(in.Client, name, truncate(strings.TrimSpace(in.Avatar), maxAvatarLength), r.settings, r.now())
	p.X, p.Y = r.spawnPoint()
	r.players[id] = p
	r.order = append(r.order, id)
	if r.hostID == "" {
		r.hostID = id
	}
	in.Client.SetName(name)
	in.Client.SetRoom(r.Code)

	if in.Create {
		p.send(codec.MustNewMessage(protocol.MsgRoomCreated, protocol.RoomCreatedPayload{Room: r.snapshot()}))
		log.Info().Str("room", r.Code).Str("player", id).Str("name", name).Msg("🏠 房间已创建")
	} else {
		p.send(codec.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{Room: r.snapshot()}))
		r.broadcastExcept(id, codec.MustNewMessage(protocol.MsgPlayerJoined, protocol.PlayerJoinedPayload{Player: p.info()}))
		log.Info().Str("room", r.Code).Str("player", id).Str("name", name).Msg("👤 玩家加入房间")
	}
	r.persist()
	return nil
}

// Leave 主动离开房间
type Leave struct {
	PlayerID string
}

func (in Leave) apply(r *Room) error {
	p, ok := r.players[in.PlayerID]
	if !ok {
		return apperrors.ErrNotInRoom
	}
	if p.Client != nil && p.Client.GetRoom() == r.Code {
		p.Client.SetRoom("")
	}
	r.removePlayer(in.PlayerID, "leave")
	return nil
}

// Disconnect 连接断开，进入重连宽限期
type Disconnect struct {
	PlayerID string
}

func (in Disconnect) apply(r *Room) error {
	p, ok := r.players[in.PlayerID]
	if !ok {
		return apperrors.ErrNotInRoom
	}
	if !p.Online {
		return nil
	}
	if r.settings.ReconnectGrace <= 0 {
		r.removePlayer(in.PlayerID, "disconnect")
		return nil
	}

	p.Online = false
	p.Client = nil
	p.DisconnectedAt = r.now()
	p.graceEpoch++
	epoch := p.graceEpoch
	p.graceTimer = time.AfterFunc(r.settings.ReconnectGrace, func() {
		r.post(graceExpired{playerID: in.PlayerID, epoch: epoch})
	})

	r.broadcast(codec.MustNewMessage(protocol.MsgPlayerOffline, protocol.PlayerOfflinePayload{
		PlayerID: in.PlayerID,
		Timeout:  ceilSeconds(r.settings.ReconnectGrace),
	}))
	log.Info().Str("room", r.Code).Str("player", in.PlayerID).Msg("📴 玩家掉线")

	if r.allOffline() {
		log.Info().Str("room", r.Code).Msg("🧹 房间内所有玩家均已掉线")
	}
	r.persist()
	return nil
}

// graceExpired 重连宽限期结束
type graceExpired struct {
	playerID string
	epoch    int
}

func (in graceExpired) apply(r *Room) error {
	p, ok := r.players[in.playerID]
	if !ok || p.Online || p.graceEpoch != in.epoch {
		return nil
	}
	log.Info().Str("room", r.Code).Str("player", in.playerID).Msg("⌛ 重连超时，移出房间")
	r.removePlayer(in.playerID, "timeout")
	return nil
}

// Reconnect 使用新连接接管原玩家位置
type Reconnect struct {
	PlayerID string
	Client   types.ClientInterface
}

func (in Reconnect) apply(r *Room) error {
	p, ok := r.players[in.PlayerID]
	if !ok {
		return apperrors.ErrNotInRoom
	}
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.graceEpoch++
	p.Client = in.Client
	p.Online = true
	p.DisconnectedAt = time.Time{}
	in.Client.SetName(p.Name)
	in.Client.SetRoom(r.Code)

	snap := r.snapshot()
	payload := protocol.ReconnectedPayload{PlayerID: p.ID, Room: &snap}
	if r.phase != PhaseLobby {
		payload.Role = string(p.Role)
		if p.IsSaboteur() {
			payload.Teammates = r.teammatesOf(p.ID)
		}
	}
	p.send(codec.MustNewMessage(protocol.MsgReconnected, payload))
	if r.phase != PhaseLobby && p.IsSaboteur() {
		p.send(codec.MustNewMessage(protocol.MsgSabotagePoints, protocol.SabotagePointsPayload{Points: p.SabotagePoints}))
	}
	if m := r.meeting; m != nil {
		p.send(codec.MustNewMessage(protocol.MsgMeetingTick, protocol.MeetingTickPayload{Remaining: m.remainingSeconds(r.now())}))
	}

	r.broadcastExcept(p.ID, codec.MustNewMessage(protocol.MsgPlayerOnline, protocol.PlayerOnlinePayload{PlayerID: p.ID}))
	log.Info().Str("room", r.Code).Str("player", p.ID).Msg("📶 玩家重连")
	r.persist()
	return nil
}

// Close 强制关闭房间（超时清理、停服）
type Close struct {
	Reason string
}

func (in Close) apply(r *Room) error {
	r.broadcast(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, in.Reason))
	log.Info().Str("room", r.Code).Str("reason", in.Reason).Msg("🧹 房间被关闭")
	r.shutdown()
	return nil
}

// Chat 房间聊天
// 大厅与结束阶段所有人可聊天，会议中仅存活玩家可发言
type Chat struct {
	PlayerID string
	Text     string
}

func (in Chat) apply(r *Room) error {
	p, err := r.member(in.PlayerID)
	if err != nil {
		return err
	}
	switch r.phase {
	case PhaseLobby, PhaseEnded:
	case PhaseMeeting:
		if !p.Alive {
			return apperrors.ErrPlayerDead
		}
	default:
		return apperrors.ErrPhaseMismatch
	}

	text := truncate(strings.TrimSpace(in.Text), maxChatLength)
	if text == "" {
		return apperrors.ErrInvalidMessage
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgChat, protocol.ChatPayload{
		RoomCode: r.Code,
		SenderID: p.ID,
		Content:  text,
		Time:     r.now().Unix(),
	}))
	return nil
}

// removePlayer 移除玩家，处理房主转移、会议与胜负检查、空房间解散
func (r *Room) removePlayer(id, reason string) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	if p.graceTimer != nil {
		p.graceTimer.Stop()
	}

	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.phase.InGame() && p.Role == role.Crew && p.TasksCompleted > 0 {
		r.taskProgress -= p.TasksCompleted
	}
	log.Info().Str("room", r.Code).Str("player", id).Str("reason", reason).Msg("👋 玩家离开房间")

	if len(r.players) == 0 {
		r.shutdown()
		return
	}

	r.broadcast(codec.MustNewMessage(protocol.MsgPlayerLeft, protocol.PlayerLeftPayload{PlayerID: id}))
	if r.hostID == id {
		r.hostID = r.order[0]
		r.broadcast(codec.MustNewMessage(protocol.MsgHostChanged, protocol.HostChangedPayload{HostID: r.hostID}))
	}
	if r.phase.InGame() && p.Role == role.Crew && p.TasksCompleted > 0 {
		r.broadcastProgress()
	}

	switch r.phase {
	case PhaseMeeting:
		r.meeting.removePlayer(id)
		if r.meeting.allVoted() {
			r.endMeeting("all_voted")
		}
	case PhaseActive:
		r.checkGameOver()
	}
	r.persist()
}

func (r *Room) allOffline() bool {
	for _, p := range r.players {
		if p.Online {
			return false
		}
	}
	return true
}

// teammatesOf 其他破坏者 ID，按加入顺序
func (r *Room) teammatesOf(id string) []string {
	var ids []string
	for _, other := range r.order {
		if other != id && r.players[other].IsSaboteur() {
			ids = append(ids, other)
		}
	}
	return ids
}
