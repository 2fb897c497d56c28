package room

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
)

// DefaultAbility 未指定技能类型时使用
const DefaultAbility = "disrupt"

const maxAbilityTypeLength = 32

// lockRemaining 返回任务站剩余锁定时间，过期的锁会被移除并广播恢复
func (r *Room) lockRemaining(stationID string) time.Duration {
	expiry, ok := r.locks[stationID]
	if !ok {
		return 0
	}
	left := expiry.Sub(r.now())
	if left > 0 {
		return left
	}
	r.restoreStation(stationID)
	return 0
}

func (r *Room) restoreStation(stationID string) {
	delete(r.locks, stationID)
	r.broadcast(codec.MustNewMessage(protocol.MsgStationRestored, protocol.StationRestoredPayload{StationID: stationID}))
	log.Debug().Str("room", r.Code).Str("station", stationID).Msg("任务站恢复")
}

// sweepLocks 定期清理过期的锁
func (r *Room) sweepLocks() {
	if len(r.locks) == 0 {
		return
	}
	now := r.now()
	for id, expiry := range r.locks {
		if !now.Before(expiry) {
			r.restoreStation(id)
		}
	}
}

func (r *Room) stationActor(playerID, stationID string) (*Player, error) {
	p, err := r.livingMember(playerID, PhaseActive)
	if err != nil {
		return nil, err
	}
	if !r.settings.validStation(stationID) {
		return nil, apperrors.ErrInvalidStation
	}
	return p, nil
}

// TaskInteract 与任务站交互
// 船员在任务站被锁定时收到显式拒绝；破坏者永远不受锁定影响
type TaskInteract struct {
	PlayerID  string
	StationID string
}

func (in TaskInteract) apply(r *Room) error {
	p, err := r.stationActor(in.PlayerID, in.StationID)
	if err != nil {
		return err
	}
	if !p.IsSaboteur() {
		if left := r.lockRemaining(in.StationID); left > 0 {
			return apperrors.NewTimedError(apperrors.ErrStationLocked, left)
		}
	}

	p.access[in.StationID] = true
	p.send(codec.MustNewMessage(protocol.MsgTaskAccess, protocol.TaskAccessPayload{StationID: in.StationID}))
	return nil
}

// TaskComplete 完成任务
// 船员推进任务进度；破坏者完成的是假任务，只私下获得破坏点数
type TaskComplete struct {
	PlayerID  string
	StationID string
}

func (in TaskComplete) apply(r *Room) error {
	p, err := r.stationActor(in.PlayerID, in.StationID)
	if err != nil {
		return err
	}
	if !p.access[in.StationID] {
		return apperrors.ErrNoAccess
	}
	if !p.IsSaboteur() {
		if left := r.lockRemaining(in.StationID); left > 0 {
			return apperrors.NewTimedError(apperrors.ErrStationLocked, left)
		}
	}
	delete(p.access, in.StationID)

	if p.IsSaboteur() {
		p.SabotagePoints += r.settings.FakeTaskPoints
		p.send(codec.MustNewMessage(protocol.MsgSabotagePoints, protocol.SabotagePointsPayload{Points: p.SabotagePoints}))
		return nil
	}

	p.TasksCompleted++
	r.taskProgress++
	r.broadcastProgress()
	log.Debug().Str("room", r.Code).Int("progress", r.taskProgress).Int("target", r.settings.TaskTarget).Msg("任务进度")
	r.checkGameOver()
	return nil
}

// Sabotage 消耗破坏点数锁定任务站
type Sabotage struct {
	PlayerID  string
	StationID string
}

func (in Sabotage) apply(r *Room) error {
	p, err := r.stationActor(in.PlayerID, in.StationID)
	if err != nil {
		return err
	}
	if !p.IsSaboteur() {
		return apperrors.ErrNotSaboteur
	}
	if p.SabotagePoints < r.settings.SabotageCost {
		return apperrors.ErrInsufficientSabotagePoints
	}
	if left := r.lockRemaining(in.StationID); left > 0 {
		return apperrors.NewTimedError(apperrors.ErrStationLocked, left)
	}

	p.SabotagePoints -= r.settings.SabotageCost
	r.locks[in.StationID] = r.now().Add(r.settings.SabotageLock)
	for _, pl := range r.players {
		if !pl.IsSaboteur() {
			delete(pl.access, in.StationID)
		}
	}

	p.send(codec.MustNewMessage(protocol.MsgSabotagePoints, protocol.SabotagePointsPayload{Points: p.SabotagePoints}))
	r.broadcast(codec.MustNewMessage(protocol.MsgStationSabotaged, protocol.StationSabotagedPayload{
		StationID: in.StationID,
		ExpiresIn: ceilSeconds(r.settings.SabotageLock),
	}))
	log.Info().Str("room", r.Code).Str("station", in.StationID).Msg("💣 任务站被破坏")
	return nil
}

// UseAbility 使用破坏者技能
// TargetID 为空时作用于所有存活船员
type UseAbility struct {
	PlayerID    string
	AbilityType string
	TargetID    string
}

func (in UseAbility) apply(r *Room) error {
	p, err := r.livingMember(in.PlayerID, PhaseActive)
	if err != nil {
		return err
	}
	if !p.IsSaboteur() {
		return apperrors.ErrNotSaboteur
	}
	now := r.now()
	if left := p.AbilityCooldownUntil.Sub(now); left > 0 {
		return apperrors.NewTimedError(apperrors.ErrAbilityOnCooldown, left)
	}

	var targets []*Player
	if in.TargetID != "" {
		t, ok := r.players[in.TargetID]
		if !ok || !t.Alive || t.IsSaboteur() {
			return apperrors.ErrInvalidTarget
		}
		targets = append(targets, t)
	} else {
		for _, id := range r.order {
			if t := r.players[id]; t.Alive && !t.IsSaboteur() {
				targets = append(targets, t)
			}
		}
	}

	ability := truncate(strings.TrimSpace(in.AbilityType), maxAbilityTypeLength)
	if ability == "" {
		ability = DefaultAbility
	}
	p.AbilityCooldownUntil = now.Add(r.settings.AbilityCooldown)

	effect := codec.MustNewMessage(protocol.MsgAbilityEffect, protocol.AbilityEffectPayload{
		AbilityType: ability,
		Duration:    ceilSeconds(r.settings.AbilityEffect),
	})
	for _, t := range targets {
		t.send(effect)
	}
	p.send(codec.MustNewMessage(protocol.MsgAbilityUsed, protocol.AbilityUsedPayload{
		AbilityType: ability,
		Cooldown:    ceilSeconds(r.settings.AbilityCooldown),
	}))
	log.Debug().Str("room", r.Code).Str("player", p.ID).Str("ability", ability).Int("targets", len(targets)).
		Msg("技能使用")
	return nil
}
