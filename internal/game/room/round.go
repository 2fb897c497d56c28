package room

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/game/role"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
	"github.com/palemoky/sabotage-station/internal/server/storage"
)

// 游戏结束原因
const (
	ReasonTasksCompleted   = "tasks_completed"
	ReasonSaboteursEjected = "saboteurs_ejected"
	ReasonCrewOutnumbered  = "crew_outnumbered"
	ReasonDoomsday         = "doomsday"
)

// StartRound 房主开始游戏
type StartRound struct {
	PlayerID string
}

func (in StartRound) apply(r *Room) error {
	if _, err := r.member(in.PlayerID); err != nil {
		return err
	}
	if r.phase != PhaseLobby {
		return apperrors.ErrPhaseMismatch
	}
	if in.PlayerID != r.hostID {
		return apperrors.ErrNotHost
	}
	if len(r.players) < r.settings.MinPlayers {
		return apperrors.ErrNotEnoughPlayers
	}

	ids := append([]string(nil), r.order...)
	var (
		assignment role.Assignment
		err        error
	)
	if r.rng != nil {
		assignment, err = role.AssignWith(r.rng, ids)
	} else {
		assignment, err = role.Assign(ids)
	}
	if err != nil {
		// 身份分配失败时房间保持在大厅
		log.Error().Err(err).Str("room", r.Code).Msg("身份分配失败")
		return err
	}
	if err := r.setPhase(PhaseActive); err != nil {
		return err
	}

	x, y := r.spawnPoint()
	for _, id := range r.order {
		p := r.players[id]
		p.Role = assignment.RoleOf(id)
		p.resetForGame(x, y)
	}
	r.round = 1
	r.taskProgress = 0
	clear(r.locks)
	if r.settings.Doomsday > 0 {
		r.doomsdayAt = r.now().Add(r.settings.Doomsday)
		time.AfterFunc(r.settings.Doomsday, func() { r.post(doomsdayCheck{}) })
	}

	for _, id := range r.order {
		p := r.players[id]
		payload := protocol.RoleAssignedPayload{Role: string(p.Role)}
		if p.IsSaboteur() {
			payload.Teammates = r.teammatesOf(id)
		}
		p.send(codec.MustNewMessage(protocol.MsgRoleAssigned, payload))
	}
	r.broadcastRoundStarted()

	log.Info().Str("room", r.Code).Int("players", len(r.players)).Int("saboteurs", len(assignment.Saboteurs)).
		Msg("🎮 游戏开始")
	r.persist()
	return nil
}

// resolveRound 会议结算后决定进入下一回合还是结束游戏
type resolveRound struct {
	meetingID int
}

func (in resolveRound) apply(r *Room) error {
	if r.phase != PhaseResolution || r.meetingSeq != in.meetingID {
		return nil
	}
	r.resolve()
	return nil
}

func (r *Room) resolve() {
	if r.checkGameOver() {
		return
	}
	if err := r.setPhase(PhaseActive); err != nil {
		log.Error().Err(err).Msg("进入下一回合失败")
		return
	}

	r.round++
	for _, p := range r.players {
		clear(p.access)
		p.Voted = false
		if !r.settings.TaskProgressPersists {
			p.TasksCompleted = 0
		}
		if !r.settings.SabotagePointsPersist {
			p.SabotagePoints = 0
		}
	}
	if !r.settings.TaskProgressPersists {
		r.taskProgress = 0
	}
	for _, p := range r.players {
		if p.IsSaboteur() {
			p.send(codec.MustNewMessage(protocol.MsgSabotagePoints, protocol.SabotagePointsPayload{Points: p.SabotagePoints}))
		}
	}
	r.broadcastRoundStarted()
	log.Info().Str("room", r.Code).Int("round", r.round).Msg("🔁 新回合开始")
	r.persist()
}

// doomsdayCheck 末日计时到期
type doomsdayCheck struct{}

func (doomsdayCheck) apply(r *Room) error {
	if r.phase == PhaseActive {
		r.checkGameOver()
	}
	return nil
}

func (r *Room) broadcastRoundStarted() {
	r.broadcast(codec.MustNewMessage(protocol.MsgRoundStarted, protocol.RoundStartedPayload{
		Round:        r.round,
		Players:      r.playerInfos(),
		TaskProgress: r.taskProgress,
		TaskTarget:   r.settings.TaskTarget,
	}))
}

func (r *Room) broadcastProgress() {
	r.broadcast(codec.MustNewMessage(protocol.MsgTaskProgress, protocol.TaskProgressPayload{
		Progress: r.taskProgress,
		Target:   r.settings.TaskTarget,
	}))
}

// winner 判断胜负，返回获胜阵营与原因
func (r *Room) winner() (role.Role, string, bool) {
	var crew, saboteurs int
	for _, p := range r.players {
		if !p.Alive {
			continue
		}
		if p.IsSaboteur() {
			saboteurs++
		} else {
			crew++
		}
	}

	switch {
	case r.taskProgress >= r.settings.TaskTarget:
		return role.Crew, ReasonTasksCompleted, true
	case saboteurs == 0:
		return role.Crew, ReasonSaboteursEjected, true
	case crew <= saboteurs:
		return role.Saboteur, ReasonCrewOutnumbered, true
	case !r.doomsdayAt.IsZero() && !r.now().Before(r.doomsdayAt):
		return role.Saboteur, ReasonDoomsday, true
	}
	return "", "", false
}

// checkGameOver 满足胜利条件时结束游戏
func (r *Room) checkGameOver() bool {
	w, reason, over := r.winner()
	if !over {
		return false
	}
	r.finish(w, reason)
	return true
}

func (r *Room) finish(w role.Role, reason string) {
	if r.meeting != nil {
		r.meeting.cancel()
		r.meeting = nil
	}
	if err := r.setPhase(PhaseEnded); err != nil {
		log.Error().Err(err).Msg("结束游戏失败")
		return
	}
	r.idleSince = r.now()

	roles := make(map[string]string, len(r.players))
	results := make([]storage.GameResult, 0, len(r.players))
	for _, id := range r.order {
		p := r.players[id]
		roles[id] = string(p.Role)
		results = append(results, storage.GameResult{
			PlayerName: p.Name,
			Saboteur:   p.IsSaboteur(),
			Winner:     p.Role == w,
		})
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgGameOver, protocol.GameOverPayload{
		Winner: string(w),
		Reason: reason,
		Roles:  roles,
		Round:  r.round,
	}))
	log.Info().Str("room", r.Code).Str("winner", string(w)).Str("reason", reason).Int("round", r.round).
		Msg("🏁 游戏结束")

	if r.hooks.OnGameOver != nil {
		r.hooks.OnGameOver(r.Code, results)
	}
	r.persist()
}

func (r *Room) spawnPoint() (float64, float64) {
	return r.settings.WorldWidth / 2, r.settings.WorldHeight / 2
}
