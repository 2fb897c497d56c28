package room

import "fmt"

// Phase 房间阶段
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseActive     Phase = "active"
	PhaseMeeting    Phase = "meeting"
	PhaseResolution Phase = "resolution"
	PhaseEnded      Phase = "ended"
)

// transitions 合法的阶段转换
var transitions = map[Phase][]Phase{
	PhaseLobby:      {PhaseActive},
	PhaseActive:     {PhaseMeeting, PhaseEnded},
	PhaseMeeting:    {PhaseResolution},
	PhaseResolution: {PhaseActive, PhaseEnded},
	PhaseEnded:      {},
}

// CanTransitionTo 判断是否可以转换到目标阶段
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InGame 游戏是否进行中
func (p Phase) InGame() bool {
	return p == PhaseActive || p == PhaseMeeting || p == PhaseResolution
}

// setPhase 执行阶段转换，非法转换返回错误且不修改状态
func (r *Room) setPhase(next Phase) error {
	if !r.phase.CanTransitionTo(next) {
		return fmt.Errorf("room %s: illegal transition %s -> %s", r.Code, r.phase, next)
	}
	r.phase = next
	return nil
}
