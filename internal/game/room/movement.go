package room

import (
	"math"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
)

// Move 位置更新
// 非 active 阶段或死亡玩家的移动静默丢弃
type Move struct {
	PlayerID string
	X, Y     float64
}

func (in Move) apply(r *Room) error {
	p, err := r.member(in.PlayerID)
	if err != nil {
		return err
	}
	if r.phase != PhaseActive || !p.Alive {
		return apperrors.ErrMovementFrozen
	}
	if !isFinite(in.X) || !isFinite(in.Y) {
		return apperrors.ErrInvalidPosition
	}

	p.X, p.Y = r.clamp(in.X, in.Y)
	if !p.moveLimiter.AllowN(r.now(), 1) {
		// 位置已记录，由 flushMoves 补发
		p.moveDirty = true
		return nil
	}
	r.relayPosition(p)
	return nil
}

func (r *Room) relayPosition(p *Player) {
	p.moveDirty = false
	r.broadcastExcept(p.ID, codec.MustNewMessage(protocol.MsgPlayerMoved, protocol.PlayerMovedPayload{
		PlayerID: p.ID,
		X:        p.X,
		Y:        p.Y,
	}))
}

// flushMoves 在限流窗口恢复后转发被节流的最新位置
func (r *Room) flushMoves() {
	now := r.now()
	for _, id := range r.order {
		p := r.players[id]
		if p.moveDirty && p.moveLimiter.AllowN(now, 1) {
			r.relayPosition(p)
		}
	}
}

// clamp 将坐标限制在世界边界 [0, W] x [0, H] 内
func (r *Room) clamp(x, y float64) (float64, float64) {
	return clampTo(x, 0, r.settings.WorldWidth), clampTo(y, 0, r.settings.WorldHeight)
}

func clampTo(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
