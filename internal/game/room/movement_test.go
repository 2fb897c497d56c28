package room

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/protocol"
)

func position(t *testing.T, r *Room, id string) (float64, float64) {
	t.Helper()
	var x, y float64
	require.NoError(t, r.Inspect(context.Background(), func(r *Room) {
		p := r.players[id]
		x, y = p.X, p.Y
	}))
	return x, y
}

func TestMove_Clamped(t *testing.T) {
	t.Parallel()

	r, clients := newTestRoom(t, testSettings(), 3)
	startGame(t, r)

	require.NoError(t, submit(r, Move{PlayerID: "p1", X: 9999, Y: -500}))
	x, y := position(t, r, "p1")
	assert.InDelta(t, 2000.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)

	var moved protocol.PlayerMovedPayload
	require.True(t, clients[1].DecodeLast(protocol.MsgPlayerMoved, &moved))
	assert.Equal(t, "p1", moved.PlayerID)
	assert.InDelta(t, 2000.0, moved.X, 1e-9)
	assert.InDelta(t, 0.0, moved.Y, 1e-9)
	assert.Zero(t, clients[0].CountOf(protocol.MsgPlayerMoved))
}

func TestMove_Frozen(t *testing.T) {
	t.Parallel()

	r, clients := newTestRoom(t, testSettings(), 3)

	err := submit(r, Move{PlayerID: "p1", X: 10, Y: 10})
	assert.ErrorIs(t, err, apperrors.ErrMovementFrozen)
	assert.True(t, apperrors.IsSilent(err))

	startGame(t, r)
	require.NoError(t, submit(r, CallMeeting{PlayerID: "p1"}))
	x0, y0 := position(t, r, "p2")
	assert.ErrorIs(t, submit(r, Move{PlayerID: "p2", X: 10, Y: 10}), apperrors.ErrMovementFrozen)

	x, y := position(t, r, "p2")
	assert.InDelta(t, x0, x, 1e-9)
	assert.InDelta(t, y0, y, 1e-9)
	assert.Zero(t, clients[0].CountOf(protocol.MsgPlayerMoved))
}

func TestMove_InvalidPosition(t *testing.T) {
	t.Parallel()

	r, _ := newTestRoom(t, testSettings(), 3)
	startGame(t, r)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := submit(r, Move{PlayerID: "p1", X: v, Y: 1})
		assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)
		assert.True(t, apperrors.IsSilent(err))
	}
}

func TestMove_Throttled(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.MoveRate = 1
	s.MoveBurst = 3
	s.LockSweepInterval = 10 * time.Millisecond
	clock := NewFakeClock(time.Unix(1_700_000_000, 0))
	r, clients := newTestRoom(t, s, 3, WithClock(clock.Now))
	startGame(t, r)

	for i := 1; i <= 6; i++ {
		require.NoError(t, submit(r, Move{PlayerID: "p1", X: float64(i * 10), Y: 5}))
	}
	assert.Equal(t, 3, clients[1].CountOf(protocol.MsgPlayerMoved))

	// 未转发的位置仍会记录
	x, _ := position(t, r, "p1")
	assert.InDelta(t, 60.0, x, 1e-9)

	// 令牌恢复后补发最新位置
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		var moved protocol.PlayerMovedPayload
		return clients[1].CountOf(protocol.MsgPlayerMoved) == 4 &&
			clients[1].DecodeLast(protocol.MsgPlayerMoved, &moved) && moved.X == 60
	}, time.Second, 5*time.Millisecond)

	// 补发后不会重复转发
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, clients[1].CountOf(protocol.MsgPlayerMoved))

	clock.Advance(time.Second)
	require.NoError(t, submit(r, Move{PlayerID: "p1", X: 70, Y: 5}))
	assert.Equal(t, 5, clients[1].CountOf(protocol.MsgPlayerMoved))
	var moved protocol.PlayerMovedPayload
	require.True(t, clients[1].DecodeLast(protocol.MsgPlayerMoved, &moved))
	assert.InDelta(t, 70.0, moved.X, 1e-9)
}
