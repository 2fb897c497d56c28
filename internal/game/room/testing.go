//go:build !production

package room

import (
	"context"
	"sync"
	"time"
)

// FakeClock 可手动推进的时钟
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock 创建从 start 开始的时钟
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now 返回当前时间
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进时钟
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// inspect 在房间协程中读取状态
type inspect struct {
	fn func(r *Room)
}

func (in inspect) apply(r *Room) error {
	in.fn(r)
	return nil
}

// Inspect 在房间协程中执行 fn，用于测试读取内部状态
func (r *Room) Inspect(ctx context.Context, fn func(r *Room)) error {
	return r.Submit(ctx, inspect{fn: fn})
}

// Phase 当前阶段（仅在 Inspect 回调中调用）
func (r *Room) Phase() Phase { return r.phase }

// Player 返回玩家（仅在 Inspect 回调中调用）
func (r *Room) Player(id string) *Player { return r.players[id] }

// HostID 当前房主（仅在 Inspect 回调中调用）
func (r *Room) HostID() string { return r.hostID }

// TaskProgress 当前任务进度（仅在 Inspect 回调中调用）
func (r *Room) TaskProgress() int { return r.taskProgress }

// Round 当前回合（仅在 Inspect 回调中调用）
func (r *Room) Round() int { return r.round }

// AddRoomForTest 添加房间用于测试
func (rm *RoomManager) AddRoomForTest(room *Room) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rooms[room.Code] = room
}
