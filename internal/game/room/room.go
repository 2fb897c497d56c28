package room

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/logger"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/server/storage"
)

const inboxSize = 64

// Intent 发往房间的意图，只能由本包定义
type Intent interface {
	apply(r *Room) error
}

type envelope struct {
	intent Intent
	reply  chan error // 内部事件为 nil
}

// Hooks 房间向外部通知的回调，均在房间协程中调用，不得阻塞
type Hooks struct {
	OnEmpty    func(code string)
	OnGameOver func(code string, results []storage.GameResult)
	OnChange   func(data *storage.RoomData)
}

// Summary 房间概要，供注册表无锁读取
type Summary struct {
	Code        string
	Phase       Phase
	PlayerCount int
	MaxPlayers  int
	CreatedAt   time.Time
	IdleSince   time.Time // 进入大厅或结束阶段的时间
}

// Room 游戏房间
// 所有状态只由 loop 协程修改，外部通过 Submit 投递意图
type Room struct {
	Code      string
	settings  Settings
	createdAt time.Time

	phase        Phase
	players      map[string]*Player
	order        []string // 加入顺序
	hostID       string
	round        int
	taskProgress int
	meeting      *meeting
	meetingSeq   int
	locks        map[string]time.Time // 任务站 -> 锁定到期时间
	doomsdayAt   time.Time
	idleSince    time.Time
	closed       bool

	hooks   Hooks
	now     func() time.Time
	rng     *rand.Rand
	summary atomic.Pointer[Summary]

	inbox  chan envelope
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option 房间选项
type Option func(*Room)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithRand 注入随机源（身份分配）
func WithRand(rng *rand.Rand) Option {
	return func(r *Room) { r.rng = rng }
}

// WithHooks 设置回调
func WithHooks(h Hooks) Option {
	return func(r *Room) { r.hooks = h }
}

// New 创建房间并启动房间协程
func New(ctx context.Context, code string, settings Settings, opts ...Option) *Room {
	r := &Room{
		Code:     code,
		settings: settings.normalize(),
		phase:    PhaseLobby,
		players:  make(map[string]*Player),
		locks:    make(map[string]time.Time),
		now:      time.Now,
		inbox:    make(chan envelope, inboxSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.createdAt = r.now()
	r.idleSince = r.createdAt
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.publishSummary()

	go r.loop()
	return r
}

// Submit 投递意图并等待处理结果
func (r *Room) Submit(ctx context.Context, in Intent) error {
	env := envelope{intent: in, reply: make(chan error, 1)}
	select {
	case r.inbox <- env:
	case <-r.done:
		return apperrors.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-env.reply:
		return err
	case <-r.done:
		// 房间在回复后立即关闭时仍以回复为准
		select {
		case err := <-env.reply:
			return err
		default:
			return apperrors.ErrRoomNotFound
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post 由计时器协程投递内部事件，不等待结果
func (r *Room) post(in Intent) {
	select {
	case r.inbox <- envelope{intent: in}:
	case <-r.ctx.Done():
	}
}

// Done 房间关闭后返回的 channel 被关闭
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Summary 返回最近一次处理后的房间概要
func (r *Room) Summary() Summary {
	return *r.summary.Load()
}

func (r *Room) loop() {
	defer close(r.done)
	defer r.cancel()

	ticker := time.NewTicker(r.settings.LockSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.stopTimers()
			return
		case env := <-r.inbox:
			err := r.dispatch(env.intent)
			if env.reply != nil {
				env.reply <- err
			}
			r.publishSummary()
			if r.closed {
				r.stopTimers()
				return
			}
		case <-ticker.C:
			r.sweepLocks()
			r.flushMoves()
		}
	}
}

// dispatch 执行单个意图，panic 不会终止房间协程
func (r *Room) dispatch(in Intent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.LogPanic(rec)
			err = apperrors.ErrInternal
		}
	}()
	return in.apply(r)
}

func (r *Room) publishSummary() {
	r.summary.Store(&Summary{
		Code:        r.Code,
		Phase:       r.phase,
		PlayerCount: len(r.players),
		MaxPlayers:  r.settings.MaxPlayers,
		CreatedAt:   r.createdAt,
		IdleSince:   r.idleSince,
	})
}

// stopTimers 停止房间持有的计时器
func (r *Room) stopTimers() {
	if r.meeting != nil {
		r.meeting.cancel()
	}
	for _, p := range r.players {
		if p.graceTimer != nil {
			p.graceTimer.Stop()
		}
	}
}

// shutdown 标记房间关闭，loop 在本次意图处理后退出
func (r *Room) shutdown() {
	if r.closed {
		return
	}
	r.closed = true
	for _, p := range r.players {
		if p.Client != nil && p.Client.GetRoom() == r.Code {
			p.Client.SetRoom("")
		}
	}
	if r.hooks.OnEmpty != nil {
		r.hooks.OnEmpty(r.Code)
	}
	log.Info().Str("room", r.Code).Msg("🏠 房间已解散")
}

// --- 消息发送 ---

func (r *Room) broadcast(msg *protocol.Message) {
	for _, id := range r.order {
		r.players[id].send(msg)
	}
}

func (r *Room) broadcastExcept(exceptID string, msg *protocol.Message) {
	for _, id := range r.order {
		if id != exceptID {
			r.players[id].send(msg)
		}
	}
}

func (r *Room) sendTo(playerID string, msg *protocol.Message) {
	if p, ok := r.players[playerID]; ok {
		p.send(msg)
	}
}

// persist 异步镜像房间元数据
func (r *Room) persist() {
	if r.hooks.OnChange != nil {
		r.hooks.OnChange(r.toRoomData())
	}
}

// --- 通用校验 ---

// member 返回房间内的在线玩家
func (r *Room) member(playerID string) (*Player, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, apperrors.ErrNotInRoom
	}
	if !p.Online {
		return nil, apperrors.ErrPlayerOffline
	}
	return p, nil
}

// livingMember 返回存活的在线玩家，并要求当前阶段匹配
func (r *Room) livingMember(playerID string, phase Phase) (*Player, error) {
	p, err := r.member(playerID)
	if err != nil {
		return nil, err
	}
	if r.phase != phase {
		return nil, apperrors.ErrPhaseMismatch
	}
	if !p.Alive {
		return nil, apperrors.ErrPlayerDead
	}
	return p, nil
}

func (r *Room) playerInfos() []protocol.PlayerInfo {
	infos := make([]protocol.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.players[id].info())
	}
	return infos
}

func (r *Room) snapshot() protocol.RoomSnapshot {
	return protocol.RoomSnapshot{
		Code:         r.Code,
		Phase:        string(r.phase),
		HostID:       r.hostID,
		Round:        r.round,
		TaskProgress: r.taskProgress,
		TaskTarget:   r.settings.TaskTarget,
		Players:      r.playerInfos(),
	}
}
