package room

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/palemoky/sabotage-station/internal/apperrors"
	"github.com/palemoky/sabotage-station/internal/game/role"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/types"
)

const (
	maxNameLength      = 20
	maxAvatarLength    = 64
	maxStationIDLength = 64
)

// Player 房间中的玩家
// 所有字段只由房间协程读写
type Player struct {
	ID     string
	Name   string
	Avatar string
	Client types.ClientInterface

	Role   role.Role
	X, Y   float64
	Alive  bool
	Online bool

	TasksCompleted       int
	SabotagePoints       int
	AbilityCooldownUntil time.Time
	Voted                bool

	JoinedAt       time.Time
	DisconnectedAt time.Time

	access      map[string]bool // 已获得访问许可的任务站
	moveLimiter *rate.Limiter
	moveDirty   bool // 最新位置尚未转发
	graceEpoch  int
	graceTimer  *time.Timer
}

func newPlayer(client types.ClientInterface, name, avatar string, s Settings, now time.Time) *Player {
	return &Player{
		ID:          client.GetID(),
		Name:        name,
		Avatar:      avatar,
		Client:      client,
		Alive:       true,
		Online:      true,
		JoinedAt:    now,
		access:      make(map[string]bool),
		moveLimiter: rate.NewLimiter(rate.Limit(s.MoveRate), s.MoveBurst),
	}
}

// IsSaboteur 是否为破坏者
func (p *Player) IsSaboteur() bool {
	return p.Role == role.Saboteur
}

// send 向在线玩家发送消息
func (p *Player) send(msg *protocol.Message) {
	if p.Online && p.Client != nil {
		p.Client.SendMessage(msg)
	}
}

func (p *Player) info() protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:     p.ID,
		Name:   p.Name,
		Avatar: p.Avatar,
		Alive:  p.Alive,
		Online: p.Online,
		X:      p.X,
		Y:      p.Y,
	}
}

// resetForGame 开局时重置玩家状态
func (p *Player) resetForGame(x, y float64) {
	p.X, p.Y = x, y
	p.Alive = true
	p.TasksCompleted = 0
	p.SabotagePoints = 0
	p.AbilityCooldownUntil = time.Time{}
	p.Voted = false
	p.moveDirty = false
	clear(p.access)
}

// NormalizeName 校验并规范化昵称，去除首尾空白，超长截断
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.ErrInvalidName
	}
	return truncate(name, maxNameLength), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
