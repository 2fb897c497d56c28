package apperrors

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/palemoky/sabotage-station/internal/protocol"
)

// GameError 游戏错误（房间和会话共享）
// Silent 为 true 时不向任何人发送反馈
type GameError struct {
	Code    int
	Message string
	Silent  bool
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrRoomNotFound               = newError(protocol.ErrCodeRoomNotFound)
	ErrRoomFull                   = newError(protocol.ErrCodeRoomFull)
	ErrInvalidName                = newError(protocol.ErrCodeInvalidName)
	ErrNotInRoom                  = newError(protocol.ErrCodeNotInRoom)
	ErrNotHost                    = newError(protocol.ErrCodeNotHost)
	ErrNotEnoughPlayers           = newError(protocol.ErrCodeNotEnoughPlayers)
	ErrPhaseMismatch              = newError(protocol.ErrCodePhaseMismatch)
	ErrPlayerDead                 = newError(protocol.ErrCodePlayerDead)
	ErrPlayerOffline              = newError(protocol.ErrCodePlayerOffline)
	ErrEmptyRoom                  = newError(protocol.ErrCodeEmptyRoom)
	ErrAlreadyVoted               = newError(protocol.ErrCodeAlreadyVoted)
	ErrNotEligible                = newError(protocol.ErrCodeNotEligible)
	ErrInvalidTarget              = newError(protocol.ErrCodeInvalidTarget)
	ErrInsufficientSabotagePoints = newError(protocol.ErrCodeInsufficientPts)
	ErrStationLocked              = newError(protocol.ErrCodeStationLocked)
	ErrNoAccess                   = newError(protocol.ErrCodeNoAccess)
	ErrNotSaboteur                = newError(protocol.ErrCodeNotSaboteur)
	ErrAbilityOnCooldown          = newError(protocol.ErrCodeAbilityOnCooldown)
	ErrInvalidStation             = newError(protocol.ErrCodeInvalidStation)
	ErrServerMaintenance          = newError(protocol.ErrCodeServerMaintenance)
	ErrReconnectFailed            = newError(protocol.ErrCodeReconnectFailed)

	ErrInternal       = newError(protocol.ErrCodeUnknown)
	ErrInvalidMessage = newError(protocol.ErrCodeInvalidMsg)

	// ErrMovementFrozen 会议期间或死亡后的移动，静默丢弃
	ErrMovementFrozen = &GameError{Code: protocol.ErrCodePhaseMismatch, Message: "移动已冻结", Silent: true}
	// ErrInvalidPosition 非有限坐标，静默丢弃
	ErrInvalidPosition = &GameError{Code: protocol.ErrCodeInvalidMsg, Message: "无效坐标", Silent: true}
)

func newError(code int) *GameError {
	return &GameError{Code: code, Message: protocol.ErrorMessages[code]}
}

// TimedError 带剩余时间的错误（任务站锁定、技能冷却）
type TimedError struct {
	Err       *GameError
	Remaining time.Duration
}

// NewTimedError 创建带剩余时间的错误
func NewTimedError(err *GameError, remaining time.Duration) *TimedError {
	return &TimedError{Err: err, Remaining: remaining}
}

func (e *TimedError) Error() string {
	return fmt.Sprintf("%s（剩余 %d 秒）", e.Err.Message, e.RemainingSeconds())
}

func (e *TimedError) Unwrap() error {
	return e.Err
}

// RemainingSeconds 向上取整的剩余秒数，至少为 1
func (e *TimedError) RemainingSeconds() int {
	s := int(math.Ceil(e.Remaining.Seconds()))
	return max(s, 1)
}

// IsSilent 判断错误是否应被静默丢弃
func IsSilent(err error) bool {
	var gameErr *GameError
	return errors.As(err, &gameErr) && gameErr.Silent
}
