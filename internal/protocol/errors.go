package protocol

// 错误码
const (
	ErrCodeUnknown           = 1000
	ErrCodeInvalidMsg        = 1001
	ErrCodeRateLimit         = 1002 // 速率限制
	ErrCodeRoomNotFound      = 2001
	ErrCodeRoomFull          = 2002
	ErrCodeNotInRoom         = 2003
	ErrCodeInvalidName       = 2004
	ErrCodeNotHost           = 2005
	ErrCodeNotEnoughPlayers  = 2006
	ErrCodePhaseMismatch     = 3001
	ErrCodePlayerDead        = 3002
	ErrCodePlayerOffline     = 3003
	ErrCodeEmptyRoom         = 3004
	ErrCodeAlreadyVoted      = 4001
	ErrCodeNotEligible       = 4002
	ErrCodeInvalidTarget     = 4003
	ErrCodeInsufficientPts   = 5001
	ErrCodeStationLocked     = 5002
	ErrCodeNoAccess          = 5003
	ErrCodeNotSaboteur       = 5004
	ErrCodeAbilityOnCooldown = 5005
	ErrCodeInvalidStation    = 5006
	ErrCodeServerMaintenance = 6001 // 服务器维护中
	ErrCodeReconnectFailed   = 6002
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:           "未知错误",
	ErrCodeInvalidMsg:        "无效的消息格式",
	ErrCodeRateLimit:         "请求过于频繁",
	ErrCodeRoomNotFound:      "房间不存在",
	ErrCodeRoomFull:          "房间已满",
	ErrCodeNotInRoom:         "您不在房间中",
	ErrCodeInvalidName:       "昵称不能为空",
	ErrCodeNotHost:           "只有房主可以开始游戏",
	ErrCodeNotEnoughPlayers:  "玩家人数不足",
	ErrCodePhaseMismatch:     "当前阶段不允许该操作",
	ErrCodePlayerDead:        "您已出局",
	ErrCodePlayerOffline:     "您已掉线",
	ErrCodeEmptyRoom:         "房间内没有玩家，无法分配身份",
	ErrCodeAlreadyVoted:      "您已经投过票了",
	ErrCodeNotEligible:       "您没有投票资格",
	ErrCodeInvalidTarget:     "无效的投票目标",
	ErrCodeInsufficientPts:   "破坏点数不足",
	ErrCodeStationLocked:     "任务站已被破坏",
	ErrCodeNoAccess:          "请先与任务站交互",
	ErrCodeNotSaboteur:       "只有破坏者可以执行该操作",
	ErrCodeAbilityOnCooldown: "技能冷却中",
	ErrCodeInvalidStation:    "无效的任务站",
	ErrCodeServerMaintenance: "服务器维护中",
	ErrCodeReconnectFailed:   "重连令牌无效或已过期",
}
