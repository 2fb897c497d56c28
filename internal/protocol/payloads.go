package protocol

// --- 客户端请求 Payloads ---

// ReconnectPayload 断线重连请求
type ReconnectPayload struct {
	Token    string `json:"token"`     // 重连令牌
	PlayerID string `json:"player_id"` // 玩家 ID
}

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// CreateRoomPayload 创建房间请求
type CreateRoomPayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// JoinRoomPayload 加入房间请求
type JoinRoomPayload struct {
	RoomCode string `json:"room_code"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// RoomPayload 只携带房间号的请求（开始、会议、报告、离开）
type RoomPayload struct {
	RoomCode string `json:"room_code"`
}

// MovePayload 移动请求
type MovePayload struct {
	RoomCode string  `json:"room_code"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// VotePayload 投票请求，TargetID 为玩家 ID 或 SkipVote
type VotePayload struct {
	RoomCode string `json:"room_code"`
	TargetID string `json:"target_id"`
}

// StationPayload 任务站相关请求（交互、完成、破坏）
type StationPayload struct {
	RoomCode  string `json:"room_code"`
	StationID string `json:"station_id"`
}

// UseAbilityPayload 使用技能请求；TargetID 为空时作用于所有存活船员
type UseAbilityPayload struct {
	RoomCode    string `json:"room_code"`
	AbilityType string `json:"ability_type"`
	TargetID    string `json:"target_id,omitempty"`
}

// GetLeaderboardPayload 获取排行榜请求
type GetLeaderboardPayload struct {
	Limit int `json:"limit"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	PlayerID       string `json:"player_id"`
	ReconnectToken string `json:"reconnect_token"` // 重连令牌
}

// ReconnectedPayload 重连成功响应
type ReconnectedPayload struct {
	PlayerID  string        `json:"player_id"`
	Room      *RoomSnapshot `json:"room,omitempty"`      // 如果仍在房间中
	Role      string        `json:"role,omitempty"`      // 自己的身份（游戏中）
	Teammates []string      `json:"teammates,omitempty"` // 仅发给破坏者，其他破坏者 ID
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"` // 客户端发送的时间戳
	ServerTimestamp int64 `json:"server_timestamp"` // 服务器时间戳（毫秒）
}

// PlayerOfflinePayload 玩家掉线通知
type PlayerOfflinePayload struct {
	PlayerID string `json:"player_id"`
	Timeout  int    `json:"timeout"` // 等待重连超时（秒）
}

// PlayerOnlinePayload 玩家上线通知
type PlayerOnlinePayload struct {
	PlayerID string `json:"player_id"`
}

// RoomCreatedPayload 房间创建成功
type RoomCreatedPayload struct {
	Room RoomSnapshot `json:"room"`
}

// RoomJoinedPayload 加入房间成功
type RoomJoinedPayload struct {
	Room RoomSnapshot `json:"room"`
}

// PlayerJoinedPayload 其他玩家加入
type PlayerJoinedPayload struct {
	Player PlayerInfo `json:"player"`
}

// PlayerLeftPayload 玩家离开
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

// HostChangedPayload 房主变更
type HostChangedPayload struct {
	HostID string `json:"host_id"`
}

// RoleAssignedPayload 身份分配（私有）
type RoleAssignedPayload struct {
	Role string `json:"role"`
	// Teammates 仅发给破坏者，包含其他破坏者 ID
	Teammates []string `json:"teammates,omitempty"`
}

// RoundStartedPayload 回合开始
type RoundStartedPayload struct {
	Round        int          `json:"round"`
	Players      []PlayerInfo `json:"players"`
	TaskProgress int          `json:"task_progress"`
	TaskTarget   int          `json:"task_target"`
}

// PlayerMovedPayload 玩家位置更新
type PlayerMovedPayload struct {
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// MeetingStartedPayload 会议开始
type MeetingStartedPayload struct {
	CallerID string   `json:"caller_id"`
	Reason   string   `json:"reason"`   // meeting / report
	Voters   []string `json:"voters"`   // 有投票资格的玩家
	Targets  []string `json:"targets"`  // 可被投票的玩家
	Duration int      `json:"duration"` // 会议时长（秒）
}

// MeetingTickPayload 会议倒计时
type MeetingTickPayload struct {
	Remaining int `json:"remaining"` // 剩余秒数
}

// VoteRecordedPayload 投票记录（不公开目标）
type VoteRecordedPayload struct {
	VoterID string `json:"voter_id"`
}

// MeetingEndedPayload 会议结束；EjectedID 为空表示无人出局
type MeetingEndedPayload struct {
	EjectedID   string         `json:"ejected_id,omitempty"`
	EjectedRole string         `json:"ejected_role,omitempty"`
	Tally       map[string]int `json:"tally"`
	Tie         bool           `json:"tie"`
}

// TaskAccessPayload 任务访问许可（私有）
type TaskAccessPayload struct {
	StationID string `json:"station_id"`
}

// TaskAccessBlockedPayload 任务站被锁定（私有，显式拒绝）
type TaskAccessBlockedPayload struct {
	StationID      string `json:"station_id"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// TaskProgressPayload 任务总进度（公开，不含完成者）
type TaskProgressPayload struct {
	Progress int `json:"progress"`
	Target   int `json:"target"`
}

// SabotagePointsPayload 破坏点数（私有）
type SabotagePointsPayload struct {
	Points int `json:"points"`
}

// StationSabotagedPayload 任务站被破坏（公开）
type StationSabotagedPayload struct {
	StationID string `json:"station_id"`
	ExpiresIn int    `json:"expires_in"` // 秒
}

// StationRestoredPayload 任务站恢复（公开）
type StationRestoredPayload struct {
	StationID string `json:"station_id"`
}

// AbilityUsedPayload 技能使用确认（私有，发给破坏者）
type AbilityUsedPayload struct {
	AbilityType string `json:"ability_type"`
	Cooldown    int    `json:"cooldown"` // 秒
}

// AbilityEffectPayload 技能效果通知（私有，发给受影响的船员）
type AbilityEffectPayload struct {
	AbilityType string `json:"ability_type"`
	Duration    int    `json:"duration"` // 秒
}

// GameOverPayload 游戏结束
type GameOverPayload struct {
	Winner string            `json:"winner"` // crew / saboteur
	Reason string            `json:"reason"`
	Roles  map[string]string `json:"roles"`
	Round  int               `json:"round"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatsResultPayload 个人统计结果
type StatsResultPayload struct {
	PlayerID      string  `json:"player_id"`
	PlayerName    string  `json:"player_name"`
	TotalGames    int     `json:"total_games"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	CrewGames     int     `json:"crew_games"`
	CrewWins      int     `json:"crew_wins"`
	SaboteurGames int     `json:"saboteur_games"`
	SaboteurWins  int     `json:"saboteur_wins"`
	Score         int     `json:"score"`
	Rank          int     `json:"rank"`
}

// LeaderboardResultPayload 排行榜结果
type LeaderboardResultPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Score      int     `json:"score"`
	Wins       int     `json:"wins"`
	WinRate    float64 `json:"win_rate"`
}

// RoomListResultPayload 房间列表结果
type RoomListResultPayload struct {
	Rooms []RoomListItem `json:"rooms"`
}

// RoomListItem 房间列表项
type RoomListItem struct {
	RoomCode    string `json:"room_code"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

// ChatPayload 聊天消息
type ChatPayload struct {
	RoomCode string `json:"room_code,omitempty"`
	SenderID string `json:"sender_id,omitempty"` // 服务端填充
	Content  string `json:"content"`
	Time     int64  `json:"time,omitempty"` // 服务端填充
}

// --- 通用数据结构 ---

// RoomSnapshot 房间快照（不包含任何身份信息）
type RoomSnapshot struct {
	Code         string       `json:"code"`
	Phase        string       `json:"phase"`
	HostID       string       `json:"host_id"`
	Round        int          `json:"round"`
	TaskProgress int          `json:"task_progress"`
	TaskTarget   int          `json:"task_target"`
	Players      []PlayerInfo `json:"players"`
}

// PlayerInfo 玩家公开信息
type PlayerInfo struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar string  `json:"avatar"`
	Alive  bool    `json:"alive"`
	Online bool    `json:"online"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
