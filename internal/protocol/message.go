package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgReconnect MessageType = "reconnect" // 断线重连
	MsgPing      MessageType = "ping"      // 心跳 ping

	// 房间操作
	MsgCreateRoom  MessageType = "create_room"   // 创建房间
	MsgJoinRoom    MessageType = "join_room"     // 加入房间
	MsgLeaveRoom   MessageType = "leave_room"    // 离开房间
	MsgQuickMatch  MessageType = "quick_match"   // 快速匹配
	MsgStartRound  MessageType = "start_round"   // 房主开始游戏
	MsgGetRoomList MessageType = "get_room_list" // 获取房间列表

	// 游戏操作
	MsgMove         MessageType = "move"          // 移动
	MsgCallMeeting  MessageType = "call_meeting"  // 召开紧急会议
	MsgReportBody   MessageType = "report_body"   // 报告尸体
	MsgVote         MessageType = "vote"          // 投票
	MsgTaskInteract MessageType = "task_interact" // 与任务站交互
	MsgTaskComplete MessageType = "task_complete" // 完成任务
	MsgSabotage     MessageType = "sabotage"      // 破坏任务站
	MsgUseAbility   MessageType = "use_ability"   // 使用技能
	MsgChat         MessageType = "chat"          // 聊天

	// 统计
	MsgGetStats       MessageType = "get_stats"       // 获取个人统计
	MsgGetLeaderboard MessageType = "get_leaderboard" // 获取排行榜
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected     MessageType = "connected"      // 连接成功
	MsgReconnected   MessageType = "reconnected"    // 重连成功
	MsgPong          MessageType = "pong"           // 心跳 pong
	MsgPlayerOffline MessageType = "player_offline" // 玩家掉线通知
	MsgPlayerOnline  MessageType = "player_online"  // 玩家上线通知

	// 房间相关
	MsgRoomCreated  MessageType = "room_created"     // 房间创建成功
	MsgRoomJoined   MessageType = "room_joined"      // 加入房间成功
	MsgPlayerJoined MessageType = "player_joined"    // 其他玩家加入
	MsgPlayerLeft   MessageType = "player_left"      // 玩家离开
	MsgHostChanged  MessageType = "host_changed"     // 房主变更
	MsgRoomList     MessageType = "room_list_result" // 房间列表结果

	// 游戏流程
	MsgRoleAssigned      MessageType = "role_assigned"       // 私有：身份分配
	MsgRoundStarted      MessageType = "round_started"       // 回合开始
	MsgPlayerMoved       MessageType = "player_moved"        // 玩家位置更新
	MsgMeetingStarted    MessageType = "meeting_started"     // 会议开始
	MsgMeetingTick       MessageType = "meeting_tick"        // 会议倒计时
	MsgVoteRecorded      MessageType = "vote_recorded"       // 某玩家已投票（不含目标）
	MsgMeetingEnded      MessageType = "meeting_ended"       // 会议结束，每场会议恰好一次
	MsgTaskAccess        MessageType = "task_access"         // 私有：任务访问许可
	MsgTaskAccessBlocked MessageType = "task_access_blocked" // 私有：任务站被锁定
	MsgTaskProgress      MessageType = "task_progress"       // 任务总进度
	MsgSabotagePoints    MessageType = "sabotage_points"     // 私有：破坏点数
	MsgStationSabotaged  MessageType = "station_sabotaged"   // 任务站被破坏
	MsgStationRestored   MessageType = "station_restored"    // 任务站恢复
	MsgAbilityUsed       MessageType = "ability_used"        // 私有：技能已使用
	MsgAbilityEffect     MessageType = "ability_effect"      // 私有：受到技能影响
	MsgGameOver          MessageType = "game_over"           // 游戏结束

	// 统计
	MsgStatsResult       MessageType = "stats_result"       // 个人统计结果
	MsgLeaderboardResult MessageType = "leaderboard_result" // 排行榜结果

	// 错误
	MsgError MessageType = "error" // 错误消息
)
