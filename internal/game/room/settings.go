package room

import (
	"math"
	"time"
)

// Settings 房间规则
type Settings struct {
	MinPlayers int
	MaxPlayers int
	TaskTarget int

	MeetingDuration time.Duration
	MeetingTick     time.Duration
	ResolutionDelay time.Duration

	FakeTaskPoints  int
	SabotageCost    int
	SabotageLock    time.Duration
	AbilityCooldown time.Duration
	AbilityEffect   time.Duration
	Doomsday        time.Duration // 0 表示关闭

	ReconnectGrace    time.Duration
	LockSweepInterval time.Duration

	MoveRate  float64 // 每秒最多转发的移动次数
	MoveBurst int

	WorldWidth  float64
	WorldHeight float64

	// Stations 合法任务站，为空时接受任意非空 ID
	Stations []string

	TaskProgressPersists  bool
	SabotagePointsPersist bool
}

// DefaultSettings 返回默认规则
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:            3,
		MaxPlayers:            10,
		TaskTarget:            10,
		MeetingDuration:       30 * time.Second,
		MeetingTick:           time.Second,
		ResolutionDelay:       5 * time.Second,
		FakeTaskPoints:        1,
		SabotageCost:          2,
		SabotageLock:          20 * time.Second,
		AbilityCooldown:       30 * time.Second,
		AbilityEffect:         10 * time.Second,
		ReconnectGrace:        20 * time.Second,
		LockSweepInterval:     time.Second,
		MoveRate:              20,
		MoveBurst:             5,
		WorldWidth:            2000,
		WorldHeight:           1500,
		SabotagePointsPersist: true,
	}
}

// normalize 修正非法取值
func (s Settings) normalize() Settings {
	d := DefaultSettings()
	if s.MinPlayers < 1 {
		s.MinPlayers = 1
	}
	if s.MaxPlayers < s.MinPlayers {
		s.MaxPlayers = max(s.MinPlayers, d.MaxPlayers)
	}
	if s.TaskTarget <= 0 {
		s.TaskTarget = d.TaskTarget
	}
	if s.MeetingDuration <= 0 {
		s.MeetingDuration = d.MeetingDuration
	}
	if s.MeetingTick <= 0 {
		s.MeetingTick = d.MeetingTick
	}
	if s.ResolutionDelay < 0 {
		s.ResolutionDelay = 0
	}
	if s.LockSweepInterval <= 0 {
		s.LockSweepInterval = d.LockSweepInterval
	}
	if s.MoveRate <= 0 {
		s.MoveRate = d.MoveRate
	}
	if s.MoveBurst <= 0 {
		s.MoveBurst = d.MoveBurst
	}
	if s.WorldWidth <= 0 {
		s.WorldWidth = d.WorldWidth
	}
	if s.WorldHeight <= 0 {
		s.WorldHeight = d.WorldHeight
	}
	return s
}

func (s Settings) validStation(id string) bool {
	if id == "" || len(id) > maxStationIDLength {
		return false
	}
	if len(s.Stations) == 0 {
		return true
	}
	for _, st := range s.Stations {
		if st == id {
			return true
		}
	}
	return false
}

// ceilSeconds 向上取整到秒，不足一秒的正时长计为 1 秒
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
