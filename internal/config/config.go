package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/palemoky/sabotage-station/internal/game/room"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 2000
	defaultWireFormat     = "json"
	defaultLogLevel       = "info"

	defaultMinPlayers        = 3
	defaultMaxPlayers        = 10
	defaultTaskTarget        = 10
	defaultMeetingDuration   = 30
	defaultMeetingTick       = 1
	defaultResolutionDelay   = 5
	defaultFakeTaskPoints    = 1
	defaultSabotageCost      = 2
	defaultSabotageLock      = 20
	defaultAbilityCooldown   = 30
	defaultAbilityEffect     = 10
	defaultReconnectGrace    = 20
	defaultRoomTimeout       = 10
	defaultLockSweepInterval = 1
	defaultMoveRate          = 20
	defaultMoveBurst         = 5
	defaultWorldWidth        = 2000
	defaultWorldHeight       = 1500
	defaultShutdownTimeout   = 30

	defaultRateLimitPerSecond = 10
	defaultRateLimitBurst     = 20
	defaultBanDuration        = 60
	defaultMessagePerSecond   = 60
	defaultMessageBurst       = 120
	defaultChatPerSecond      = 1
	defaultChatBurst          = 3
)

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Game     GameConfig     `yaml:"game"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	MaxConnections  int    `yaml:"max_connections"`
	WireFormat      string `yaml:"wire_format"`      // json | binary
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // 优雅关闭等待时间（秒）
}

// RedisConfig Redis 配置，Addr 为空时不启用
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// WorldConfig 世界边界
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// GameConfig 游戏配置，时间单位为秒（RoomTimeout 为分钟）
type GameConfig struct {
	MinPlayers        int         `yaml:"min_players"`
	MaxPlayers        int         `yaml:"max_players"`
	TaskTarget        int         `yaml:"task_target"`
	MeetingDuration   int         `yaml:"meeting_duration"`
	MeetingTick       int         `yaml:"meeting_tick"`
	ResolutionDelay   int         `yaml:"resolution_delay"`
	FakeTaskPoints    int         `yaml:"fake_task_points"`
	SabotageCost      int         `yaml:"sabotage_cost"`
	SabotageLock      int         `yaml:"sabotage_lock"`
	AbilityCooldown   int         `yaml:"ability_cooldown"`
	AbilityEffect     int         `yaml:"ability_effect"`
	Doomsday          int         `yaml:"doomsday"` // 0 表示关闭
	ReconnectGrace    int         `yaml:"reconnect_grace"`
	RoomTimeout       int         `yaml:"room_timeout"`
	LockSweepInterval int         `yaml:"lock_sweep_interval"`
	MoveRate          float64     `yaml:"move_rate"`
	MoveBurst         int         `yaml:"move_burst"`
	World             WorldConfig `yaml:"world"`
	Stations          []string    `yaml:"stations"`

	TaskProgressPersists  bool  `yaml:"task_progress_persists"`
	SabotagePointsPersist *bool `yaml:"sabotage_points_persist"`
}

// RateLimitConfig 连接速率限制
type RateLimitConfig struct {
	MaxPerSecond float64 `yaml:"max_per_second"`
	Burst        int     `yaml:"burst"`
	BanDuration  int     `yaml:"ban_duration"` // 秒
}

// LimitConfig 消息/聊天速率限制
type LimitConfig struct {
	MaxPerSecond float64 `yaml:"max_per_second"`
	Burst        int     `yaml:"burst"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins"`
	IPWhitelist    []string        `yaml:"ip_whitelist"` // 非空时只允许名单内的 IP
	IPBlacklist    []string        `yaml:"ip_blacklist"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	MessageLimit   LimitConfig     `yaml:"message_limit"`
	ChatLimit      LimitConfig     `yaml:"chat_limit"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// MeetingDurationTime 返回会议时长
func (c *GameConfig) MeetingDurationTime() time.Duration { return seconds(c.MeetingDuration) }

// ReconnectGraceDuration 返回断线重连宽限时长
func (c *GameConfig) ReconnectGraceDuration() time.Duration { return seconds(c.ReconnectGrace) }

// RoomTimeoutDuration 返回房间等待超时时长
func (c *GameConfig) RoomTimeoutDuration() time.Duration {
	return time.Duration(c.RoomTimeout) * time.Minute
}

// ShutdownTimeoutDuration 返回优雅关闭等待时长
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return seconds(c.ShutdownTimeout) }

// BanDurationTime 返回封禁时长
func (c *RateLimitConfig) BanDurationTime() time.Duration { return seconds(c.BanDuration) }

// RoomSettings 转换为房间规则
func (c *GameConfig) RoomSettings() room.Settings {
	s := room.Settings{
		MinPlayers:           c.MinPlayers,
		MaxPlayers:           c.MaxPlayers,
		TaskTarget:           c.TaskTarget,
		MeetingDuration:      seconds(c.MeetingDuration),
		MeetingTick:          seconds(c.MeetingTick),
		ResolutionDelay:      seconds(c.ResolutionDelay),
		FakeTaskPoints:       c.FakeTaskPoints,
		SabotageCost:         c.SabotageCost,
		SabotageLock:         seconds(c.SabotageLock),
		AbilityCooldown:      seconds(c.AbilityCooldown),
		AbilityEffect:        seconds(c.AbilityEffect),
		Doomsday:             seconds(c.Doomsday),
		ReconnectGrace:       seconds(c.ReconnectGrace),
		LockSweepInterval:    seconds(c.LockSweepInterval),
		MoveRate:             c.MoveRate,
		MoveBurst:            c.MoveBurst,
		WorldWidth:           c.World.Width,
		WorldHeight:          c.World.Height,
		Stations:             append([]string(nil), c.Stations...),
		TaskProgressPersists: c.TaskProgressPersists,
	}
	s.SabotagePointsPersist = c.SabotagePointsPersist == nil || *c.SabotagePointsPersist
	return s
}

// Load 加载配置文件，随后应用默认值和环境变量
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// Default 返回默认配置（同样应用环境变量）
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg
}

// LoadDotEnv 加载 .env 文件（不存在时忽略），已存在的环境变量不会被覆盖
func LoadDotEnv(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.Server.Host, defaultHost)
	setDefault(&cfg.Server.Port, defaultPort)
	setDefault(&cfg.Server.MaxConnections, defaultMaxConnections)
	setDefault(&cfg.Server.WireFormat, defaultWireFormat)
	setDefault(&cfg.Server.ShutdownTimeout, defaultShutdownTimeout)
	setDefault(&cfg.Log.Level, defaultLogLevel)

	g := &cfg.Game
	setDefault(&g.MinPlayers, defaultMinPlayers)
	setDefault(&g.MaxPlayers, defaultMaxPlayers)
	setDefault(&g.TaskTarget, defaultTaskTarget)
	setDefault(&g.MeetingDuration, defaultMeetingDuration)
	setDefault(&g.MeetingTick, defaultMeetingTick)
	setDefault(&g.ResolutionDelay, defaultResolutionDelay)
	setDefault(&g.FakeTaskPoints, defaultFakeTaskPoints)
	setDefault(&g.SabotageCost, defaultSabotageCost)
	setDefault(&g.SabotageLock, defaultSabotageLock)
	setDefault(&g.AbilityCooldown, defaultAbilityCooldown)
	setDefault(&g.AbilityEffect, defaultAbilityEffect)
	setDefault(&g.ReconnectGrace, defaultReconnectGrace)
	setDefault(&g.RoomTimeout, defaultRoomTimeout)
	setDefault(&g.LockSweepInterval, defaultLockSweepInterval)
	setDefault(&g.MoveRate, defaultMoveRate)
	setDefault(&g.MoveBurst, defaultMoveBurst)
	setDefault(&g.World.Width, defaultWorldWidth)
	setDefault(&g.World.Height, defaultWorldHeight)

	s := &cfg.Security
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}
	setDefault(&s.RateLimit.MaxPerSecond, defaultRateLimitPerSecond)
	setDefault(&s.RateLimit.Burst, defaultRateLimitBurst)
	setDefault(&s.RateLimit.BanDuration, defaultBanDuration)
	setDefault(&s.MessageLimit.MaxPerSecond, defaultMessagePerSecond)
	setDefault(&s.MessageLimit.Burst, defaultMessageBurst)
	setDefault(&s.ChatLimit.MaxPerSecond, defaultChatPerSecond)
	setDefault(&s.ChatLimit.Burst, defaultChatBurst)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SUS_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := os.LookupEnv("SUS_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SUS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SUS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SUS_ALLOWED_ORIGINS"); v != "" {
		cfg.Security.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SUS_IP_BLACKLIST"); v != "" {
		cfg.Security.IPBlacklist = strings.Split(v, ",")
	}
}
