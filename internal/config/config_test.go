package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()

	content := `
server:
  host: "127.0.0.1"
  port: 8080
  max_connections: 5000
  wire_format: binary

redis:
  addr: "redis:6379"
  password: "secret"
  db: 1

log:
  level: debug
  pretty: true

game:
  min_players: 4
  max_players: 8
  task_target: 20
  meeting_duration: 45
  sabotage_lock: 15
  doomsday: 600
  world:
    width: 800
    height: 600
  stations: [reactor, o2, comms]
  task_progress_persists: true
  sabotage_points_persist: false

security:
  allowed_origins:
    - "http://localhost:3000"
    - "https://example.com"
  ip_whitelist: ["10.0.0.1"]
  ip_blacklist: ["203.0.113.7", "203.0.113.8"]
  rate_limit:
    max_per_second: 20
    burst: 40
    ban_duration: 120
  message_limit:
    max_per_second: 50
  chat_limit:
    max_per_second: 2
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5000, cfg.Server.MaxConnections)
	assert.Equal(t, "binary", cfg.Server.WireFormat)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 4, cfg.Game.MinPlayers)
	assert.Equal(t, 20, cfg.Game.TaskTarget)
	assert.Equal(t, []string{"reactor", "o2", "comms"}, cfg.Game.Stations)
	assert.Len(t, cfg.Security.AllowedOrigins, 2)
	assert.Equal(t, []string{"10.0.0.1"}, cfg.Security.IPWhitelist)
	assert.Equal(t, []string{"203.0.113.7", "203.0.113.8"}, cfg.Security.IPBlacklist)
	assert.Equal(t, 120*time.Second, cfg.Security.RateLimit.BanDurationTime())

	s := cfg.Game.RoomSettings()
	assert.Equal(t, 45*time.Second, s.MeetingDuration)
	assert.Equal(t, 15*time.Second, s.SabotageLock)
	assert.Equal(t, 10*time.Minute, s.Doomsday)
	assert.InDelta(t, 800.0, s.WorldWidth, 0)
	assert.InDelta(t, 600.0, s.WorldHeight, 0)
	assert.True(t, s.TaskProgressPersists)
	assert.False(t, s.SabotagePointsPersist)
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	cfg, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "invalid: yaml: :::"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, defaultHost, cfg.Server.Host)
	assert.Equal(t, defaultPort, cfg.Server.Port)
	assert.Equal(t, defaultMaxConnections, cfg.Server.MaxConnections)
	assert.Equal(t, defaultWireFormat, cfg.Server.WireFormat)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, defaultMinPlayers, cfg.Game.MinPlayers)
	assert.Equal(t, defaultMaxPlayers, cfg.Game.MaxPlayers)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)

	s := cfg.Game.RoomSettings()
	assert.Equal(t, 30*time.Second, s.MeetingDuration)
	assert.Equal(t, time.Second, s.MeetingTick)
	assert.Equal(t, 2, s.SabotageCost)
	assert.Equal(t, 20*time.Second, s.SabotageLock)
	assert.Equal(t, time.Duration(0), s.Doomsday)
	assert.False(t, s.TaskProgressPersists)
	assert.True(t, s.SabotagePointsPersist)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, defaultHost, cfg.Server.Host)
	assert.Equal(t, defaultPort, cfg.Server.Port)
	assert.Equal(t, defaultTaskTarget, cfg.Game.TaskTarget)
}

func TestGameConfig_DurationMethods(t *testing.T) {
	t.Parallel()

	cfg := &GameConfig{MeetingDuration: 30, ReconnectGrace: 20, RoomTimeout: 10}

	assert.Equal(t, 30*time.Second, cfg.MeetingDurationTime())
	assert.Equal(t, 20*time.Second, cfg.ReconnectGraceDuration())
	assert.Equal(t, 10*time.Minute, cfg.RoomTimeoutDuration())

	srv := &ServerConfig{ShutdownTimeout: 15}
	assert.Equal(t, 15*time.Second, srv.ShutdownTimeoutDuration())
}

func TestLoadFromEnv(t *testing.T) {
	// 修改环境变量，不能并行
	t.Setenv("SUS_HOST", "env-host")
	t.Setenv("SUS_PORT", "9999")
	t.Setenv("SUS_REDIS_ADDR", "env-redis:6380")
	t.Setenv("SUS_LOG_LEVEL", "warn")
	t.Setenv("SUS_ALLOWED_ORIGINS", "http://a.com,http://b.com")
	t.Setenv("SUS_IP_BLACKLIST", "1.2.3.4,5.6.7.8")

	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Server.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "env-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8"}, cfg.Security.IPBlacklist)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SUS_DOTENV_PROBE=from-file\n"), 0o600))
	t.Setenv("SUS_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("SUS_DOTENV_PROBE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "from-file", os.Getenv("SUS_DOTENV_PROBE"))

	// 没有可用文件时忽略
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
