package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/sabotage-station/internal/server/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, opts ...Option) *SessionManager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewSessionManager(ctx, opts...)
}

func TestSessionManager_CRUD(t *testing.T) {
	t.Parallel()
	sm := newTestManager(t)

	session := sm.CreateSession("p1", "Player1")
	require.NotNil(t, session)
	assert.Equal(t, "p1", session.PlayerID)
	assert.Equal(t, "Player1", session.PlayerName())
	assert.Len(t, session.ReconnectToken, 64)
	assert.True(t, session.IsOnline())

	assert.Same(t, session, sm.GetSession("p1"))
	assert.Same(t, session, sm.GetSessionByToken(session.ReconnectToken))

	sm.SetRoom("p1", "123456")
	sm.SetName("p1", "Renamed")
	assert.Equal(t, "123456", session.RoomCode())
	assert.Equal(t, "Renamed", session.PlayerName())

	sm.DeleteSession("p1")
	assert.Nil(t, sm.GetSession("p1"))
	assert.Nil(t, sm.GetSessionByToken(session.ReconnectToken))
	assert.Zero(t, sm.Count())
}

func TestSessionManager_TokensAreUnique(t *testing.T) {
	t.Parallel()
	sm := newTestManager(t)

	a := sm.CreateSession("p1", "A")
	b := sm.CreateSession("p2", "B")
	assert.NotEqual(t, a.ReconnectToken, b.ReconnectToken)

	// 同一玩家重新创建会话后旧令牌失效
	c := sm.CreateSession("p1", "A")
	assert.Nil(t, sm.GetSessionByToken(a.ReconnectToken))
	assert.False(t, sm.CanReconnect(a.ReconnectToken, "p1"))
	assert.True(t, sm.CanReconnect(c.ReconnectToken, "p1"))
}

func TestSessionManager_OnlineStatus(t *testing.T) {
	t.Parallel()
	sm := newTestManager(t)
	session := sm.CreateSession("p1", "Player1")

	assert.True(t, sm.IsOnline("p1"))
	assert.True(t, session.DisconnectedAt().IsZero())

	sm.SetOffline("p1")
	assert.False(t, sm.IsOnline("p1"))
	assert.False(t, session.DisconnectedAt().IsZero())

	sm.SetOnline("p1")
	assert.True(t, sm.IsOnline("p1"))
	assert.True(t, session.DisconnectedAt().IsZero())

	assert.False(t, sm.IsOnline("ghost"))
	assert.NotPanics(t, func() { sm.SetOffline("ghost") })
}

func TestSessionManager_CanReconnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(sm *SessionManager, clock *testClock) (token, playerID string)
		wantAllow bool
	}{
		{
			name: "valid reconnection (online)",
			setup: func(sm *SessionManager, _ *testClock) (string, string) {
				return sm.CreateSession("p1", "Player1").ReconnectToken, "p1"
			},
			wantAllow: true,
		},
		{
			name: "valid reconnection (offline within grace)",
			setup: func(sm *SessionManager, clock *testClock) (string, string) {
				session := sm.CreateSession("p1", "Player1")
				sm.SetOffline("p1")
				clock.Advance(19 * time.Second)
				return session.ReconnectToken, "p1"
			},
			wantAllow: true,
		},
		{
			name: "invalid token",
			setup: func(sm *SessionManager, _ *testClock) (string, string) {
				sm.CreateSession("p1", "Player1")
				return "wrong-token", "p1"
			},
			wantAllow: false,
		},
		{
			name: "wrong player ID",
			setup: func(sm *SessionManager, _ *testClock) (string, string) {
				return sm.CreateSession("p1", "Player1").ReconnectToken, "p2"
			},
			wantAllow: false,
		},
		{
			name: "grace expired",
			setup: func(sm *SessionManager, clock *testClock) (string, string) {
				session := sm.CreateSession("p1", "Player1")
				sm.SetOffline("p1")
				clock.Advance(21 * time.Second)
				return session.ReconnectToken, "p1"
			},
			wantAllow: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &testClock{now: time.Unix(1_700_000_000, 0)}
			sm := newTestManager(t, WithGrace(20*time.Second), WithClock(clock.Now))
			token, playerID := tt.setup(sm, clock)
			assert.Equal(t, tt.wantAllow, sm.CanReconnect(token, playerID))
		})
	}
}

func TestSessionManager_Cleanup(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	sm := newTestManager(t, WithClock(clock.Now))

	sm.CreateSession("online", "A")
	sm.CreateSession("offline", "B")
	sm.SetOffline("offline")

	clock.Advance(sessionExpireTime - time.Second)
	sm.cleanup()
	assert.Equal(t, 2, sm.Count())

	clock.Advance(2 * time.Second)
	sm.cleanup()
	assert.Equal(t, 1, sm.Count())
	assert.NotNil(t, sm.GetSession("online"))
	assert.Nil(t, sm.GetSession("offline"))
}

func TestSessionManager_RedisMirror(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := storage.NewRedisStore(client)

	sm := newTestManager(t, WithStore(store))
	session := sm.CreateSession("p1", "Player1")
	sm.SetRoom("p1", "654321")

	ctx := context.Background()
	data, err := store.LoadSession(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "654321", data.RoomCode)
	assert.Equal(t, "Player1", data.PlayerName)
	assert.True(t, data.IsOnline)

	// 令牌不会写入 Redis
	for _, key := range mr.Keys() {
		fields, err := mr.HKeys(key)
		require.NoError(t, err)
		for _, field := range fields {
			assert.NotEqual(t, session.ReconnectToken, mr.HGet(key, field))
		}
	}

	sm.DeleteSession("p1")
	data, err = store.LoadSession(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, data)
}
