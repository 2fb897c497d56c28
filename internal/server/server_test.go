package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/sabotage-station/internal/config"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Redis.Addr = ""
	cfg.Server.MaxConnections = 8
	cfg.Security.RateLimit.MaxPerSecond = 100
	cfg.Security.RateLimit.Burst = 100
	if mutate != nil {
		mutate(cfg)
	}

	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil 读取消息直到出现指定类型
func readUntil(t *testing.T, conn *websocket.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg *protocol.Message
		if kind == websocket.BinaryMessage {
			msg, err = codec.DecodeBinary(data)
		} else {
			msg, err = codec.Decode(data)
		}
		require.NoError(t, err)
		if msg.Type == want {
			return msg
		}
	}
}

func write(t *testing.T, conn *websocket.Conn, typ protocol.MessageType, payload any) {
	t.Helper()
	data, err := codec.Encode(codec.MustNewMessage(typ, payload))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func decode[T any](t *testing.T, msg *protocol.Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Maintenance)
}

func TestServer_ConnectAndCreateRoom(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	connected := decode[protocol.ConnectedPayload](t, readUntil(t, conn, protocol.MsgConnected))
	assert.NotEmpty(t, connected.PlayerID)
	assert.Len(t, connected.ReconnectToken, 64)

	write(t, conn, protocol.MsgCreateRoom, protocol.CreateRoomPayload{Name: "Alice"})
	created := decode[protocol.RoomCreatedPayload](t, readUntil(t, conn, protocol.MsgRoomCreated))
	assert.Len(t, created.Room.Code, 6)
	assert.Equal(t, connected.PlayerID, created.Room.HostID)

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var list protocol.RoomListResultPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, created.Room.Code, list.Rooms[0].RoomCode)

	assert.Equal(t, 1, s.GetOnlineCount())
}

func TestServer_InvalidFrame(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, protocol.MsgConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	e := decode[protocol.ErrorPayload](t, readUntil(t, conn, protocol.MsgError))
	assert.Equal(t, protocol.ErrCodeInvalidMsg, e.Code)
}

func TestServer_BinaryWireFormat(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.WireFormat = string(codec.FormatBinary)
	})
	conn := dial(t, ts)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	msg, err := codec.DecodeBinary(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgConnected, msg.Type)

	// 二进制帧同样可以作为请求发送
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage,
		codec.EncodeBinary(codec.MustNewMessage(protocol.MsgPing, protocol.PingPayload{Timestamp: 7}))))
	pong := decode[protocol.PongPayload](t, readUntil(t, conn, protocol.MsgPong))
	assert.Equal(t, int64(7), pong.ClientTimestamp)
}

func TestServer_Reconnect(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, nil)

	first := dial(t, ts)
	connected := decode[protocol.ConnectedPayload](t, readUntil(t, first, protocol.MsgConnected))
	write(t, first, protocol.MsgCreateRoom, protocol.CreateRoomPayload{Name: "Alice"})
	created := decode[protocol.RoomCreatedPayload](t, readUntil(t, first, protocol.MsgRoomCreated))
	require.NoError(t, first.Close())

	second := dial(t, ts)
	readUntil(t, second, protocol.MsgConnected)
	write(t, second, protocol.MsgReconnect, protocol.ReconnectPayload{
		Token:    connected.ReconnectToken,
		PlayerID: connected.PlayerID,
	})

	rec := decode[protocol.ReconnectedPayload](t, readUntil(t, second, protocol.MsgReconnected))
	assert.Equal(t, connected.PlayerID, rec.PlayerID)
	require.NotNil(t, rec.Room)
	assert.Equal(t, created.Room.Code, rec.Room.Code)
}

func TestServer_MaintenanceRejectsConnections(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, nil)
	s.EnterMaintenanceMode()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, s.IsMaintenanceMode())
}

func TestServer_OriginRejected(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.AllowedOrigins = []string{"https://game.example.com"}
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_GracefulShutdownClosesRooms(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, protocol.MsgConnected)
	write(t, conn, protocol.MsgCreateRoom, protocol.CreateRoomPayload{Name: "Alice"})
	readUntil(t, conn, protocol.MsgRoomCreated)

	s.GracefulShutdown(time.Second)

	assert.True(t, s.IsMaintenanceMode())
	assert.Eventually(t, func() bool { return s.roomManager.RoomCount() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestServer_IPBlacklistRejected(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.IPBlacklist = []string{"127.0.0.1"}
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_IPWhitelistAllowsListed(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.IPWhitelist = []string{"127.0.0.1"}
	})

	conn := dial(t, ts)
	readUntil(t, conn, protocol.MsgConnected)
}
