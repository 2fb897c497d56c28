package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/palemoky/sabotage-station/internal/logger"
	"github.com/palemoky/sabotage-station/internal/protocol"
	"github.com/palemoky/sabotage-station/internal/protocol/codec"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	sendBufferSize    = 256
	disconnectTimeout = 3 * time.Second
)

type outbound struct {
	kind int
	data []byte
}

// Client 一个 WebSocket 连接
type Client struct {
	IP string

	server *Server
	conn   *websocket.Conn
	send   chan outbound
	format codec.Format

	mu     sync.RWMutex
	id     string
	name   string
	room   string
	closed bool
}

// NewClient 创建新客户端
func NewClient(s *Server, conn *websocket.Conn, format codec.Format) *Client {
	return &Client{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		send:   make(chan outbound, sendBufferSize),
		format: format,
	}
}

// ReadPump 从 WebSocket 读取消息，单个连接上的消息按顺序处理
func (c *Client) ReadPump() {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		c.handleDisconnect()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client", c.GetID()).Msg("读取错误")
			}
			return
		}

		allowed, warning := c.server.messageLimiter.AllowMessage(c.GetID())
		if !allowed {
			log.Warn().Str("client", c.GetID()).Str("ip", c.IP).Msg("⚠️ 消息过于频繁")
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "消息发送过于频繁"))
			if c.server.messageLimiter.GetWarningCount(c.GetID()) > maxMessageWarnings {
				log.Warn().Str("client", c.GetID()).Msg("🚫 多次超速，断开连接")
				return
			}
			continue
		}
		if warning {
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "请求过于频繁，请放慢速度"))
		}

		var msg *protocol.Message
		if kind == websocket.BinaryMessage {
			msg, err = codec.DecodeBinary(data)
		} else {
			msg, err = codec.Decode(data)
		}
		if err != nil {
			log.Debug().Err(err).Str("client", c.GetID()).Msg("消息解析错误")
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case out, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(out.kind, out.data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端，缓冲区满时关闭连接
func (c *Client) SendMessage(msg *protocol.Message) {
	data, err := codec.EncodeFrame(c.format, msg)
	if err != nil {
		log.Error().Err(err).Str("type", string(msg.Type)).Msg("消息编码错误")
		return
	}
	kind := websocket.TextMessage
	if c.format == codec.FormatBinary {
		kind = websocket.BinaryMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- outbound{kind: kind, data: data}:
	default:
		log.Warn().Str("client", c.id).Msg("发送缓冲区已满，关闭连接")
		c.closed = true
		close(c.send)
	}
}

// handleDisconnect 处理断开连接
// 连接已被重连接管时不做任何处理
func (c *Client) handleDisconnect() {
	if !c.server.unregisterClient(c) {
		return
	}

	id := c.GetID()
	c.server.sessionManager.SetOffline(id)

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	c.server.roomManager.Disconnect(ctx, c)

	c.server.messageLimiter.RemoveClient(id)
	c.server.chatLimiter.RemoveClient(id)
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// GetID 获取玩家 ID
func (c *Client) GetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// SetID 重连时接管原玩家 ID
func (c *Client) SetID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Client) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SetRoom 设置客户端所在房间
func (c *Client) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = code
}

// GetRoom 获取客户端所在房间
func (c *Client) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}
