//go:build !production

package testutil

import (
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/sabotage-station/internal/protocol"
)

// MockClient 实现 types.ClientInterface 的 mock
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) SetID(id string) {
	m.Called(id)
}

func (m *MockClient) GetName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) SetName(name string) {
	m.Called(name)
}

func (m *MockClient) GetRoom() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) SetRoom(roomCode string) {
	m.Called(roomCode)
}

func (m *MockClient) SendMessage(msg *protocol.Message) {
	m.Called(msg)
}

func (m *MockClient) Close() {
	m.Called()
}

// SimpleClient 简单的并发安全客户端，记录收到的全部消息
type SimpleClient struct {
	ID string

	mu       sync.Mutex
	name     string
	roomCode string
	messages []*protocol.Message
	closed   bool
}

// NewSimpleClient 创建 SimpleClient
func NewSimpleClient(id, name string) *SimpleClient {
	return &SimpleClient{ID: id, name: name}
}

func (c *SimpleClient) GetID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ID
}

func (c *SimpleClient) SetID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ID = id
}

func (c *SimpleClient) GetName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *SimpleClient) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

func (c *SimpleClient) GetRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *SimpleClient) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

func (c *SimpleClient) SendMessage(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *SimpleClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed 是否已被关闭
func (c *SimpleClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SentMessages 返回收到的消息副本
func (c *SimpleClient) SentMessages() []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*protocol.Message(nil), c.messages...)
}

// MessagesOfType 返回指定类型的消息
func (c *SimpleClient) MessagesOfType(t protocol.MessageType) []*protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*protocol.Message
	for _, msg := range c.messages {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// CountOf 返回指定类型消息的数量
func (c *SimpleClient) CountOf(t protocol.MessageType) int {
	return len(c.MessagesOfType(t))
}

// LastOfType 返回指定类型的最后一条消息，没有时返回 nil
func (c *SimpleClient) LastOfType(t protocol.MessageType) *protocol.Message {
	msgs := c.MessagesOfType(t)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset 清空已收到的消息
func (c *SimpleClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// DecodeLast 将指定类型的最后一条消息解码到 v，没有时返回 false
func (c *SimpleClient) DecodeLast(t protocol.MessageType, v any) bool {
	msg := c.LastOfType(t)
	if msg == nil {
		return false
	}
	return json.Unmarshal(msg.Payload, v) == nil
}
