package server

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

// RateLimiter 连接速率限制器（按 IP），超限后封禁一段时间
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex

	limit       rate.Limit
	burst       int
	banDuration time.Duration
	now         func() time.Time
}

type visitor struct {
	limiter     *rate.Limiter
	lastSeen    time.Time
	bannedUntil time.Time
}

// NewRateLimiter 创建速率限制器，ctx 结束时停止清理协程
func NewRateLimiter(ctx context.Context, perSecond float64, burst int, banDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       rate.Limit(perSecond),
		burst:       max(burst, 1),
		banDuration: banDuration,
		now:         time.Now,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	if now.Before(v.bannedUntil) {
		return false
	}
	if !v.limiter.AllowN(now, 1) {
		v.bannedUntil = now.Add(rl.banDuration)
		log.Warn().Str("ip", ip).Dur("ban", rl.banDuration).Msg("⚠️ IP 请求过于频繁，暂时封禁")
		return false
	}
	return true
}

// IsBanned 检查 IP 是否被封禁
func (rl *RateLimiter) IsBanned(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	return ok && rl.now().Before(v.bannedUntil)
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL && now.After(v.bannedUntil) {
			delete(rl.visitors, ip)
		}
	}
}

// --- 来源验证 ---

// OriginChecker 来源验证器
type OriginChecker struct {
	allowedOrigins map[string]bool
	allowAll       bool
}

// NewOriginChecker 创建来源验证器
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{
		allowedOrigins: make(map[string]bool),
	}

	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			oc.allowAll = true
			return oc
		}
		oc.allowedOrigins[strings.ToLower(origin)] = true
	}

	return oc
}

// Check 检查来源是否允许
func (oc *OriginChecker) Check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		// 没有 Origin 头，可能是同源请求或本地客户端
		return true
	}

	return oc.allowedOrigins[strings.ToLower(origin)]
}

// --- IP 白名单/黑名单 ---

// IPFilter IP 过滤器
type IPFilter struct {
	whitelist map[string]bool
	blacklist map[string]bool
	mu        sync.RWMutex
}

// NewIPFilter 创建 IP 过滤器，白名单非空时只允许名单内的 IP
func NewIPFilter(whitelist, blacklist []string) *IPFilter {
	f := &IPFilter{
		whitelist: make(map[string]bool),
		blacklist: make(map[string]bool),
	}
	for _, ip := range whitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			f.AddToWhitelist(ip)
		}
	}
	for _, ip := range blacklist {
		if ip = strings.TrimSpace(ip); ip != "" {
			f.AddToBlacklist(ip)
		}
	}
	return f
}

// AddToWhitelist 添加到白名单
func (f *IPFilter) AddToWhitelist(ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whitelist[ip] = true
}

// AddToBlacklist 添加到黑名单
func (f *IPFilter) AddToBlacklist(ip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[ip] = true
}

// IsAllowed 检查 IP 是否允许
func (f *IPFilter) IsAllowed(ip string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.whitelist) > 0 && !f.whitelist[ip] {
		return false
	}
	return !f.blacklist[ip]
}

// GetClientIP 获取客户端真实 IP
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// 取第一个 IP（最原始的客户端）
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// --- 消息速率限制 ---

// maxMessageWarnings 超过后断开连接
const maxMessageWarnings = 5

// MessageRateLimiter 消息速率限制器（针对已连接的客户端）
type MessageRateLimiter struct {
	clients map[string]*messageRate
	mu      sync.Mutex

	limit rate.Limit
	burst int
	now   func() time.Time
}

type messageRate struct {
	limiter  *rate.Limiter
	warnings int
}

// NewMessageRateLimiter 创建消息速率限制器
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	return &MessageRateLimiter{
		clients: make(map[string]*messageRate),
		limit:   rate.Limit(perSecond),
		burst:   max(burst, 1),
		now:     time.Now,
	}
}

// AllowMessage 检查是否允许处理消息
// 令牌余量低于四分之一时返回 warning
func (ml *MessageRateLimiter) AllowMessage(clientID string) (allowed, warning bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	mr, ok := ml.clients[clientID]
	if !ok {
		mr = &messageRate{limiter: rate.NewLimiter(ml.limit, ml.burst)}
		ml.clients[clientID] = mr
	}

	if !mr.limiter.AllowN(now, 1) {
		mr.warnings++
		return false, true
	}
	return true, mr.limiter.TokensAt(now) < float64(ml.burst)/4
}

// GetWarningCount 获取警告次数
func (ml *MessageRateLimiter) GetWarningCount(clientID string) int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if mr, ok := ml.clients[clientID]; ok {
		return mr.warnings
	}
	return 0
}

// RemoveClient 移除客户端记录
func (ml *MessageRateLimiter) RemoveClient(clientID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.clients, clientID)
}

// --- 聊天速率限制 ---

// ChatRateLimiter 聊天速率限制器，实现 types.ChatLimiter
type ChatRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      sync.Mutex

	limit rate.Limit
	burst int
	now   func() time.Time
}

// NewChatRateLimiter 创建聊天速率限制器
func NewChatRateLimiter(perSecond float64, burst int) *ChatRateLimiter {
	return &ChatRateLimiter{
		clients: make(map[string]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   max(burst, 1),
		now:     time.Now,
	}
}

// AllowChat 检查是否允许发言，拒绝时返回需要等待的提示
func (cl *ChatRateLimiter) AllowChat(clientID string) (allowed bool, reason string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	l, ok := cl.clients[clientID]
	if !ok {
		l = rate.NewLimiter(cl.limit, cl.burst)
		cl.clients[clientID] = l
	}

	r := l.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, ""
	}
	r.CancelAt(now)

	wait := int(math.Ceil(delay.Seconds()))
	return false, fmt.Sprintf("发言过于频繁，请 %d 秒后再试", max(wait, 1))
}

// RemoveClient 移除客户端记录
func (cl *ChatRateLimiter) RemoveClient(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	delete(cl.clients, clientID)
}
