package alert

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Message 推送给客户端的消息
type Message struct {
	Event string `json:"event"`
	Alert *Alert `json:"alert"`
}

// EventAlertCreated 新告警事件名
const EventAlertCreated = "alert.created"

type subscriber struct {
	userID      string
	conn        *websocket.Conn
	minSeverity int
	mu          sync.Mutex
	done        chan struct{}
	closeOnce   sync.Once
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *subscriber) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub 管理告警推送的 WebSocket 连接，新告警广播给所有订阅者
type Hub struct {
	mu                sync.RWMutex
	subscribers       map[*websocket.Conn]*subscriber
	keepAliveInterval time.Duration
	logger            *zap.Logger
}

// HubOption 配置 hub
type HubOption func(*Hub)

// WithKeepAliveInterval 设置心跳间隔，<=0 关闭心跳
func WithKeepAliveInterval(interval time.Duration) HubOption {
	return func(h *Hub) { h.keepAliveInterval = interval }
}

// WithHubLogger 设置日志器
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub 创建 Hub
func NewHub(opts ...HubOption) *Hub {
	hub := &Hub{
		subscribers:       make(map[*websocket.Conn]*subscriber),
		keepAliveInterval: 30 * time.Second,
		logger:            logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hub)
		}
	}
	return hub
}

// Register 注册连接；minSeverity 之下的告警不推送给该连接，空值表示全部
func (h *Hub) Register(userID string, conn *websocket.Conn, minSeverity Severity) {
	sub := &subscriber{
		userID:      userID,
		conn:        conn,
		minSeverity: severityRank(minSeverity),
		done:        make(chan struct{}),
	}
	h.mu.Lock()
	h.subscribers[conn] = sub
	h.mu.Unlock()

	metrics.AlertSubscribers.Inc()
	h.logger.Debug("告警订阅已注册", zap.String("user_id", userID))
	h.startKeepAlive(sub)
}

// Unregister 移除连接
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	sub, ok := h.subscribers[conn]
	if ok {
		delete(h.subscribers, conn)
	}
	h.mu.Unlock()

	if ok {
		sub.stop()
		metrics.AlertSubscribers.Dec()
	}
}

// Publish 实现 Publisher，写失败的连接会被移除
func (h *Hub) Publish(a *Alert) {
	if h == nil || a == nil {
		return
	}
	data, err := json.Marshal(Message{Event: EventAlertCreated, Alert: a})
	if err != nil {
		h.logger.Warn("序列化告警失败", zap.String("alert_id", a.ID), zap.Error(err))
		return
	}

	rank := severityRank(a.Severity)
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if rank >= sub.minSeverity {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.write(data); err != nil {
			h.logger.Debug("推送告警失败，断开连接", zap.String("user_id", sub.userID), zap.Error(err))
			h.Unregister(sub.conn)
			_ = sub.conn.Close()
		}
	}
}

// ConnectedCount 当前连接数
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close 关闭所有连接
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*websocket.Conn]*subscriber)
	h.mu.Unlock()

	for conn, sub := range subs {
		sub.stop()
		metrics.AlertSubscribers.Dec()
		_ = conn.Close()
	}
}

func (h *Hub) startKeepAlive(sub *subscriber) {
	if h.keepAliveInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sub.done:
				return
			case <-ticker.C:
				sub.mu.Lock()
				err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
				sub.mu.Unlock()
				if err != nil {
					h.Unregister(sub.conn)
					_ = sub.conn.Close()
					return
				}
			}
		}
	}()
}

func severityRank(s Severity) int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}
