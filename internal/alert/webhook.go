package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Webhook 请求头
const (
	HeaderWebhookSignature = "X-Holding-Signature"
	HeaderWebhookEvent     = "X-Holding-Event"
	HeaderWebhookDelivery  = "X-Holding-Delivery"
)

// WebhookConfig 告警外发配置
type WebhookConfig struct {
	URL         string
	Secret      string // 为空时不签名
	MinSeverity Severity
	MaxRetry    int
	Timeout     time.Duration
	QueueSize   int
}

// WebhookPublisher 将新告警异步投递到外部 Webhook，失败按指数退避重试
type WebhookPublisher struct {
	cfg     WebhookConfig
	client  *http.Client
	queue   chan *Alert
	logger  *zap.Logger
	backoff func(attempt int) time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWebhookPublisher 创建并启动投递协程
func NewWebhookPublisher(cfg WebhookConfig) *WebhookPublisher {
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	p := &WebhookPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan *Alert, cfg.QueueSize),
		logger: logger.Get(),
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish 实现 Publisher；队列满或已关闭时丢弃并记录
func (p *WebhookPublisher) Publish(a *Alert) {
	if p == nil || a == nil || severityRank(a.Severity) < severityRank(p.cfg.MinSeverity) {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("Webhook 已关闭，丢弃告警", zap.String("alert_id", a.ID))
		return
	}
	select {
	case p.queue <- a:
	default:
		p.logger.Warn("Webhook 队列已满，丢弃告警", zap.String("alert_id", a.ID))
	}
}

// Close 停止接收并等待队列中的告警投递完成
func (p *WebhookPublisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *WebhookPublisher) run() {
	defer p.wg.Done()
	for a := range p.queue {
		p.deliver(a)
	}
}

func (p *WebhookPublisher) deliver(a *Alert) {
	body, err := json.Marshal(Message{Event: EventAlertCreated, Alert: a})
	if err != nil {
		p.logger.Warn("序列化告警失败", zap.String("alert_id", a.ID), zap.Error(err))
		return
	}
	deliveryID := uuid.NewString()

	for attempt := 0; attempt <= p.cfg.MaxRetry; attempt++ {
		if attempt > 0 {
			time.Sleep(p.backoff(attempt))
		}
		err = p.send(body, deliveryID)
		if err == nil {
			return
		}
		p.logger.Debug("Webhook 投递失败",
			zap.String("alert_id", a.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	p.logger.Warn("Webhook 投递最终失败", zap.String("alert_id", a.ID), zap.Error(err))
}

func (p *WebhookPublisher) send(body []byte, deliveryID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookEvent, EventAlertCreated)
	req.Header.Set(HeaderWebhookDelivery, deliveryID)
	if p.cfg.Secret != "" {
		req.Header.Set(HeaderWebhookSignature, "sha256="+Sign(p.cfg.Secret, body))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Sign 计算 HMAC-SHA256 签名，接收方用同一密钥校验
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Publishers 将同一告警广播给多个推送目标
type Publishers []Publisher

// Publish 实现 Publisher
func (ps Publishers) Publish(a *Alert) {
	for _, p := range ps {
		if p != nil {
			p.Publish(a)
		}
	}
}
