package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AlertScanner 告警扫描抽象，便于注入 mock
type AlertScanner interface {
	Scan(ctx context.Context, trigger alert.Trigger) alert.Summary
}

type AlertHandler struct {
	scanner AlertScanner
	logger  *zap.Logger
}

func NewAlertHandler(scanner AlertScanner, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		scanner: scanner,
		logger:  logger,
	}
}

// HandleAlertScan 执行扫描；仅当所有规则都失败时返回错误以触发重试
func (h *AlertHandler) HandleAlertScan(ctx context.Context, t *asynq.Task) error {
	var p tasks.AlertScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.Trigger == "" {
		p.Trigger = alert.TriggerSchedule
	}

	summary := h.scanner.Scan(ctx, alert.Trigger{Source: p.Trigger, RequestedBy: p.RequestedBy})
	if summary.Locked {
		h.logger.Info("告警扫描被跳过，已有扫描在执行", zap.String("trigger", p.Trigger))
		return nil
	}

	for _, e := range summary.Errors {
		h.logger.Warn("告警规则失败", zap.String("rule", e.Rule), zap.String("error", e.Message))
	}
	if summary.AllFailed() {
		return fmt.Errorf("all %d alert rules failed", summary.Rules)
	}

	h.logger.Info("告警扫描任务完成",
		zap.String("trigger", p.Trigger),
		zap.Any("created", summary.Created),
		zap.Int("errors", len(summary.Errors)),
	)
	return nil
}
