package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeAlertScan = "alerts:scan"
)

// QueueAlerts 告警任务队列
const QueueAlerts = "alerts"

// AlertScanPayload 告警扫描任务载荷
type AlertScanPayload struct {
	Trigger     string `json:"trigger"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewAlertScanTask 构造告警扫描任务
func NewAlertScanTask(p AlertScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypeAlertScan, data), nil
}
