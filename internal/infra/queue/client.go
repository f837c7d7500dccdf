package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueAlertScan(ctx context.Context, payload tasks.AlertScanPayload) (string, error)
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(redisOpt asynq.RedisConnOpt) Client {
	return &asynqClient{client: asynq.NewClient(redisOpt)}
}

// EnqueueAlertScan 按需触发扫描，返回任务 ID
func (c *asynqClient) EnqueueAlertScan(ctx context.Context, payload tasks.AlertScanPayload) (string, error) {
	task, err := tasks.NewAlertScanTask(payload)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(tasks.QueueAlerts),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue task failed: %w", err)
	}
	return info.ID, nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
