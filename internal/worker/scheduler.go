package worker

import (
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Scheduler 周期性告警扫描
type Scheduler struct {
	scheduler *asynq.Scheduler
	entryID   string
	logger    *zap.Logger
}

// NewScheduler 按 cron 表达式注册告警扫描；uniqueTTL 内重复入队会被抑制
func NewScheduler(redisOpt asynq.RedisConnOpt, cronspec string, uniqueTTL time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if uniqueTTL <= 0 {
		uniqueTTL = 10 * time.Minute
	}
	s := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Debug("定时告警扫描未入队", zap.Error(err))
			}
		},
	})

	task, err := tasks.NewAlertScanTask(tasks.AlertScanPayload{Trigger: alert.TriggerSchedule})
	if err != nil {
		return nil, err
	}
	entryID, err := s.Register(cronspec, task,
		asynq.Queue(tasks.QueueAlerts),
		asynq.Unique(uniqueTTL),
		asynq.MaxRetry(2),
		asynq.Timeout(uniqueTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("注册定时告警扫描失败: %w", err)
	}

	return &Scheduler{scheduler: s, entryID: entryID, logger: logger}, nil
}

// Start 非阻塞启动
func (s *Scheduler) Start() error {
	s.logger.Info("告警定时扫描已启动", zap.String("entry_id", s.entryID))
	return s.scheduler.Start()
}

// Shutdown 停止调度
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
