package alert

import (
	"context"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"go.uber.org/zap"
)

// Service 告警服务：工作流事件即时告警与仪表盘读写
type Service struct {
	store     *Store
	generator *Generator
	registry  *workflow.Registry
	logger    *zap.Logger
	now       func() time.Time
}

// NewService 创建告警服务
func NewService(store *Store, generator *Generator, registry *workflow.Registry) *Service {
	return &Service{
		store:     store,
		generator: generator,
		registry:  registry,
		logger:    logger.Get(),
		now:       generator.now,
	}
}

// Generator 返回生成器
func (s *Service) Generator() *Generator {
	return s.generator
}

// Scan 同步执行一次扫描
func (s *Service) Scan(ctx context.Context, trigger Trigger) Summary {
	return s.generator.Run(ctx, trigger)
}

// OnWorkflowEvent 实现 approval.WorkflowAlerter
func (s *Service) OnWorkflowEvent(ctx context.Context, evt workflow.Event) error {
	c, ok := WorkflowCandidate(evt, s.registry)
	if !ok {
		return nil
	}
	created, err := s.generator.emit(ctx, RuleWorkflowEvents, c, s.now())
	if err != nil {
		return err
	}
	if created {
		s.logger.Debug("工作流告警已创建",
			zap.String("type", c.Type),
			zap.String("linked_entity_id", c.LinkedEntityID))
	}
	return nil
}

// List 未解决告警
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Alert, error) {
	return s.store.ListUnresolved(ctx, filter)
}

// MarkRead 标记已读
func (s *Service) MarkRead(ctx context.Context, caller auth.Caller, id string) (*Alert, error) {
	if err := s.store.MarkRead(ctx, id, s.now()); err != nil {
		return nil, err
	}
	s.logger.Debug("告警已读", zap.String("alert_id", id), zap.String("user_id", caller.UserID))
	return s.store.Get(ctx, id)
}

// Resolve 标记已解决，之后同一事实可再次告警
func (s *Service) Resolve(ctx context.Context, caller auth.Caller, id string) (*Alert, error) {
	if err := s.store.Resolve(ctx, id, caller.UserID, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("告警已解决", zap.String("alert_id", id), zap.String("user_id", caller.UserID))
	return s.store.Get(ctx, id)
}
