package approval

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/metrics"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxNumeroAttempts = 3
	alertTimeout      = 5 * time.Second
)

// WorkflowAlerter 实例状态变化后的告警钩子，失败不影响主流程
type WorkflowAlerter interface {
	OnWorkflowEvent(ctx context.Context, evt workflow.Event) error
}

// Manager 工作流实例生命周期管理器
type Manager struct {
	db        *gorm.DB
	registry  *workflow.Registry
	instances InstanceRepository
	ledger    *Ledger
	alerter   WorkflowAlerter
	eventBus  *EventBus
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// ManagerOption 自定义配置
type ManagerOption func(*Manager)

// WithAlerter 注入告警钩子
func WithAlerter(alerter WorkflowAlerter) ManagerOption {
	return func(m *Manager) { m.alerter = alerter }
}

// WithEventBus 注入事件总线
func WithEventBus(bus *EventBus) ManagerOption {
	return func(m *Manager) { m.eventBus = bus }
}

// WithManagerLogger 注入自定义日志器
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock 注入时钟
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithInstanceRepository 替换实例仓储
func WithInstanceRepository(repo InstanceRepository) ManagerOption {
	return func(m *Manager) { m.instances = repo }
}

// NewManager 创建生命周期管理器
func NewManager(db *gorm.DB, registry *workflow.Registry, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		db:        db,
		registry:  registry,
		instances: NewInstanceRepository(db),
		ledger:    NewLedger(db),
		logger:    logger.Get(),
		tracer:    otel.Tracer("holdingmanager/workflow/approval"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	return mgr
}

// Registry 返回配置注册表
func (m *Manager) Registry() *workflow.Registry {
	return m.registry
}

// Ledger 返回审批账本
func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// Subscribe 订阅实例事件
func (m *Manager) Subscribe(instanceID string) (<-chan workflow.Event, func()) {
	return m.eventBus.Subscribe(instanceID)
}

// DecisionInput 审批决定参数
type DecisionInput struct {
	Comment string
	// ExpectedStep 调用方看到的步骤，>0 时用于识别重复提交
	ExpectedStep int
}

// Create 创建草稿实例
func (m *Manager) Create(ctx context.Context, caller auth.Caller, workflowType string, payload map[string]any) (*workflow.Instance, error) {
	ctx, span := m.startSpan(ctx, "Create", attribute.String("workflow.type", workflowType))
	defer span.End()

	if strings.TrimSpace(caller.UserID) == "" {
		return nil, m.fail(span, fmt.Errorf("%w: demandeur requis", workflow.ErrInvalidPayload))
	}
	if !caller.Role.Valid() {
		return nil, m.fail(span, fmt.Errorf("%w: rôle inconnu %q", workflow.ErrForbidden, caller.Role))
	}
	def, err := m.registry.DefinitionFor(workflowType)
	if err != nil {
		return nil, m.fail(span, err)
	}
	if err := m.registry.ValidatePayload(workflowType, payload); err != nil {
		return nil, m.fail(span, err)
	}

	now := m.now()
	var inst *workflow.Instance
	for attempt := 1; attempt <= maxNumeroAttempts; attempt++ {
		inst = &workflow.Instance{
			ID:          uuid.NewString(),
			Type:        def.Type,
			Status:      workflow.StatusDraft,
			SubmitterID: caller.UserID,
			Payload:     datatypes.JSONMap(maps.Clone(payload)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			numero, err := allocateNumero(ctx, tx, def.Prefix, now.Year(), now)
			if err != nil {
				return err
			}
			inst.Numero = numero
			return m.instances.WithTx(tx).Insert(ctx, inst)
		})
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, m.fail(span, classify(err))
		}
		m.logger.Warn("工作流编号冲突，重试分配",
			zap.String("type", def.Type),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	if err != nil {
		return nil, m.fail(span, fmt.Errorf("%w: numéro indisponible après %d tentatives: %v", workflow.ErrConflict, maxNumeroAttempts, err))
	}

	metrics.WorkflowTransitionsTotal.WithLabelValues(inst.Type, "", string(workflow.StatusDraft)).Inc()
	m.logger.Info("工作流实例已创建",
		zap.String("instance_id", inst.ID),
		zap.String("numero", inst.Numero),
		zap.String("submitter_id", inst.SubmitterID))
	return inst, nil
}

// Submit 提交草稿，进入第一步审批
func (m *Manager) Submit(ctx context.Context, caller auth.Caller, instanceID string) (*workflow.Instance, error) {
	ctx, span := m.startSpan(ctx, "Submit", attribute.String("workflow.instance_id", instanceID))
	defer span.End()

	inst, evt, prev, err := m.apply(ctx, instanceID, func(ctx context.Context, tx *gorm.DB, inst *workflow.Instance) (*workflow.Event, error) {
		if inst.Status != workflow.StatusDraft || !workflow.CanTransition(inst.Status, workflow.StatusInProgress) {
			return nil, fmt.Errorf("%w: soumission impossible depuis %s", workflow.ErrInvalidTransition, inst.Status)
		}
		now := m.now()
		inst.Status = workflow.StatusInProgress
		inst.CurrentStep = 1
		inst.SubmittedAt = &now
		inst.UpdatedAt = now
		return &workflow.Event{Kind: workflow.EventSubmitted, Step: 1, ActorID: caller.UserID, OccurredAt: now}, nil
	})
	if err != nil {
		return nil, m.fail(span, err)
	}
	m.afterCommit(ctx, prev, inst, evt)
	return inst, nil
}

// ApproveStep 批准当前步骤；最后一步批准后实例结束
func (m *Manager) ApproveStep(ctx context.Context, caller auth.Caller, instanceID string, in DecisionInput) (*workflow.Instance, error) {
	return m.decide(ctx, caller, instanceID, workflow.DecisionApproved, in)
}

// RejectStep 驳回当前步骤，必须填写意见
func (m *Manager) RejectStep(ctx context.Context, caller auth.Caller, instanceID string, in DecisionInput) (*workflow.Instance, error) {
	return m.decide(ctx, caller, instanceID, workflow.DecisionRejected, in)
}

func (m *Manager) decide(ctx context.Context, caller auth.Caller, instanceID string, decision workflow.Decision, in DecisionInput) (*workflow.Instance, error) {
	ctx, span := m.startSpan(ctx, "Decide",
		attribute.String("workflow.instance_id", instanceID),
		attribute.String("workflow.decision", string(decision)))
	defer span.End()

	comment := strings.TrimSpace(in.Comment)
	if decision == workflow.DecisionRejected && comment == "" {
		return nil, m.fail(span, fmt.Errorf("%w: commentaire obligatoire pour un rejet", workflow.ErrInvalidPayload))
	}
	if !caller.Valid() {
		return nil, m.fail(span, fmt.Errorf("%w: approbateur invalide", workflow.ErrForbidden))
	}

	inst, evt, prev, err := m.apply(ctx, instanceID, func(ctx context.Context, tx *gorm.DB, inst *workflow.Instance) (*workflow.Event, error) {
		ledger := m.ledger.WithTx(tx)
		if inst.Status != workflow.StatusInProgress {
			if in.ExpectedStep > 0 {
				decided, err := ledger.Exists(ctx, inst.ID, in.ExpectedStep)
				if err != nil {
					return nil, err
				}
				if decided {
					return nil, fmt.Errorf("%w: %s étape %d", workflow.ErrDuplicateStepDecision, inst.Numero, in.ExpectedStep)
				}
			}
			return nil, fmt.Errorf("%w: décision impossible, %s est %s", workflow.ErrInvalidTransition, inst.Numero, inst.Status)
		}

		def, err := m.registry.DefinitionFor(inst.Type)
		if err != nil {
			return nil, err
		}

		ordinal := inst.CurrentStep
		if in.ExpectedStep > 0 {
			ordinal = in.ExpectedStep
		}
		if ordinal == inst.CurrentStep {
			step, ok := def.Step(ordinal)
			if !ok {
				return nil, fmt.Errorf("%w: étape %d absente de la définition %s", workflow.ErrInvalidTransition, ordinal, def.Type)
			}
			if !auth.RoleLevelAtLeast(caller.Role, step.RequiredRole) {
				return nil, fmt.Errorf("%w: %s requis pour « %s », %s fourni", workflow.ErrForbidden, step.RequiredRole, step.Name, caller.Role)
			}
			if err := checkApproverEligible(ctx, ledger, caller, inst); err != nil {
				return nil, err
			}
		}

		now := m.now()
		if _, err := ledger.Record(ctx, RecordInput{
			InstanceID:  inst.ID,
			StepOrdinal: ordinal,
			ApproverID:  caller.UserID,
			Decision:    decision,
			Comment:     comment,
			DecidedAt:   now,
		}); err != nil {
			return nil, err
		}

		evt := &workflow.Event{ActorID: caller.UserID, Comment: comment, OccurredAt: now, Step: ordinal}
		inst.UpdatedAt = now
		switch {
		case decision == workflow.DecisionRejected:
			inst.Status = workflow.StatusRejected
			inst.FinalizedAt = &now
			evt.Kind = workflow.EventRejected
		case ordinal >= def.LastOrdinal():
			inst.Status = workflow.StatusApproved
			inst.FinalizedAt = &now
			evt.Kind = workflow.EventApproved
		default:
			inst.CurrentStep = ordinal + 1
			evt.Kind = workflow.EventStepAdvanced
			evt.Step = inst.CurrentStep
		}
		if !workflow.CanTransition(workflow.StatusInProgress, inst.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, workflow.StatusInProgress, inst.Status)
		}
		return evt, nil
	})
	if err != nil {
		if errLedgerRace(err) {
			return nil, m.fail(span, m.conflict(ctx, instanceID, err))
		}
		return nil, m.fail(span, err)
	}

	metrics.WorkflowDecisionsTotal.WithLabelValues(inst.Type, string(decision)).Inc()
	m.afterCommit(ctx, prev, inst, evt)
	return inst, nil
}

// checkApproverEligible 与 PendingFor 使用同一规则：
// 提交人不能审批自己的申请，同一审批人在一个实例上只能做一次决定。
func checkApproverEligible(ctx context.Context, ledger *Ledger, caller auth.Caller, inst *workflow.Instance) error {
	if inst.SubmitterID == caller.UserID {
		return fmt.Errorf("%w: %s ne peut pas statuer sur sa propre demande %s", workflow.ErrForbidden, caller.UserID, inst.Numero)
	}
	decided, err := ledger.DecidedBy(ctx, caller.UserID, []string{inst.ID})
	if err != nil {
		return err
	}
	if _, ok := decided[inst.ID]; ok {
		return fmt.Errorf("%w: %s a déjà statué sur %s", workflow.ErrForbidden, caller.UserID, inst.Numero)
	}
	return nil
}

// Cancel 取消草稿或进行中的实例。仅校验状态，取消权限由调用方决定。
func (m *Manager) Cancel(ctx context.Context, caller auth.Caller, instanceID string) (*workflow.Instance, error) {
	ctx, span := m.startSpan(ctx, "Cancel", attribute.String("workflow.instance_id", instanceID))
	defer span.End()

	inst, evt, prev, err := m.apply(ctx, instanceID, func(ctx context.Context, tx *gorm.DB, inst *workflow.Instance) (*workflow.Event, error) {
		if !workflow.CanTransition(inst.Status, workflow.StatusCancelled) {
			return nil, fmt.Errorf("%w: annulation impossible depuis %s", workflow.ErrInvalidTransition, inst.Status)
		}
		now := m.now()
		inst.Status = workflow.StatusCancelled
		inst.FinalizedAt = &now
		inst.UpdatedAt = now
		return &workflow.Event{Kind: workflow.EventCancelled, Step: inst.CurrentStep, ActorID: caller.UserID, OccurredAt: now}, nil
	})
	if err != nil {
		return nil, m.fail(span, err)
	}
	m.afterCommit(ctx, prev, inst, evt)
	return inst, nil
}

// mutation 在事务内修改已锁定的实例，返回待发布的事件
type mutation func(ctx context.Context, tx *gorm.DB, inst *workflow.Instance) (*workflow.Event, error)

// apply 读取-校验-写入在同一事务内完成，写入使用比较并交换
func (m *Manager) apply(ctx context.Context, instanceID string, mutate mutation) (*workflow.Instance, workflow.Event, workflow.Instance, error) {
	var (
		result *workflow.Instance
		evt    workflow.Event
		prev   workflow.Instance
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := m.instances.WithTx(tx)
		inst, err := repo.GetForUpdate(ctx, instanceID)
		if err != nil {
			return err
		}
		prev = *inst

		e, err := mutate(ctx, tx, inst)
		if err != nil {
			return err
		}
		if err := repo.CompareAndSet(ctx, inst, prev.Status, prev.CurrentStep); err != nil {
			return err
		}

		e.InstanceID = inst.ID
		e.Numero = inst.Numero
		e.WorkflowType = inst.Type
		e.Status = inst.Status
		result, evt = inst, *e
		return nil
	})
	if err != nil {
		return nil, workflow.Event{}, prev, classify(err)
	}
	return result, evt, prev, nil
}

// conflict 在失败事务之外重新读取实例并返回冲突错误
func (m *Manager) conflict(ctx context.Context, instanceID string, cause error) error {
	current, err := m.instances.Get(ctx, instanceID)
	if err != nil {
		m.logger.Warn("冲突后重新读取实例失败", zap.String("instance_id", instanceID), zap.Error(err))
		current = nil
	}
	workflowType := "unknown"
	if current != nil {
		workflowType = current.Type
	}
	metrics.WorkflowConflictsTotal.WithLabelValues(workflowType).Inc()
	m.logger.Info("审批并发冲突",
		zap.String("instance_id", instanceID),
		zap.Error(cause))
	return &workflow.ConflictError{Current: current, Cause: cause}
}

// afterCommit 提交后的指标、事件与告警，均不影响返回结果
func (m *Manager) afterCommit(ctx context.Context, prev workflow.Instance, next *workflow.Instance, evt workflow.Event) {
	metrics.WorkflowTransitionsTotal.WithLabelValues(next.Type, string(prev.Status), string(next.Status)).Inc()
	m.eventBus.Publish(evt)

	m.logger.Info("工作流状态变更",
		zap.String("instance_id", next.ID),
		zap.String("numero", next.Numero),
		zap.String("from", string(prev.Status)),
		zap.String("to", string(next.Status)),
		zap.Int("current_step", next.CurrentStep),
		zap.String("actor_id", evt.ActorID))

	if m.alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := m.alerter.OnWorkflowEvent(alertCtx, evt); err != nil {
		m.logger.Warn("工作流告警发送失败，等待定时补偿",
			zap.String("instance_id", next.ID),
			zap.String("event", string(evt.Kind)),
			zap.Error(err))
	}
}

func (m *Manager) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "approval.Manager."+op, trace.WithAttributes(attrs...))
}

func (m *Manager) fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !workflow.IsCallerError(err) && !errors.Is(err, workflow.ErrConflict) {
			m.logger.Error("工作流操作失败", zap.Error(err))
		}
	}
	return err
}
