package alert

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultLockTTL = 10 * time.Minute

// 扫描触发来源
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
	TriggerTest     = "test"
)

// Trigger 描述是谁或什么启动了一次扫描
type Trigger struct {
	Source      string `json:"source"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// RuleError 单条规则的失败
type RuleError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Summary 一次扫描的结果
type Summary struct {
	Trigger    Trigger        `json:"trigger"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Created    map[string]int `json:"created"`
	Skipped    map[string]int `json:"skipped"`
	Errors     []RuleError    `json:"errors,omitempty"`
	// Locked 为 true 表示另一次扫描持有锁，本次未执行
	Locked bool `json:"locked"`
	Rules  int  `json:"rules"`
}

// TotalCreated 新建告警总数
func (s Summary) TotalCreated() int {
	total := 0
	for _, n := range s.Created {
		total += n
	}
	return total
}

// AllFailed 所有规则都失败
func (s Summary) AllFailed() bool {
	return s.Rules > 0 && len(s.Errors) >= s.Rules
}

// Publisher 新告警推送
type Publisher interface {
	Publish(a *Alert)
}

// Generator 告警生成器：按固定顺序执行规则，去重后写入告警。
// 可重复执行，同一事实不会产生第二条未解决告警。
type Generator struct {
	store     *Store
	rules     []Rule
	lock      ScanLock
	lockTTL   time.Duration
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// GeneratorOption 生成器配置项
type GeneratorOption func(*Generator)

// WithScanLock 使用分布式锁防止重叠扫描
func WithScanLock(lock ScanLock, ttl time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.lock = lock
		if ttl > 0 {
			g.lockTTL = ttl
		}
	}
}

// WithPublisher 设置新告警推送
func WithPublisher(p Publisher) GeneratorOption {
	return func(g *Generator) {
		g.publisher = p
	}
}

// WithGeneratorLogger 设置日志
func WithGeneratorLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithGeneratorClock 设置时钟
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator 创建告警生成器
func NewGenerator(store *Store, rules []Rule, opts ...GeneratorOption) *Generator {
	g := &Generator{
		store:   store,
		rules:   rules,
		lockTTL: defaultLockTTL,
		logger:  logger.Get(),
		tracer:  otel.Tracer("holdingmanager/alert"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Rules 规则名列表，按执行顺序
func (g *Generator) Rules() []string {
	names := make([]string, 0, len(g.rules))
	for _, r := range g.rules {
		names = append(names, r.Name())
	}
	return names
}

// Run 执行一次扫描。规则失败被记录到 Summary，不会中断其他规则，也不会返回错误。
func (g *Generator) Run(ctx context.Context, trigger Trigger) Summary {
	summary := Summary{
		Trigger:   trigger,
		StartedAt: g.now(),
		Created:   make(map[string]int, len(g.rules)),
		Skipped:   make(map[string]int, len(g.rules)),
		Rules:     len(g.rules),
	}

	ctx, span := g.tracer.Start(ctx, "alert.Generator.Run",
		trace.WithAttributes(attribute.String("alert.trigger", trigger.Source)))
	defer span.End()

	if g.lock != nil {
		release, acquired, err := g.lock.Acquire(ctx, g.lockTTL)
		switch {
		case err != nil:
			g.logger.Warn("获取扫描锁失败，无锁执行", zap.Error(err))
		case !acquired:
			g.logger.Info("另一次告警扫描正在执行，跳过", zap.String("trigger", trigger.Source))
			summary.Locked = true
			summary.FinishedAt = g.now()
			span.SetAttributes(attribute.Bool("alert.locked", true))
			return summary
		default:
			defer release()
		}
	}

	start := time.Now()
	for _, rule := range g.rules {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, RuleError{Rule: rule.Name(), Message: err.Error()})
			continue
		}
		g.runRule(ctx, rule, &summary)
	}
	metrics.AlertScanDuration.Observe(time.Since(start).Seconds())

	summary.FinishedAt = g.now()
	span.SetAttributes(attribute.Int("alert.created", summary.TotalCreated()))
	if len(summary.Errors) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d rule(s) failed", len(summary.Errors)))
	}

	g.logger.Info("告警扫描完成",
		zap.String("trigger", trigger.Source),
		zap.String("requested_by", trigger.RequestedBy),
		zap.Int("created", summary.TotalCreated()),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary
}

func (g *Generator) runRule(ctx context.Context, rule Rule, summary *Summary) {
	name := rule.Name()
	ctx, span := g.tracer.Start(ctx, "alert.rule."+name)
	defer span.End()

	fail := func(err error) {
		summary.Errors = append(summary.Errors, RuleError{Rule: name, Message: err.Error()})
		metrics.AlertScanErrorsTotal.WithLabelValues(name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("告警规则执行失败", zap.String("rule", name), zap.Error(err))
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
			g.logger.Debug("告警规则 panic 堆栈", zap.String("rule", name), zap.ByteString("stack", debug.Stack()))
		}
	}()

	now := g.now()
	candidates, err := rule.Evaluate(ctx, now)
	if err != nil {
		fail(err)
		return
	}

	summary.Created[name] = 0
	for _, c := range candidates {
		created, err := g.emit(ctx, name, c, now)
		if err != nil {
			fail(err)
			return
		}
		if created {
			summary.Created[name]++
		} else {
			summary.Skipped[name]++
		}
	}
	span.SetAttributes(
		attribute.Int("alert.candidates", len(candidates)),
		attribute.Int("alert.created", summary.Created[name]))
}

// emit 去重后写入一条告警，返回是否新建
func (g *Generator) emit(ctx context.Context, rule string, c Candidate, now time.Time) (bool, error) {
	exists, err := g.store.Exists(ctx, c.Key(), !c.Once)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	a := &Alert{
		ID:               uuid.NewString(),
		Type:             c.Type,
		Severity:         c.Severity,
		Title:            c.Title,
		Message:          c.Message,
		LinkedEntityType: c.LinkedEntityType,
		LinkedEntityID:   c.LinkedEntityID,
		DueDate:          c.DueDate,
		CreatedAt:        now,
	}
	created, err := g.store.Insert(ctx, a)
	if err != nil || !created {
		return false, err
	}

	metrics.AlertsCreatedTotal.WithLabelValues(rule, string(a.Severity)).Inc()
	if g.publisher != nil {
		g.publisher.Publish(a)
	}
	return true, nil
}
