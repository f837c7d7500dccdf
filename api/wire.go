package api

import (
	"errors"
	"fmt"
	"strings"

	alertHandlers "github.com/phistudioco/holdingmanager-sub001/api/handlers/alerts"
	"github.com/phistudioco/holdingmanager-sub001/api/handlers/workflows"
	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/config"
	"github.com/phistudioco/holdingmanager-sub001/internal/infra"
	"github.com/phistudioco/holdingmanager-sub001/internal/infra/queue"
	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/middleware"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow/approval"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// devJWTSecret 仅在非 release 模式下未配置密钥时使用
const devJWTSecret = "holdingmanager-dev-secret"

// AppContainer 应用容器，集中管理所有服务依赖
type AppContainer struct {
	// 基础设施
	DB          *gorm.DB
	Config      *config.Config
	RedisClient redis.UniversalClient
	RedisOpt    asynq.RedisConnOpt
	QueueClient queue.Client

	// 认证
	JWTService *auth.JWTService

	// 工作流
	Registry        *workflow.Registry
	EventBus        *approval.EventBus
	ApprovalManager *approval.Manager

	// 告警
	AlertStore     *alert.Store
	AlertGenerator *alert.Generator
	AlertService   *alert.Service
	AlertHub       *alert.Hub
	AlertWebhook   *alert.WebhookPublisher

	// 后台任务
	WorkerServer *worker.Server
	Scheduler    *worker.Scheduler

	ScanRateLimiter *middleware.RateLimiter
}

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Workflow *workflows.WorkflowHandler
	Alert    *alertHandlers.AlertHandler
	AlertWS  *alertHandlers.WebSocketHandler
}

// Migrators 返回全部建表函数，按依赖顺序执行
func Migrators() []infra.Migrator {
	return []infra.Migrator{
		approval.Migrate,
		alert.Migrate,
		alert.MigrateSources,
	}
}

// InitContainer 初始化应用容器
func InitContainer(db *gorm.DB, cfg *config.Config) (*AppContainer, error) {
	c := &AppContainer{
		DB:     db,
		Config: cfg,
	}

	c.initRedis()

	if err := c.initAuth(); err != nil {
		return nil, fmt.Errorf("初始化认证失败: %w", err)
	}
	if err := c.initWorkflow(); err != nil {
		return nil, fmt.Errorf("初始化工作流失败: %w", err)
	}
	c.initAlerts()
	c.initApproval()
	if err := c.initWorker(); err != nil {
		return nil, fmt.Errorf("初始化后台任务失败: %w", err)
	}

	c.ScanRateLimiter = middleware.NewRateLimiter(nil)

	logger.Info("应用容器初始化完成",
		zap.Strings("workflow_types", c.Registry.Types()),
		zap.Strings("alert_rules", c.AlertGenerator.Rules()),
		zap.Bool("redis", c.RedisClient != nil),
	)
	return c, nil
}

// initRedis Redis 不可用时降级：扫描不加锁、同步执行，令牌不查吊销名单
func (c *AppContainer) initRedis() {
	client, err := infra.InitRedis(&c.Config.Redis)
	switch {
	case errors.Is(err, infra.ErrRedisDisabled):
		logger.Info("未配置 Redis，后台任务与扫描锁已禁用")
		return
	case err != nil:
		logger.Warn("Redis 连接失败，后台任务与扫描锁已禁用", zap.Error(err))
		return
	}
	c.RedisClient = client
	c.RedisOpt = infra.AsynqRedisOpt(&c.Config.Redis)
}

func (c *AppContainer) initAuth() error {
	secret, err := JWTSecret(c.Config)
	if err != nil {
		return err
	}
	c.JWTService = auth.NewJWTService(secret, c.Config.Auth.Issuer, c.RedisClient)
	return nil
}

// JWTSecret 返回令牌签名密钥，release 模式必须显式配置
func JWTSecret(cfg *config.Config) (string, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret != "" {
		return secret, nil
	}
	if cfg.Server.Mode == "release" {
		return "", errors.New("release 模式必须配置 auth.jwt_secret")
	}
	logger.Warn("未配置 auth.jwt_secret，使用开发密钥")
	return devJWTSecret, nil
}

func (c *AppContainer) initWorkflow() error {
	registry, err := workflow.LoadRegistry(c.Config.Workflow.DefinitionsPath)
	if err != nil {
		return err
	}
	c.Registry = registry
	c.EventBus = approval.NewEventBus(&approval.EventBusConfig{BufferSize: 16})
	return nil
}

func (c *AppContainer) initAlerts() {
	c.AlertStore = alert.NewStore(c.DB)
	c.AlertHub = alert.NewHub(alert.WithHubLogger(logger.Get()))

	rules := alert.DefaultRules(
		alert.NewGormInvoiceSource(c.DB),
		alert.NewGormContractSource(c.DB),
		approval.NewLedger(c.DB),
		c.Registry,
		thresholdsFromConfig(c.Config.Alerts),
	)

	publishers := alert.Publishers{c.AlertHub}
	if wh := c.Config.Alerts.Webhook; strings.TrimSpace(wh.URL) != "" {
		c.AlertWebhook = alert.NewWebhookPublisher(alert.WebhookConfig{
			URL:         wh.URL,
			Secret:      wh.Secret,
			MinSeverity: alert.Severity(wh.MinSeverity),
			MaxRetry:    wh.MaxRetry,
			Timeout:     wh.Timeout,
		})
		publishers = append(publishers, c.AlertWebhook)
	}

	opts := []alert.GeneratorOption{
		alert.WithPublisher(publishers),
		alert.WithGeneratorLogger(logger.Get()),
	}
	if c.RedisClient != nil {
		opts = append(opts, alert.WithScanLock(alert.NewRedisScanLock(c.RedisClient, ""), c.Config.Alerts.ScanLockTTL))
	}
	c.AlertGenerator = alert.NewGenerator(c.AlertStore, rules, opts...)
	c.AlertService = alert.NewService(c.AlertStore, c.AlertGenerator, c.Registry)
}

func (c *AppContainer) initApproval() {
	c.ApprovalManager = approval.NewManager(c.DB, c.Registry,
		approval.WithAlerter(c.AlertService),
		approval.WithEventBus(c.EventBus),
		approval.WithManagerLogger(logger.Get()),
	)
}

func (c *AppContainer) initWorker() error {
	if c.RedisOpt == nil {
		return nil
	}
	c.QueueClient = queue.NewClient(c.RedisOpt)
	c.WorkerServer = worker.NewServer(c.RedisOpt, c.AlertService, c.Config.Alerts.WorkerConcurrency, logger.Get())

	if cronspec := strings.TrimSpace(c.Config.Alerts.Schedule); cronspec != "" {
		scheduler, err := worker.NewScheduler(c.RedisOpt, cronspec, c.Config.Alerts.ScanLockTTL, logger.Get())
		if err != nil {
			return err
		}
		c.Scheduler = scheduler
	}
	return nil
}

// InitHandlers 创建全部处理器
func (c *AppContainer) InitHandlers() *Handlers {
	var enqueuer alertHandlers.ScanEnqueuer
	if c.QueueClient != nil {
		enqueuer = c.QueueClient
	}
	return &Handlers{
		Workflow: workflows.NewWorkflowHandler(c.ApprovalManager),
		Alert:    alertHandlers.NewAlertHandler(c.AlertService, enqueuer),
		AlertWS:  alertHandlers.NewWebSocketHandler(c.AlertHub),
	}
}

// Close 释放容器持有的连接
func (c *AppContainer) Close() {
	if c.ScanRateLimiter != nil {
		c.ScanRateLimiter.Stop()
	}
	if c.AlertHub != nil {
		c.AlertHub.Close()
	}
	c.AlertWebhook.Close()
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warn("关闭队列客户端失败", zap.Error(err))
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			logger.Warn("关闭 Redis 失败", zap.Error(err))
		}
	}
}

func thresholdsFromConfig(cfg config.AlertsConfig) alert.Thresholds {
	th := alert.DefaultThresholds()
	if cfg.OverdueCriticalDays > 0 {
		th.OverdueCriticalDays = cfg.OverdueCriticalDays
	}
	if cfg.OverdueHighDays > 0 {
		th.OverdueHighDays = cfg.OverdueHighDays
	}
	if cfg.DueSoonDays > 0 {
		th.DueSoonDays = cfg.DueSoonDays
	}
	if cfg.DueSoonHighDays > 0 {
		th.DueSoonHighDays = cfg.DueSoonHighDays
	}
	if cfg.ContractExpiryDays > 0 {
		th.ContractExpiryDays = cfg.ContractExpiryDays
	}
	if cfg.ContractExpiryHighDays > 0 {
		th.ContractExpiryHighDays = cfg.ContractExpiryHighDays
	}
	if cfg.WorkflowEventLookback > 0 {
		th.WorkflowEventLookback = cfg.WorkflowEventLookback
	}
	return th
}
