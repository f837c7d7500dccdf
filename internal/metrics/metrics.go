package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holding_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holding_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 审批工作流指标
var (
	// WorkflowTransitionsTotal 实例状态迁移次数
	WorkflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holding_workflow_transitions_total",
			Help: "工作流实例状态迁移次数",
		},
		[]string{"type", "from", "to"},
	)

	// WorkflowDecisionsTotal 审批决定次数
	WorkflowDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holding_workflow_decisions_total",
			Help: "审批决定次数",
		},
		[]string{"type", "decision"},
	)

	// WorkflowConflictsTotal 并发审批冲突次数
	WorkflowConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holding_workflow_conflicts_total",
			Help: "并发审批冲突次数",
		},
		[]string{"type"},
	)

	// WorkflowsInProgress 进行中的实例数量
	WorkflowsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holding_workflows_in_progress",
			Help: "进行中的工作流实例数量",
		},
		[]string{"type"},
	)
)

// 告警扫描指标
var (
	// AlertsCreatedTotal 新建告警数量
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holding_alerts_created_total",
			Help: "新建告警数量",
		},
		[]string{"rule", "severity"},
	)

	// AlertScanErrorsTotal 规则扫描失败次数
	AlertScanErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holding_alert_scan_errors_total",
			Help: "告警规则扫描失败次数",
		},
		[]string{"rule"},
	)

	// AlertScanDuration 单次扫描耗时
	AlertScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "holding_alert_scan_duration_seconds",
			Help:    "告警扫描耗时分布",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// AlertSubscribers 告警推送的 WebSocket 连接数
	AlertSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holding_alert_ws_connections",
			Help: "告警推送 WebSocket 连接数",
		},
	)
)

// 数据库指标
var (
	// DBConnections 数据库连接数
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "holding_db_connections",
			Help: "数据库连接数",
		},
		[]string{"state"}, // open, in_use, idle
	)
)
