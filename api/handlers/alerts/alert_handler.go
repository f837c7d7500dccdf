package alerts

import (
	"context"
	"errors"

	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/common"
	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScanEnqueuer 异步扫描入队，由任务队列客户端实现
type ScanEnqueuer interface {
	EnqueueAlertScan(ctx context.Context, payload tasks.AlertScanPayload) (string, error)
}

// AlertHandler 告警 Handler
type AlertHandler struct {
	service *alert.Service
	queue   ScanEnqueuer
}

// NewAlertHandler 创建 AlertHandler；queue 为 nil 时扫描同步执行
func NewAlertHandler(service *alert.Service, queue ScanEnqueuer) *AlertHandler {
	return &AlertHandler{service: service, queue: queue}
}

// ListQuery 告警列表查询参数
type ListQuery struct {
	Type       string `form:"type"`
	Severity   string `form:"severity"`
	UnreadOnly bool   `form:"unread"`
	common.PaginationRequest
}

// List 未解决告警
// @Summary 未解决告警列表
// @Tags Alerts
// @Security BearerAuth
// @Produce json
// @Param type query string false "告警类型"
// @Param severity query string false "级别"
// @Success 200 {object} common.APIResponse
// @Router /api/alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	severity := alert.Severity(q.Severity)
	if severity != "" && !severity.Valid() {
		common.ResponseBadRequest(c, "未知告警级别: "+q.Severity)
		return
	}

	items, err := h.service.List(c.Request.Context(), alert.ListFilter{
		Type:              q.Type,
		Severity:          severity,
		UnreadOnly:        q.UnreadOnly,
		PaginationRequest: q.PaginationRequest,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": items, "total": len(items)})
}

// MarkRead 标记已读
// @Summary 标记告警已读
// @Tags Alerts
// @Security BearerAuth
// @Param id path string true "告警 ID"
// @Success 200 {object} common.APIResponse
// @Router /api/alerts/{id}/read [post]
func (h *AlertHandler) MarkRead(c *gin.Context) {
	caller, _ := auth.GetCaller(c)
	a, err := h.service.MarkRead(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

// Resolve 标记已解决
// @Summary 解决告警
// @Tags Alerts
// @Security BearerAuth
// @Param id path string true "告警 ID"
// @Success 200 {object} common.APIResponse
// @Router /api/alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c *gin.Context) {
	caller, _ := auth.GetCaller(c)
	a, err := h.service.Resolve(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.ResponseSuccess(c, a)
}

// Scan 触发一次告警扫描
// @Summary 触发告警扫描
// @Tags Alerts
// @Security BearerAuth
// @Success 200 {object} common.APIResponse
// @Success 202 {object} common.APIResponse
// @Failure 429
// @Router /api/alerts/scan [post]
func (h *AlertHandler) Scan(c *gin.Context) {
	caller, _ := auth.GetCaller(c)
	if h.queue == nil {
		summary := h.service.Scan(c.Request.Context(), alert.Trigger{Source: alert.TriggerManual, RequestedBy: caller.UserID})
		common.ResponseSuccess(c, summary)
		return
	}

	taskID, err := h.queue.EnqueueAlertScan(c.Request.Context(), tasks.AlertScanPayload{
		Trigger:     alert.TriggerManual,
		RequestedBy: caller.UserID,
	})
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("告警扫描入队失败", zap.Error(err))
		common.ResponseError(c, common.CodeServiceUnavailable, "任务队列不可用")
		return
	}
	common.ResponseAccepted(c, gin.H{"taskId": taskID})
}

func (h *AlertHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, alert.ErrAlertNotFound) {
		common.ResponseError(c, common.CodeAlertNotFound, err.Error())
		return
	}
	logger.WithContext(c.Request.Context()).Error("告警操作失败", zap.Error(err))
	common.ResponseServerError(c, "")
}
