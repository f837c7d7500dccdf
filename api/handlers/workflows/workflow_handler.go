package workflows

import (
	"context"
	"io"

	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/common"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow/approval"

	"github.com/gin-gonic/gin"
)

// WorkflowHandler 审批工作流 Handler
type WorkflowHandler struct {
	manager *approval.Manager
}

// NewWorkflowHandler 创建 WorkflowHandler 实例
func NewWorkflowHandler(manager *approval.Manager) *WorkflowHandler {
	return &WorkflowHandler{manager: manager}
}

func callerOrAbort(c *gin.Context) (auth.Caller, bool) {
	caller, ok := auth.GetCaller(c)
	if !ok {
		common.ResponseUnauthorized(c, "")
		return auth.Caller{}, false
	}
	return caller, true
}

// CreateInstance 创建草稿实例
// @Summary 创建工作流实例
// @Tags Workflows
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateInstanceRequest true "类型与载荷"
// @Success 201 {object} common.APIResponse
// @Router /api/workflows [post]
func (h *WorkflowHandler) CreateInstance(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}

	inst, err := h.manager.Create(c.Request.Context(), caller, req.Type, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseCreated(c, inst)
}

// GetInstance 实例详情与审批记录
// @Summary 查询工作流实例
// @Tags Workflows
// @Security BearerAuth
// @Produce json
// @Param id path string true "实例 ID"
// @Success 200 {object} common.APIResponse
// @Router /api/workflows/{id} [get]
func (h *WorkflowHandler) GetInstance(c *gin.Context) {
	history, err := h.manager.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, history)
}

// ListPending 当前用户待审批的实例
// @Summary 待我审批
// @Tags Workflows
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/workflows/pending [get]
func (h *WorkflowHandler) ListPending(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	items, err := h.manager.PendingFor(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"items": items, "total": len(items)})
}

// ListDefinitions 已注册的工作流类型
// @Summary 工作流类型列表
// @Tags Workflows
// @Security BearerAuth
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/workflows/definitions [get]
func (h *WorkflowHandler) ListDefinitions(c *gin.Context) {
	registry := h.manager.Registry()
	common.ResponseSuccess(c, DefinitionListResponse{
		Types: registry.Types(),
		Items: registry.Definitions(),
	})
}

// Submit 提交草稿
// @Summary 提交工作流实例
// @Tags Workflows
// @Security BearerAuth
// @Produce json
// @Param id path string true "实例 ID"
// @Success 200 {object} common.APIResponse
// @Router /api/workflows/{id}/submit [post]
func (h *WorkflowHandler) Submit(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	inst, err := h.manager.Submit(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, inst)
}

// Approve 批准当前步骤
// @Summary 批准当前步骤
// @Tags Workflows
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "实例 ID"
// @Param request body DecisionRequest false "评论与期望步骤"
// @Success 200 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/workflows/{id}/approve [post]
func (h *WorkflowHandler) Approve(c *gin.Context) {
	h.decide(c, h.manager.ApproveStep)
}

// Reject 驳回，评论必填
// @Summary 驳回当前步骤
// @Tags Workflows
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "实例 ID"
// @Param request body DecisionRequest true "驳回原因"
// @Success 200 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/workflows/{id}/reject [post]
func (h *WorkflowHandler) Reject(c *gin.Context) {
	h.decide(c, h.manager.RejectStep)
}

type decideFunc func(ctx context.Context, caller auth.Caller, instanceID string, in approval.DecisionInput) (*workflow.Instance, error)

func (h *WorkflowHandler) decide(c *gin.Context, fn decideFunc) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ResponseBadRequest(c, "参数错误: "+err.Error())
			return
		}
	}

	inst, err := fn(c.Request.Context(), caller, c.Param("id"), approval.DecisionInput{
		Comment:      req.Comment,
		ExpectedStep: req.ExpectedStep,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, inst)
}

// Cancel 撤销实例，仅限提交人或管理员
// @Summary 撤销工作流实例
// @Tags Workflows
// @Security BearerAuth
// @Produce json
// @Param id path string true "实例 ID"
// @Success 200 {object} common.APIResponse
// @Router /api/workflows/{id}/cancel [post]
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	current, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if current.SubmitterID != caller.UserID && !auth.RoleLevelAtLeast(caller.Role, auth.RoleAdmin) {
		common.ResponseForbidden(c, "仅提交人或管理员可撤销")
		return
	}

	inst, err := h.manager.Cancel(c.Request.Context(), caller, current.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, inst)
}

// Events 以 SSE 推送实例状态变化，实例进入终态后结束
// @Summary 订阅实例事件
// @Tags Workflows
// @Security BearerAuth
// @Produce text/event-stream
// @Param id path string true "实例 ID"
// @Router /api/workflows/{id}/events [get]
func (h *WorkflowHandler) Events(c *gin.Context) {
	current, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	events, unsubscribe := h.manager.Subscribe(current.ID)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("status", gin.H{"instanceId": current.ID, "status": current.Status, "step": current.CurrentStep})
	if current.Status.IsTerminal() {
		return
	}

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Kind), evt)
			return !evt.Status.IsTerminal()
		}
	})
}
