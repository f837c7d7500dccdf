package workflows

import (
	"context"
	"errors"

	"github.com/phistudioco/holdingmanager-sub001/internal/common"
	"github.com/phistudioco/holdingmanager-sub001/internal/logger"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 将工作流错误映射为业务码；并发冲突附带最新实例
func respondError(c *gin.Context, err error) {
	var conflict *workflow.ConflictError
	switch {
	case errors.As(err, &conflict):
		bizErr := common.NewBusinessError(common.CodeConflict, err.Error())
		if conflict.Current != nil {
			bizErr = bizErr.WithData(conflict.Current)
		}
		common.ResponseBusinessError(c, bizErr)
	case errors.Is(err, workflow.ErrConflict),
		errors.Is(err, workflow.ErrDuplicateStepDecision),
		errors.Is(err, workflow.ErrStepOutOfSequence):
		common.ResponseError(c, common.CodeConflict, err.Error())
	case errors.Is(err, workflow.ErrInstanceNotFound):
		common.ResponseError(c, common.CodeWorkflowNotFound, err.Error())
	case errors.Is(err, workflow.ErrUnknownWorkflowType):
		common.ResponseError(c, common.CodeWorkflowUnknownType, err.Error())
	case errors.Is(err, workflow.ErrInvalidPayload):
		common.ResponseError(c, common.CodeWorkflowValidationFailed, err.Error())
	case errors.Is(err, workflow.ErrForbidden):
		common.ResponseError(c, common.CodeForbidden, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		common.ResponseError(c, common.CodeWorkflowInvalidState, err.Error())
	case errors.Is(err, workflow.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		logger.WithContext(c.Request.Context()).Warn("工作流存储不可用", zap.Error(err))
		common.ResponseError(c, common.CodeServiceUnavailable, common.GetErrorMessage(common.CodeServiceUnavailable))
	default:
		logger.WithContext(c.Request.Context()).Error("工作流操作失败", zap.Error(err))
		common.ResponseServerError(c, "")
	}
}
