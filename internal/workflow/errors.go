package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition 当前状态不允许该操作
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrInvalidPayload 载荷缺少必填字段或未通过校验规则
	ErrInvalidPayload = errors.New("invalid workflow payload")
	// ErrUnknownWorkflowType 未注册的工作流类型
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
	// ErrInstanceNotFound 实例不存在
	ErrInstanceNotFound = errors.New("workflow instance not found")
	// ErrForbidden 审批人层级不足
	ErrForbidden = errors.New("approver role is below the step requirement")
	// ErrDuplicateStepDecision 该步骤已有审批记录
	ErrDuplicateStepDecision = errors.New("step already decided")
	// ErrStepOutOfSequence 步骤与实例当前步骤不一致
	ErrStepOutOfSequence = errors.New("step out of sequence")
	// ErrConflict 实例已被并发修改，调用方应重新读取后再试
	ErrConflict = errors.New("workflow instance modified concurrently")
	// ErrStoreUnavailable 存储暂不可用
	ErrStoreUnavailable = errors.New("workflow store unavailable")
)

// ConflictError 并发冲突，携带冲突发生后重新读取的实例
type ConflictError struct {
	Current *Instance
	Cause   error
}

func (e *ConflictError) Error() string {
	if e.Current != nil {
		return fmt.Sprintf("%v: %s is %s at step %d: %v", ErrConflict, e.Current.Numero, e.Current.Status, e.Current.CurrentStep, e.Cause)
	}
	return fmt.Sprintf("%v: %v", ErrConflict, e.Cause)
}

// Unwrap 同时匹配 ErrConflict 与具体原因
func (e *ConflictError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConflict}
	}
	return []error{ErrConflict, e.Cause}
}

// IsRetryable 调用方重新读取后可重试的错误
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreUnavailable)
}

// IsCallerError 调用方错误，直接返回、不应重试
func IsCallerError(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrUnknownWorkflowType) ||
		errors.Is(err, ErrInstanceNotFound)
}

var domainErrors = []error{
	ErrInvalidTransition, ErrInvalidPayload, ErrUnknownWorkflowType, ErrInstanceNotFound,
	ErrForbidden, ErrDuplicateStepDecision, ErrStepOutOfSequence, ErrConflict, ErrStoreUnavailable,
}

// IsDomainError 是否已归入错误分类
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
