package workflow

import (
	"time"

	"gorm.io/datatypes"
)

// Status 工作流实例状态
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Decision 审批决定
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid 是否为合法决定
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Instance 工作流实例，仅由生命周期管理器修改
type Instance struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	Numero      string            `json:"numero" gorm:"size:32;not null;uniqueIndex:ux_workflow_instances_numero"`
	Type        string            `json:"type" gorm:"size:50;not null;index"`
	Status      Status            `json:"status" gorm:"size:20;not null;index"`
	CurrentStep int               `json:"currentStep" gorm:"not null;default:0"`
	SubmitterID string            `json:"submitterId" gorm:"size:64;not null;index"`
	Payload     datatypes.JSONMap `json:"payload"`
	SubmittedAt *time.Time        `json:"submittedAt"`
	FinalizedAt *time.Time        `json:"finalizedAt"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 表名
func (Instance) TableName() string {
	return "workflow_instances"
}

// ApprovalRecord 审批记录，只追加；(instance_id, step_ordinal) 唯一
type ApprovalRecord struct {
	InstanceID  string    `json:"instanceId" gorm:"primaryKey;size:36"`
	StepOrdinal int       `json:"stepOrdinal" gorm:"primaryKey;autoIncrement:false"`
	ApproverID  string    `json:"approverId" gorm:"size:64;not null;index"`
	Decision    Decision  `json:"decision" gorm:"size:20;not null"`
	Comment     string    `json:"comment,omitempty" gorm:"type:text"`
	DecidedAt   time.Time `json:"decidedAt" gorm:"not null;index"`
}

// TableName 表名
func (ApprovalRecord) TableName() string {
	return "approval_records"
}

// EventKind 工作流事件类型
type EventKind string

const (
	EventSubmitted    EventKind = "submitted"
	EventStepAdvanced EventKind = "step_advanced"
	EventApproved     EventKind = "approved"
	EventRejected     EventKind = "rejected"
	EventCancelled    EventKind = "cancelled"
)

// Event 描述一次实例状态变化。Step 为变化后等待审批的步骤，
// 终态事件中为做出决定的步骤。
type Event struct {
	Kind         EventKind `json:"kind"`
	InstanceID   string    `json:"instanceId"`
	Numero       string    `json:"numero"`
	WorkflowType string    `json:"workflowType"`
	Status       Status    `json:"status"`
	Step         int       `json:"step"`
	ActorID      string    `json:"actorId"`
	Comment      string    `json:"comment,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
