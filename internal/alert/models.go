package alert

import "time"

// Severity 告警级别
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid 是否为已知级别
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// 告警类型
const (
	TypeInvoiceOverdue      = "invoice_overdue"
	TypeInvoiceDueSoon      = "invoice_due_soon"
	TypeContractExpiring    = "contract_expiring"
	TypeWorkflowStepPending = "workflow_step_pending"
	TypeWorkflowApproved    = "workflow_approved"
	TypeWorkflowRejected    = "workflow_rejected"
)

// 关联实体类型
const (
	EntityInvoice          = "invoice"
	EntityContract         = "contract"
	EntityWorkflowStep     = "workflow_step"
	EntityWorkflowInstance = "workflow_instance"
)

// Alert 告警记录。生成器只插入；已读、已解决由用户操作。
type Alert struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	Type             string     `json:"type" gorm:"size:50;not null;index"`
	Severity         Severity   `json:"severity" gorm:"size:20;not null;index"`
	Title            string     `json:"title" gorm:"size:255;not null"`
	Message          string     `json:"message" gorm:"type:text;not null"`
	Read             bool       `json:"read" gorm:"not null;default:false"`
	Resolved         bool       `json:"resolved" gorm:"not null;default:false;index"`
	LinkedEntityType string     `json:"linkedEntityType,omitempty" gorm:"size:50;not null;default:''"`
	LinkedEntityID   string     `json:"linkedEntityId,omitempty" gorm:"size:100;not null;default:''"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" gorm:"not null;index"`
	ReadAt           *time.Time `json:"readAt,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy       string     `json:"resolvedBy,omitempty" gorm:"size:64"`
}

// TableName 表名
func (Alert) TableName() string {
	return "alerts"
}

// DedupKey 去重键：同一键最多一条未解决告警
type DedupKey struct {
	Type             string
	LinkedEntityType string
	LinkedEntityID   string
}

// Key 返回告警的去重键
func (a *Alert) Key() DedupKey {
	return DedupKey{Type: a.Type, LinkedEntityType: a.LinkedEntityType, LinkedEntityID: a.LinkedEntityID}
}
