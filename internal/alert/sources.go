package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/common"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"gorm.io/gorm"
)

// 发票与合同状态
const (
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
	ContractStatusActive   = "active"
)

// Invoice 发票只读视图
type Invoice struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Numero     string    `json:"numero" gorm:"size:30;not null"`
	ClientName string    `json:"clientName" gorm:"size:255"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency" gorm:"size:3"`
	DueDate    time.Time `json:"dueDate" gorm:"not null;index"`
	Status     string    `json:"status" gorm:"size:20;not null"`
}

// TableName 表名
func (Invoice) TableName() string {
	return "invoices"
}

// Contract 合同只读视图
type Contract struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Numero     string    `json:"numero" gorm:"size:30;not null"`
	Title      string    `json:"title" gorm:"size:255"`
	ClientName string    `json:"clientName" gorm:"size:255"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency" gorm:"size:3"`
	EndDate    time.Time `json:"endDate" gorm:"not null;index"`
	Status     string    `json:"status" gorm:"size:20;not null"`
}

// TableName 表名
func (Contract) TableName() string {
	return "contracts"
}

// InvoiceSource 发票数据源
type InvoiceSource interface {
	// Overdue 到期日早于 today 且未结清的发票
	Overdue(ctx context.Context, today time.Time) ([]Invoice, error)
	// DueBetween 到期日位于 [from, until) 且未结清的发票
	DueBetween(ctx context.Context, from, until time.Time) ([]Invoice, error)
}

// ContractSource 合同数据源
type ContractSource interface {
	// ActiveEndingBefore 结束日早于 until 的生效合同，包括已过期仍为生效状态的
	ActiveEndingBefore(ctx context.Context, until time.Time) ([]Contract, error)
}

// WorkflowEventSource 工作流事件数据源，由审批账本实现
type WorkflowEventSource interface {
	EventsSince(ctx context.Context, since time.Time) ([]workflow.Event, error)
}

// GormInvoiceSource 基于 gorm 的发票数据源
type GormInvoiceSource struct {
	db *gorm.DB
}

// NewGormInvoiceSource 创建发票数据源
func NewGormInvoiceSource(db *gorm.DB) *GormInvoiceSource {
	return &GormInvoiceSource{db: db}
}

func (s *GormInvoiceSource) open(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Scopes(common.StatusNotIn(InvoiceStatusPaid, InvoiceStatusCancelled))
}

// Overdue 实现 InvoiceSource
func (s *GormInvoiceSource) Overdue(ctx context.Context, today time.Time) ([]Invoice, error) {
	var invoices []Invoice
	if err := s.open(ctx).
		Where("due_date < ?", today).
		Order("due_date ASC").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("查询逾期发票失败: %w", err)
	}
	return invoices, nil
}

// DueBetween 实现 InvoiceSource
func (s *GormInvoiceSource) DueBetween(ctx context.Context, from, until time.Time) ([]Invoice, error) {
	var invoices []Invoice
	if err := s.open(ctx).
		Where("due_date >= ? AND due_date < ?", from, until).
		Order("due_date ASC").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("查询即将到期发票失败: %w", err)
	}
	return invoices, nil
}

// GormContractSource 基于 gorm 的合同数据源
type GormContractSource struct {
	db *gorm.DB
}

// NewGormContractSource 创建合同数据源
func NewGormContractSource(db *gorm.DB) *GormContractSource {
	return &GormContractSource{db: db}
}

// ActiveEndingBefore 实现 ContractSource
func (s *GormContractSource) ActiveEndingBefore(ctx context.Context, until time.Time) ([]Contract, error) {
	var contracts []Contract
	if err := s.db.WithContext(ctx).
		Scopes(common.ActiveOnly()).
		Where("end_date < ?", until).
		Order("end_date ASC").
		Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("查询到期合同失败: %w", err)
	}
	return contracts, nil
}

// MigrateSources 创建发票与合同表，仅用于本地开发与 sqlite 部署，生产环境由主系统维护
func MigrateSources(db *gorm.DB) error {
	if err := db.AutoMigrate(&Invoice{}, &Contract{}); err != nil {
		return fmt.Errorf("迁移发票与合同表失败: %w", err)
	}
	return nil
}
