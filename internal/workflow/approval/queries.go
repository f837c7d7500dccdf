package approval

import (
	"context"
	"fmt"

	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"gorm.io/gorm"
)

// History 实例及其审批记录
type History struct {
	Instance   *workflow.Instance        `json:"instance"`
	Definition workflow.Definition       `json:"definition"`
	Records    []workflow.ApprovalRecord `json:"records"`
}

// Get 读取实例
func (m *Manager) Get(ctx context.Context, instanceID string) (*workflow.Instance, error) {
	inst, err := m.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, classify(err)
	}
	return inst, nil
}

// History 读取实例、定义与按步骤排序的审批记录
func (m *Manager) History(ctx context.Context, instanceID string) (*History, error) {
	inst, err := m.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	def, err := m.registry.DefinitionFor(inst.Type)
	if err != nil {
		return nil, err
	}
	records, err := m.ledger.ListFor(ctx, instanceID)
	if err != nil {
		return nil, classify(err)
	}
	return &History{Instance: inst, Definition: def, Records: records}, nil
}

// PendingFor 返回调用方可以审批的进行中实例：
// 当前步骤要求的层级不高于调用方，且不是调用方提交或已参与审批的实例。
func (m *Manager) PendingFor(ctx context.Context, caller auth.Caller) ([]workflow.Instance, error) {
	if !caller.Valid() {
		return nil, fmt.Errorf("%w: appelant invalide", workflow.ErrForbidden)
	}

	inProgress, err := m.instances.ListByStatus(ctx, workflow.StatusInProgress)
	if err != nil {
		return nil, classify(err)
	}

	candidates := make([]workflow.Instance, 0, len(inProgress))
	ids := make([]string, 0, len(inProgress))
	for _, inst := range inProgress {
		if inst.SubmitterID == caller.UserID {
			continue
		}
		def, err := m.registry.DefinitionFor(inst.Type)
		if err != nil {
			continue
		}
		step, ok := def.Step(inst.CurrentStep)
		if !ok || !auth.RoleLevelAtLeast(caller.Role, step.RequiredRole) {
			continue
		}
		candidates = append(candidates, inst)
		ids = append(ids, inst.ID)
	}

	decided, err := m.ledger.DecidedBy(ctx, caller.UserID, ids)
	if err != nil {
		return nil, classify(err)
	}
	pending := candidates[:0]
	for _, inst := range candidates {
		if _, ok := decided[inst.ID]; ok {
			continue
		}
		pending = append(pending, inst)
	}
	return pending, nil
}

// CountInProgress 按类型统计进行中的实例
func (m *Manager) CountInProgress(ctx context.Context) (map[string]int64, error) {
	return m.instances.CountByType(ctx, workflow.StatusInProgress)
}

// Migrate 创建工作流相关表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&workflow.Instance{}, &workflow.ApprovalRecord{}, &NumeroSequence{}); err != nil {
		return fmt.Errorf("迁移工作流表失败: %w", err)
	}
	return nil
}
