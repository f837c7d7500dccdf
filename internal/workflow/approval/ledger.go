package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"gorm.io/gorm"
)

// RecordInput 一次步骤决定
type RecordInput struct {
	InstanceID  string
	StepOrdinal int
	ApproverID  string
	Decision    workflow.Decision
	Comment     string
	DecidedAt   time.Time
}

// Ledger 审批记录账本，只追加。
// Record 需在管理器的事务内调用，记录先于实例状态变化落库。
type Ledger struct {
	db *gorm.DB
}

// NewLedger 创建账本
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx 返回绑定到事务的账本
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Record 追加一条步骤决定
func (l *Ledger) Record(ctx context.Context, in RecordInput) (*workflow.ApprovalRecord, error) {
	if !in.Decision.Valid() {
		return nil, fmt.Errorf("%w: décision inconnue %q", workflow.ErrInvalidPayload, in.Decision)
	}

	exists, err := l.Exists(ctx, in.InstanceID, in.StepOrdinal)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s étape %d", workflow.ErrDuplicateStepDecision, in.InstanceID, in.StepOrdinal)
	}

	var current struct {
		CurrentStep int
	}
	res := l.db.WithContext(ctx).
		Model(&workflow.Instance{}).
		Select("current_step").
		Where("id = ?", in.InstanceID).
		Scan(&current)
	if res.Error != nil {
		return nil, fmt.Errorf("读取实例当前步骤失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", workflow.ErrInstanceNotFound, in.InstanceID)
	}
	if current.CurrentStep != in.StepOrdinal {
		return nil, fmt.Errorf("%w: étape %d demandée, étape courante %d", workflow.ErrStepOutOfSequence, in.StepOrdinal, current.CurrentStep)
	}

	decidedAt := in.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}
	record := &workflow.ApprovalRecord{
		InstanceID:  in.InstanceID,
		StepOrdinal: in.StepOrdinal,
		ApproverID:  in.ApproverID,
		Decision:    in.Decision,
		Comment:     in.Comment,
		DecidedAt:   decidedAt,
	}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s étape %d", workflow.ErrDuplicateStepDecision, in.InstanceID, in.StepOrdinal)
		}
		return nil, fmt.Errorf("写入审批记录失败: %w", err)
	}
	return record, nil
}

// Exists 是否已有该步骤的记录
func (l *Ledger) Exists(ctx context.Context, instanceID string, ordinal int) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).
		Model(&workflow.ApprovalRecord{}).
		Where("instance_id = ? AND step_ordinal = ?", instanceID, ordinal).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询审批记录失败: %w", err)
	}
	return count > 0, nil
}

// ListFor 按步骤顺序返回实例的全部记录
func (l *Ledger) ListFor(ctx context.Context, instanceID string) ([]workflow.ApprovalRecord, error) {
	var records []workflow.ApprovalRecord
	if err := l.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("step_ordinal ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询审批记录失败: %w", err)
	}
	return records, nil
}

// DecidedBy 返回 approverID 已经做过决定的实例集合
func (l *Ledger) DecidedBy(ctx context.Context, approverID string, instanceIDs []string) (map[string]struct{}, error) {
	decided := make(map[string]struct{})
	if len(instanceIDs) == 0 {
		return decided, nil
	}
	var ids []string
	if err := l.db.WithContext(ctx).
		Model(&workflow.ApprovalRecord{}).
		Where("approver_id = ? AND instance_id IN ?", approverID, instanceIDs).
		Distinct().
		Pluck("instance_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询审批人记录失败: %w", err)
	}
	for _, id := range ids {
		decided[id] = struct{}{}
	}
	return decided, nil
}

type decisionRow struct {
	InstanceID  string
	StepOrdinal int
	ApproverID  string
	Decision    workflow.Decision
	Comment     string
	DecidedAt   time.Time
	Numero      string
	Type        string
	Status      workflow.Status
	CurrentStep int
}

// EventsSince 从账本重建 since 之后仍然有效的工作流事件，供告警补偿使用。
// 已被后续决定覆盖的推进事件会被忽略。
func (l *Ledger) EventsSince(ctx context.Context, since time.Time) ([]workflow.Event, error) {
	var rows []decisionRow
	if err := l.db.WithContext(ctx).
		Table("approval_records AS r").
		Select("r.instance_id, r.step_ordinal, r.approver_id, r.decision, r.comment, r.decided_at, i.numero, i.type, i.status, i.current_step").
		Joins("JOIN workflow_instances AS i ON i.id = r.instance_id").
		Where("r.decided_at >= ?", since).
		Order("r.decided_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询审批事件失败: %w", err)
	}

	events := make([]workflow.Event, 0, len(rows))
	for _, row := range rows {
		evt := workflow.Event{
			InstanceID:   row.InstanceID,
			Numero:       row.Numero,
			WorkflowType: row.Type,
			Status:       row.Status,
			ActorID:      row.ApproverID,
			Comment:      row.Comment,
			OccurredAt:   row.DecidedAt,
		}
		switch {
		case row.Decision == workflow.DecisionRejected && row.Status == workflow.StatusRejected:
			evt.Kind = workflow.EventRejected
			evt.Step = row.StepOrdinal
		case row.Decision == workflow.DecisionApproved && row.Status == workflow.StatusApproved && row.CurrentStep == row.StepOrdinal:
			evt.Kind = workflow.EventApproved
			evt.Step = row.StepOrdinal
		case row.Decision == workflow.DecisionApproved && row.Status == workflow.StatusInProgress && row.CurrentStep == row.StepOrdinal+1:
			evt.Kind = workflow.EventStepAdvanced
			evt.Step = row.CurrentStep
		default:
			continue
		}
		events = append(events, evt)
	}

	var submitted []workflow.Instance
	if err := l.db.WithContext(ctx).
		Where("status = ? AND current_step = ? AND submitted_at >= ?", workflow.StatusInProgress, 1, since).
		Order("submitted_at ASC").
		Find(&submitted).Error; err != nil {
		return nil, fmt.Errorf("查询已提交实例失败: %w", err)
	}
	for _, inst := range submitted {
		evt := workflow.Event{
			Kind:         workflow.EventSubmitted,
			InstanceID:   inst.ID,
			Numero:       inst.Numero,
			WorkflowType: inst.Type,
			Status:       inst.Status,
			Step:         1,
			ActorID:      inst.SubmitterID,
		}
		if inst.SubmittedAt != nil {
			evt.OccurredAt = *inst.SubmittedAt
		}
		events = append(events, evt)
	}
	return events, nil
}

// errLedgerRace 账本层判定的并发失败
func errLedgerRace(err error) bool {
	return errors.Is(err, workflow.ErrDuplicateStepDecision) ||
		errors.Is(err, workflow.ErrStepOutOfSequence) ||
		errors.Is(err, workflow.ErrConflict)
}
