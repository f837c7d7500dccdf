package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceRepository 工作流实例仓储
type InstanceRepository interface {
	// WithTx 返回绑定到事务的仓储
	WithTx(tx *gorm.DB) InstanceRepository
	Insert(ctx context.Context, inst *workflow.Instance) error
	Get(ctx context.Context, id string) (*workflow.Instance, error)
	// GetForUpdate 在事务内读取并锁定实例（postgres 行锁）
	GetForUpdate(ctx context.Context, id string) (*workflow.Instance, error)
	// CompareAndSet 仅当实例仍处于 expectStatus/expectStep 时写入 next，否则返回 ErrConflict
	CompareAndSet(ctx context.Context, next *workflow.Instance, expectStatus workflow.Status, expectStep int) error
	ListByStatus(ctx context.Context, status workflow.Status) ([]workflow.Instance, error)
	CountByType(ctx context.Context, status workflow.Status) (map[string]int64, error)
}

type gormInstanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository 创建基于 GORM 的实例仓储
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &gormInstanceRepository{db: db}
}

func (r *gormInstanceRepository) WithTx(tx *gorm.DB) InstanceRepository {
	return &gormInstanceRepository{db: tx}
}

func (r *gormInstanceRepository) Insert(ctx context.Context, inst *workflow.Instance) error {
	if err := r.db.WithContext(ctx).Create(inst).Error; err != nil {
		return fmt.Errorf("写入工作流实例失败: %w", err)
	}
	return nil
}

func (r *gormInstanceRepository) Get(ctx context.Context, id string) (*workflow.Instance, error) {
	return r.load(r.db.WithContext(ctx), id)
}

func (r *gormInstanceRepository) GetForUpdate(ctx context.Context, id string) (*workflow.Instance, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.load(q, id)
}

func (r *gormInstanceRepository) load(q *gorm.DB, id string) (*workflow.Instance, error) {
	var inst workflow.Instance
	if err := q.Where("id = ?", id).First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", workflow.ErrInstanceNotFound, id)
		}
		return nil, fmt.Errorf("读取工作流实例失败: %w", err)
	}
	return &inst, nil
}

func (r *gormInstanceRepository) CompareAndSet(ctx context.Context, next *workflow.Instance, expectStatus workflow.Status, expectStep int) error {
	res := r.db.WithContext(ctx).
		Model(&workflow.Instance{}).
		Where("id = ? AND status = ? AND current_step = ?", next.ID, expectStatus, expectStep).
		Updates(map[string]any{
			"status":       next.Status,
			"current_step": next.CurrentStep,
			"submitted_at": next.SubmittedAt,
			"finalized_at": next.FinalizedAt,
			"updated_at":   next.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("更新工作流实例失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s 不再处于 %s/%d", workflow.ErrConflict, next.ID, expectStatus, expectStep)
	}
	return nil
}

func (r *gormInstanceRepository) ListByStatus(ctx context.Context, status workflow.Status) ([]workflow.Instance, error) {
	var list []workflow.Instance
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("submitted_at ASC, created_at ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询工作流实例失败: %w", err)
	}
	return list, nil
}

func (r *gormInstanceRepository) CountByType(ctx context.Context, status workflow.Status) (map[string]int64, error) {
	var rows []struct {
		Type  string
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&workflow.Instance{}).
		Select("type, COUNT(*) AS total").
		Where("status = ?", status).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计工作流实例失败: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Total
	}
	return counts, nil
}

// isUniqueViolation 识别唯一约束冲突（TranslateError 之外兼容驱动原始错误）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// classify 将未归类的存储错误映射为 ErrStoreUnavailable
func classify(err error) error {
	if err == nil || workflow.IsDomainError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", workflow.ErrStoreUnavailable, err)
}
