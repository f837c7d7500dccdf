package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlertNotFound 告警不存在
var ErrAlertNotFound = errors.New("alert not found")

// openDedupIndex 未解决告警的部分唯一索引，并发扫描的最后防线
const openDedupIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_alerts_open_dedup
ON alerts (type, linked_entity_type, linked_entity_id) WHERE resolved = false`

// Migrate 创建告警表与去重索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Alert{}); err != nil {
		return fmt.Errorf("迁移告警表失败: %w", err)
	}
	if err := db.Exec(openDedupIndex).Error; err != nil {
		return fmt.Errorf("创建告警去重索引失败: %w", err)
	}
	return nil
}

// Store 告警仓储
type Store struct {
	db *gorm.DB
}

// NewStore 创建告警仓储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert 插入告警；与未解决告警冲突时不写入并返回 false
func (s *Store) Insert(ctx context.Context, a *Alert) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(a)
	if res.Error != nil {
		return false, fmt.Errorf("写入告警失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Exists 查询同键告警是否存在；unresolvedOnly 为 false 时已解决的也计入
func (s *Store) Exists(ctx context.Context, key DedupKey, unresolvedOnly bool) (bool, error) {
	q := s.db.WithContext(ctx).
		Model(&Alert{}).
		Where("type = ? AND linked_entity_type = ? AND linked_entity_id = ?", key.Type, key.LinkedEntityType, key.LinkedEntityID)
	if unresolvedOnly {
		q = q.Scopes(common.Unresolved())
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询告警失败: %w", err)
	}
	return count > 0, nil
}

// ExistsUnresolved 是否存在同键的未解决告警
func (s *Store) ExistsUnresolved(ctx context.Context, key DedupKey) (bool, error) {
	return s.Exists(ctx, key, true)
}

// ListFilter 未解决告警查询条件
type ListFilter struct {
	Type       string
	Severity   Severity
	UnreadOnly bool
	common.PaginationRequest
}

// ListUnresolved 最新的未解决告警
func (s *Store) ListUnresolved(ctx context.Context, filter ListFilter) ([]Alert, error) {
	q := s.db.WithContext(ctx).Scopes(common.Unresolved())
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.UnreadOnly {
		q = q.Where(map[string]any{"read": false})
	}
	var alerts []Alert
	if err := q.Order("created_at DESC").Order("id ASC").
		Scopes(common.Paginate(filter.PaginationRequest)).
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("查询告警列表失败: %w", err)
	}
	return alerts, nil
}

// Get 读取告警
func (s *Store) Get(ctx context.Context, id string) (*Alert, error) {
	var a Alert
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
		}
		return nil, fmt.Errorf("读取告警失败: %w", err)
	}
	return &a, nil
}

// MarkRead 标记已读
func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, id, map[string]any{"read": true, "read_at": at})
}

// Resolve 标记已解决，释放去重键
func (s *Store) Resolve(ctx context.Context, id, resolvedBy string, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"resolved":    true,
		"resolved_at": at,
		"resolved_by": resolvedBy,
		"read":        true,
	})
}

func (s *Store) update(ctx context.Context, id string, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新告警失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return nil
}
