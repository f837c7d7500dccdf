package approval

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// NumeroSequence 按 (前缀, 年份) 递增的编号序列
type NumeroSequence struct {
	Prefix    string    `gorm:"primaryKey;size:8"`
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 表名
func (NumeroSequence) TableName() string {
	return "workflow_numero_sequences"
}

// FormatNumero 生成 {PREFIX}-{YEAR}-{0001} 形式的编号
func FormatNumero(prefix string, year, value int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, value)
}

// allocateNumero 在事务内取下一个序号。
// 首次并发插入同一 (prefix, year) 时后者触发唯一约束，由调用方重试。
func allocateNumero(ctx context.Context, tx *gorm.DB, prefix string, year int, now time.Time) (string, error) {
	res := tx.WithContext(ctx).
		Model(&NumeroSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		UpdateColumns(map[string]any{
			"last_value": gorm.Expr("last_value + ?", 1),
			"updated_at": now,
		})
	if res.Error != nil {
		return "", fmt.Errorf("递增编号序列失败: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		seq := NumeroSequence{Prefix: prefix, Year: year, LastValue: 1, UpdatedAt: now}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			return "", fmt.Errorf("创建编号序列失败: %w", err)
		}
		return FormatNumero(prefix, year, seq.LastValue), nil
	}

	var seq NumeroSequence
	if err := tx.WithContext(ctx).
		Where("prefix = ? AND year = ?", prefix, year).
		First(&seq).Error; err != nil {
		return "", fmt.Errorf("读取编号序列失败: %w", err)
	}
	return FormatNumero(prefix, year, seq.LastValue), nil
}
