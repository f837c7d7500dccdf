package metrics

import (
	"context"
	"database/sql"
	"time"
)

// CountFunc 返回按工作流类型统计的进行中实例数量
type CountFunc func(ctx context.Context) (map[string]int64, error)

// SystemCollector 定期采集数据库连接池与工作流积压
type SystemCollector struct {
	db       *sql.DB
	count    CountFunc
	interval time.Duration
}

// NewSystemCollector 创建采集器，count 可为空
func NewSystemCollector(db *sql.DB, count CountFunc, interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemCollector{db: db, count: count, interval: interval}
}

// Run 阻塞采集直到 ctx 取消
func (c *SystemCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.CollectOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(ctx)
		}
	}
}

// CollectOnce 采集一次
func (c *SystemCollector) CollectOnce(ctx context.Context) {
	if c.db != nil {
		stats := c.db.Stats()
		DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
		DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	}

	if c.count == nil {
		return
	}
	countCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	counts, err := c.count(countCtx)
	if err != nil {
		return
	}
	WorkflowsInProgress.Reset()
	for workflowType, n := range counts {
		WorkflowsInProgress.WithLabelValues(workflowType).Set(float64(n))
	}
}
