package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	require.NoError(t, db.AutoMigrate(&Invoice{}, &Contract{}))
	return db
}

func day(offset int) time.Time {
	return startOfDay(testNow).AddDate(0, 0, offset)
}

func seedInvoice(t *testing.T, db *gorm.DB, id string, dueOffset int, status string) {
	t.Helper()
	require.NoError(t, db.Create(&Invoice{
		ID:         id,
		Numero:     "FAC-2026-" + id,
		ClientName: "Client " + id,
		Amount:     1500,
		Currency:   "XOF",
		DueDate:    day(dueOffset),
		Status:     status,
	}).Error)
}

func seedContract(t *testing.T, db *gorm.DB, id string, endOffset int, status string) {
	t.Helper()
	require.NoError(t, db.Create(&Contract{
		ID:         id,
		Numero:     "CTR-2026-" + id,
		Title:      "Maintenance " + id,
		ClientName: "Client " + id,
		Amount:     9000,
		Currency:   "XOF",
		EndDate:    day(endOffset),
		Status:     status,
	}).Error)
}

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (p *recordingPublisher) Publish(a *Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

type stubRule struct {
	name     string
	evaluate func(ctx context.Context, now time.Time) ([]Candidate, error)
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Evaluate(ctx context.Context, now time.Time) ([]Candidate, error) {
	return r.evaluate(ctx, now)
}

type stubLock struct {
	acquired bool
	err      error
	released bool
}

func (l *stubLock) Acquire(context.Context, time.Duration) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.released = true }, true, nil
}

func newTestGenerator(t *testing.T, db *gorm.DB, rules []Rule, opts ...GeneratorOption) *Generator {
	t.Helper()
	base := []GeneratorOption{
		WithGeneratorClock(func() time.Time { return testNow }),
		WithGeneratorLogger(zaptest.NewLogger(t)),
	}
	return NewGenerator(NewStore(db), rules, append(base, opts...)...)
}

func listAll(t *testing.T, db *gorm.DB) []Alert {
	t.Helper()
	var alerts []Alert
	require.NoError(t, db.Order("type, linked_entity_id").Find(&alerts).Error)
	return alerts
}
