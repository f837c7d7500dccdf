package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: ./holding.db
`)
	cfg, err := Load("test", path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Alerts.OverdueCriticalDays)
	assert.Equal(t, 14, cfg.Alerts.OverdueHighDays)
	assert.Equal(t, 7, cfg.Alerts.DueSoonDays)
	assert.Equal(t, "*/15 * * * *", cfg.Alerts.Schedule)
	assert.Equal(t, 10*time.Minute, cfg.Alerts.ScanLockTTL)
	assert.Equal(t, 168*time.Hour, cfg.Alerts.WorkflowEventLookback)
	assert.Equal(t, "./holding.db", cfg.Database.GetDSN())
	assert.False(t, cfg.Redis.Enabled())
	assert.Same(t, cfg, Get())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  host: db.local
  dbname: holding
  user: holding
alerts:
  due_soon_days: 10
`)
	t.Setenv("APP_DATABASE_HOST", "db.prod")
	t.Setenv("APP_ALERTS_DUE_SOON_DAYS", "5")

	cfg, err := Load("test", path)
	require.NoError(t, err)
	assert.Equal(t, "db.prod", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Alerts.DueSoonDays)
	assert.Contains(t, cfg.Database.GetDSN(), "host=db.prod port=5432")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	_, err := Load("test", writeConfig(t, "database:\n  driver: mysql\n"))
	require.Error(t, err)

	_, err = Load("test", writeConfig(t, "database:\n  driver: sqlite\n"))
	require.Error(t, err)

	_, err = Load("test", writeConfig(t, `
database:
  driver: postgres
alerts:
  overdue_high_days: 40
`))
	require.Error(t, err)
}

func TestLoadRejectsUnknownServerMode(t *testing.T) {
	_, err := Load("test", writeConfig(t, `
server:
  mode: staging
database:
  driver: sqlite
  path: ./holding.db
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}

func TestLoadWebhookSettings(t *testing.T) {
	cfg, err := Load("test", writeConfig(t, `
database:
  driver: sqlite
  path: ./holding.db
alerts:
  webhook:
    url: https://hooks.example.test/alerts
    secret: abc
`))
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.Alerts.Webhook.MinSeverity)
	assert.Equal(t, 3, cfg.Alerts.Webhook.MaxRetry)
	assert.Equal(t, 10*time.Second, cfg.Alerts.Webhook.Timeout)

	_, err = Load("test", writeConfig(t, `
database:
  driver: sqlite
  path: ./holding.db
alerts:
  webhook:
    url: https://hooks.example.test/alerts
    min_severity: urgent
`))
	require.Error(t, err)
}
