package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	LogLevel        string `mapstructure:"log_level"` // silent, error, warn, info
}

// RedisConfig Redis 配置，Host 为空表示未启用
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Enabled 是否配置了 Redis
func (c *RedisConfig) Enabled() bool {
	return c.Host != "" || len(c.SentinelAddrs) > 0 || len(c.ClusterAddrs) > 0
}

// Addr 单节点地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig 访问令牌校验配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// WorkflowConfig 工作流配置
type WorkflowConfig struct {
	DefinitionsPath string `mapstructure:"definitions_path"` // 为空时使用内置定义
}

// AlertsConfig 告警生成配置
type AlertsConfig struct {
	OverdueCriticalDays    int           `mapstructure:"overdue_critical_days"`
	OverdueHighDays        int           `mapstructure:"overdue_high_days"`
	DueSoonDays            int           `mapstructure:"due_soon_days"`
	DueSoonHighDays        int           `mapstructure:"due_soon_high_days"`
	ContractExpiryDays     int           `mapstructure:"contract_expiry_days"`
	ContractExpiryHighDays int           `mapstructure:"contract_expiry_high_days"`
	WorkflowEventLookback  time.Duration `mapstructure:"workflow_event_lookback"`
	Schedule               string        `mapstructure:"schedule"` // cron 表达式，空表示不定时扫描
	ScanLockTTL            time.Duration `mapstructure:"scan_lock_ttl"`
	WorkerConcurrency      int           `mapstructure:"worker_concurrency"`
	Webhook                WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig 告警外发配置，URL 为空表示不外发
type WebhookConfig struct {
	URL         string        `mapstructure:"url"`
	Secret      string        `mapstructure:"secret"`
	MinSeverity string        `mapstructure:"min_severity"`
	MaxRetry    int           `mapstructure:"max_retry"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("auth.issuer", "holdingmanager")

	v.SetDefault("alerts.overdue_critical_days", 30)
	v.SetDefault("alerts.overdue_high_days", 14)
	v.SetDefault("alerts.due_soon_days", 7)
	v.SetDefault("alerts.due_soon_high_days", 3)
	v.SetDefault("alerts.contract_expiry_days", 30)
	v.SetDefault("alerts.contract_expiry_high_days", 7)
	v.SetDefault("alerts.workflow_event_lookback", "168h")
	v.SetDefault("alerts.schedule", "*/15 * * * *")
	v.SetDefault("alerts.scan_lock_ttl", "10m")
	v.SetDefault("alerts.worker_concurrency", 2)
	v.SetDefault("alerts.webhook.min_severity", "high")
	v.SetDefault("alerts.webhook.max_retry", 3)
	v.SetDefault("alerts.webhook.timeout", "10s")
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		v.SetConfigName(env)
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 环境变量优先级高于配置文件：APP_DATABASE_HOST
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("不支持的运行模式: %s (可选: debug, release, test)", c.Server.Mode)
	}
	switch c.Database.Driver {
	case "postgres":
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite 驱动需要配置 database.path")
		}
	default:
		return fmt.Errorf("不支持的数据库驱动: %s (可选: postgres, sqlite)", c.Database.Driver)
	}
	if c.Alerts.OverdueHighDays >= c.Alerts.OverdueCriticalDays {
		return fmt.Errorf("alerts.overdue_high_days 必须小于 overdue_critical_days")
	}
	if c.Alerts.DueSoonHighDays > c.Alerts.DueSoonDays {
		return fmt.Errorf("alerts.due_soon_high_days 不能大于 due_soon_days")
	}
	if c.Alerts.Webhook.URL != "" {
		switch c.Alerts.Webhook.MinSeverity {
		case "", "low", "medium", "high", "critical":
		default:
			return fmt.Errorf("alerts.webhook.min_severity 无效: %s", c.Alerts.Webhook.MinSeverity)
		}
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
