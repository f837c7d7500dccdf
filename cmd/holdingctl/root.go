package main

import (
	"fmt"
	"os"

	"github.com/phistudioco/holdingmanager-sub001/internal/config"
	"github.com/phistudioco/holdingmanager-sub001/internal/infra"
	"github.com/phistudioco/holdingmanager-sub001/internal/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfgFile  string
	appEnv   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "holdingctl",
	Short: "控股管理审批与告警运维工具",
	Long: `holdingctl 用于运维审批工作流与到期告警服务。

示例:
  holdingctl migrate --config config/dev.yaml
  holdingctl definitions check config/workflows.yaml
  holdingctl alerts scan --requested-by ops
  holdingctl token issue --user u-42 --role directeur`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Options{Level: logLevel, Format: "console", OutputPath: "stderr"})
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&appEnv, "env", envOr("APP_ENV", "dev"), "环境名称")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别 (debug, info, warn, error)")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newDefinitionsCmd())
	rootCmd.AddCommand(newAlertsCmd())
	rootCmd.AddCommand(newTokenCmd())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(appEnv, cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDatabase 加载配置并打开数据库，调用方负责关闭
func openDatabase() (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
