package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/api"
	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/infra"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/spf13/cobra"
)

func newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "告警相关操作",
	}
	cmd.AddCommand(newAlertsScanCmd())
	return cmd
}

func newAlertsScanCmd() *cobra.Command {
	var (
		requestedBy string
		enqueue     bool
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "立即执行一次到期告警扫描",
		Long: `默认在当前进程内同步执行扫描并输出摘要；
--enqueue 时改为投递 alerts:scan 任务，由 Worker 执行。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer infra.CloseDatabase()

			container, err := api.InitContainer(db, cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if enqueue {
				if container.QueueClient == nil {
					return errors.New("未配置 Redis，无法投递扫描任务")
				}
				id, err := container.QueueClient.EnqueueAlertScan(ctx, tasks.AlertScanPayload{
					Trigger:     alert.TriggerCLI,
					RequestedBy: requestedBy,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已投递扫描任务: %s\n", id)
				return nil
			}

			summary := container.AlertService.Scan(ctx, alert.Trigger{Source: alert.TriggerCLI, RequestedBy: requestedBy})
			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if summary.AllFailed() {
				return errors.New("全部规则执行失败")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestedBy, "requested-by", "holdingctl", "记录在摘要中的发起人")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "投递到任务队列而不是本地执行")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "扫描超时")
	return cmd
}
