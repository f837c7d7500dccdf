package main

import (
	"fmt"

	"github.com/phistudioco/holdingmanager-sub001/api"
	"github.com/phistudioco/holdingmanager-sub001/internal/infra"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或升级工作流与告警表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer infra.CloseDatabase()

			if err := infra.RunMigrations(db, api.Migrators()...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "迁移完成")
			return nil
		},
	}
}
