package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"github.com/spf13/cobra"
)

func newDefinitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "工作流定义相关操作",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "校验工作流定义文件，省略路径时检查内置定义",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			registry, err := workflow.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("定义无效: %w", err)
			}
			return printDefinitions(cmd, registry)
		},
	})
	return cmd
}

func printDefinitions(cmd *cobra.Command, registry *workflow.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPREFIX\tSTEP\tROLE\tNAME")
	for _, def := range registry.Definitions() {
		for _, step := range def.Steps {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", def.Type, def.Prefix, step.Ordinal, step.RequiredRole, step.Name)
		}
	}
	return w.Flush()
}
