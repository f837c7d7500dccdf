package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/phistudioco/holdingmanager-sub001/api"
	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/infra"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "访问令牌工具，用于本地联调",
	}

	var userID, role string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "签发访问令牌",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret, err := api.JWTSecret(cfg)
			if err != nil {
				return err
			}
			token, err := auth.NewJWTService(secret, cfg.Auth.Issuer, nil).IssueAccessToken(userID, parsed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "用户 ID")
	issue.Flags().StringVar(&role, "role", string(auth.RoleEmploye), "角色 (employe, responsable, directeur, admin, super_admin)")
	_ = issue.MarkFlagRequired("user")

	revoke := &cobra.Command{
		Use:   "revoke <token>",
		Short: "吊销访问令牌直到其过期（需要 Redis）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := infra.InitRedis(&cfg.Redis)
			if errors.Is(err, infra.ErrRedisDisabled) {
				return errors.New("未配置 Redis，无法吊销令牌")
			}
			if err != nil {
				return err
			}
			defer infra.CloseRedis()

			secret, err := api.JWTSecret(cfg)
			if err != nil {
				return err
			}
			token := auth.ExtractTokenFromBearer(args[0])
			if err := auth.NewJWTService(secret, cfg.Auth.Issuer, client).RevokeToken(context.Background(), token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "令牌已吊销")
			return nil
		},
	}

	cmd.AddCommand(issue, revoke)
	return cmd
}
