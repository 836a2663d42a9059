package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"videovault/internal/domain/auth"
	"videovault/internal/domain/user"
	jwtsvc "videovault/internal/pkg/jwt"
)

func newSeedAdminCommand(ctx *commandContext) *cobra.Command {
	var (
		username string
		email    string
		password string
		org      string
	)

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if strings.TrimSpace(email) == "" || len(password) < 6 {
				return errors.New("seed-admin: --email and a password of at least 6 characters are required")
			}

			cfg, log, err := ctx.ensure()
			if err != nil {
				return err
			}
			db, err := ctx.openDatabase()
			if err != nil {
				return err
			}

			svc := auth.NewService(user.NewRepository(db), jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL), log)
			u, err := svc.CreateUser(cmd.Context(), username, email, password, user.RoleAdmin, org)
			if err != nil {
				return fmt.Errorf("seed-admin: %w", err)
			}
			log.Info("admin created", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id %d)\n", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "Admin username")
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (defaults to $ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&org, "organization", "default", "Organization name")
	return cmd
}
