package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/persistence"
	"github.com/spec-kit/intervention-service/internal/repository"
	"github.com/spec-kit/intervention-service/internal/service"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		username    string
		password    string
		displayName string
		email       string
		roles       []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user in Postgres",
		Example: `  intervention-service user create --username ana --password s3cret \
    --display-name "Ana Ruiz" --role TECNICO`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseRoles(roles)
			if err != nil {
				return err
			}
			cfg, logger := bootstrap()
			defer logger.Sync() //nolint:errcheck

			ctx := context.Background()
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if !pg.Enabled() {
				return errors.New("POSTGRES_DSN is required; use serve --admin-password for the in-memory store")
			}

			store := repository.NewPostgresStore(pg.Pool)
			authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: store.Users(), Logger: logger})
			user, err := authService.RegisterUser(ctx, username, displayName, email, password, parsed)
			if err != nil {
				return err
			}
			logger.Info("user created", zap.String("id", user.ID), zap.String("username", user.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown on interventions")
	cmd.Flags().StringVar(&email, "email", "", "contact address")
	cmd.Flags().StringSliceVar(&roles, "role", []string{string(domain.RoleTechnician)}, "role to grant, repeatable")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func parseRoles(values []string) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(values))
	for _, value := range values {
		role := domain.Role(strings.ToUpper(strings.TrimSpace(value)))
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", value)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
