package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/persistence"
	"github.com/spec-kit/intervention-service/internal/repository"
	"github.com/spec-kit/intervention-service/internal/service"
)

// cliActor attributes command line changes in the audit trail.
var cliActor = domain.Actor{Roles: []domain.Role{domain.RoleAdmin}, UserAgent: "intervention-service cli"}

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage client records",
	}
	cmd.AddCommand(clientCreateCmd())
	return cmd
}

func clientCreateCmd() *cobra.Command {
	var (
		code    string
		name    string
		contact string
		phone   string
		email   string
	)
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a client in Postgres",
		Example: `  intervention-service client create --code C001 --name "Talleres Norte SL" --phone 910000000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := bootstrap()
			defer logger.Sync() //nolint:errcheck

			ctx := context.Background()
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if !pg.Enabled() {
				return errors.New("POSTGRES_DSN is required")
			}

			store := repository.NewPostgresStore(pg.Pool)
			clients := service.NewClientService(service.ClientDependencies{
				Store:  store,
				Audit:  audit.NewRecorder(store.Audit()),
				Logger: logger,
			})
			client, err := clients.Create(ctx, service.ClientCreateInput{
				Code:        code,
				CompanyName: name,
				Contact:     flagValue(cmd, "contact", contact),
				Phone:       flagValue(cmd, "phone", phone),
				Email:       flagValue(cmd, "email", email),
			}, cliActor)
			if err != nil {
				return err
			}
			logger.Info("client created", zap.String("code", client.Code))
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "client code referenced by tickets")
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&contact, "contact", "", "contact person")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&email, "email", "", "contact address")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// flagValue returns nil for flags the caller did not pass.
func flagValue(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
