package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/intervention-service/internal/api/http"
	"github.com/spec-kit/intervention-service/internal/api/http/handlers"
	"github.com/spec-kit/intervention-service/internal/audit"
	"github.com/spec-kit/intervention-service/internal/auth"
	"github.com/spec-kit/intervention-service/internal/config"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/events"
	"github.com/spec-kit/intervention-service/internal/observability"
	"github.com/spec-kit/intervention-service/internal/persistence"
	"github.com/spec-kit/intervention-service/internal/ratelimit"
	"github.com/spec-kit/intervention-service/internal/repository"
	"github.com/spec-kit/intervention-service/internal/repository/memstore"
	"github.com/spec-kit/intervention-service/internal/service"
	"github.com/spec-kit/intervention-service/internal/storage"
	"github.com/spec-kit/intervention-service/internal/worker"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var adminPassword string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(adminPassword)
		},
	}
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "create an \"admin\" user with this password when it does not exist")
	return cmd
}

func serve(adminPassword string) error {
	cfg, logger := bootstrap()
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store := openStore(pg)
	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(store.Audit())
	dispatcher := events.NewInMemoryDispatcher()

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
	if redis.Enabled() {
		worker.StartEventForwarder(dispatcher, worker.NewRedisPublisher(redis.Client), logger)
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: store.Users(), Logger: logger})
	if adminPassword != "" {
		ensureAdmin(ctx, authService, adminPassword, logger)
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:   store,
		Audit:   recorder,
		Metrics: metrics,
		Logger:  logger,
	})
	interventionService := service.NewInterventionService(service.InterventionDependencies{
		Store:      store,
		Audit:      recorder,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	clientService := service.NewClientService(service.ClientDependencies{Store: store, Audit: recorder, Logger: logger})
	userService := service.NewUserService(service.UserDependencies{
		Users:      store.Users(),
		Auth:       authService,
		Audit:      recorder,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})

	files, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init file storage", zap.Error(err))
	}

	var counter ratelimit.Counter = ratelimit.NewMemoryCounter()
	if redis.Enabled() {
		counter = ratelimit.NewRedisCounter(redis.Client)
	}
	limiter := ratelimit.NewLimiter(counter, recorder, logger, cfg.RateLimit.Enabled)

	app := httptransport.NewApp(cfg.App.Name, bodyLimit(cfg.Storage), cfg.App.RequestTimeout(), logger, metrics)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Interventions:  handlers.NewInterventionsHandler(interventionService),
		Attachments:    handlers.NewAttachmentsHandler(interventionService, files, logger),
		Clients:        handlers.NewClientsHandler(clientService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users(), recorder, logger),
		Roles:          auth.NewRoleGate(recorder, logger),
		Limiter:        limiter,
		Limits:         rateLimits(cfg.RateLimit),
		Metrics:        metrics.Handler(),
		UploadsPrefix:  cfg.Storage.PublicBaseURL,
		UploadsDir:     cfg.Storage.RootDir,
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

func openStore(pg *persistence.Postgres) repository.Store {
	if pg.Enabled() {
		return repository.NewPostgresStore(pg.Pool)
	}
	return memstore.New()
}

func ensureAdmin(ctx context.Context, authService *service.AuthService, password string, logger *zap.Logger) {
	_, err := authService.RegisterUser(ctx, "admin", "Administrador", "", password, []domain.Role{domain.RoleAdmin})
	switch {
	case err == nil:
		logger.Info("admin user created")
	case apperrors.IsKind(err, apperrors.KindConflict):
		logger.Info("admin user already exists")
	default:
		logger.Fatal("failed to create admin user", zap.Error(err))
	}
}

func rateLimits(cfg config.RateLimitConfig) httptransport.RateLimits {
	return httptransport.RateLimits{
		General: ratelimit.Bucket{Name: "general", Max: cfg.GeneralMax, Window: cfg.GeneralWindow},
		Create:  ratelimit.Bucket{Name: "create", Max: cfg.CreateMax, Window: cfg.CreateWindow},
		Upload:  ratelimit.Bucket{Name: "upload", Max: cfg.UploadMax, Window: cfg.UploadWindow},
		Auth:    ratelimit.Bucket{Name: "auth", Max: cfg.AuthMax, Window: cfg.AuthWindow},
	}
}

// bodyLimit leaves room for several files of the maximum size in one upload.
func bodyLimit(cfg config.StorageConfig) int {
	const minimum = 4 << 20
	limit := int(cfg.MaxUploadBytes) * 5
	if limit < minimum {
		return minimum
	}
	return limit
}
