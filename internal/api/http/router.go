package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/intervention-service/internal/access"
	"github.com/spec-kit/intervention-service/internal/api/http/handlers"
	"github.com/spec-kit/intervention-service/internal/auth"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/ratelimit"
)

// RateLimits holds the buckets applied per route group.
type RateLimits struct {
	General ratelimit.Bucket
	Create  ratelimit.Bucket
	Upload  ratelimit.Bucket
	Auth    ratelimit.Bucket
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Interventions  *handlers.InterventionsHandler
	Attachments    *handlers.AttachmentsHandler
	Clients        *handlers.ClientsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Roles          *auth.RoleGate
	Limiter        *ratelimit.Limiter
	Limits         RateLimits
	Metrics        http.Handler
	// UploadsPrefix and UploadsDir serve stored files when both are set.
	UploadsPrefix string
	UploadsDir    string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Post("/auth/login", cfg.Limiter.Middleware(cfg.Limits.Auth), cfg.Auth.Login)

	field := cfg.Roles.Require(auth.FieldRoles...)
	privileged := cfg.Roles.Require(access.PrivilegedRoles...)
	general := cfg.Limiter.Middleware(cfg.Limits.General)
	create := cfg.Limiter.Middleware(cfg.Limits.Create)
	upload := cfg.Limiter.Middleware(cfg.Limits.Upload)

	tickets := app.Group("/tickets", general, cfg.AuthMiddleware.Handle, field)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", create, privileged, cfg.Tickets.CreateTicket)
	tickets.Get("/:numero", cfg.Tickets.GetTicket)
	tickets.Put("/:numero", privileged, cfg.Tickets.UpdateTicket)
	tickets.Delete("/:numero", privileged, cfg.Tickets.DeleteTicket)
	tickets.Post("/:numero/close", privileged, cfg.Tickets.CloseTicket)
	tickets.Get("/:numero/intervenciones", cfg.Interventions.List)
	tickets.Post("/:numero/intervenciones", create, cfg.Interventions.Create)

	interventions := app.Group("/intervenciones", general, cfg.AuthMiddleware.Handle, field)
	interventions.Get("/:id", cfg.Interventions.Get)
	interventions.Put("/:id", cfg.Interventions.Update)
	interventions.Delete("/:id", cfg.Interventions.Delete)
	interventions.Post("/:id/materiales", cfg.Interventions.AddMaterials)
	interventions.Put("/:id/materiales/:materialId", cfg.Interventions.UpdateMaterial)
	interventions.Delete("/:id/materiales/:materialId", cfg.Interventions.DeleteMaterial)
	interventions.Put("/:id/adjuntos", cfg.Interventions.UpdateAdjuntos)
	interventions.Post("/:id/adjuntos", upload, cfg.Attachments.Upload)
	interventions.Delete("/:id/adjuntos/:fileId", cfg.Attachments.Remove)
	interventions.Post("/:id/firma", upload, cfg.Attachments.Signature)

	clients := app.Group("/clients", general, cfg.AuthMiddleware.Handle, field)
	clients.Get("/", cfg.Clients.ListClients)
	clients.Post("/", create, privileged, cfg.Clients.CreateClient)
	clients.Get("/:codigoCliente", cfg.Clients.GetClient)
	clients.Get("/:codigoCliente/contracts", cfg.Clients.ClientContracts)
	clients.Post("/:codigoCliente/contracts", create, privileged, cfg.Clients.CreateContract)

	contracts := app.Group("/contracts", general, cfg.AuthMiddleware.Handle, field)
	contracts.Get("/", cfg.Clients.ListContracts)
	contracts.Get("/:id", cfg.Clients.GetContract)

	app.Get("/technicians", general, cfg.AuthMiddleware.Handle, field, cfg.Users.ListTechnicians)

	users := app.Group("/users", general, cfg.AuthMiddleware.Handle, cfg.Roles.Require(domain.RoleAdmin))
	users.Get("/", cfg.Users.ListUsers)
	users.Post("/", create, cfg.Users.CreateUser)
	users.Get("/:id", cfg.Users.GetUser)
	users.Put("/:id", cfg.Users.UpdateUser)
	users.Post("/:id/reset-password", cfg.Users.ResetPassword)

	if cfg.UploadsPrefix != "" && cfg.UploadsDir != "" {
		app.Static(cfg.UploadsPrefix, cfg.UploadsDir)
	}
}
