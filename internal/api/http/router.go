package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk-chat/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-chat/internal/auth"
	"github.com/spec-kit/helpdesk-chat/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Customers      *handlers.CustomersHandler
	Technicians    *handlers.TechniciansHandler
	Tickets        *handlers.TicketsHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	// UploadDir is served read-only under UploadPrefix when set.
	UploadDir    string
	UploadPrefix string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	if cfg.UploadDir != "" && cfg.UploadPrefix != "" {
		app.Static(cfg.UploadPrefix, cfg.UploadDir)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Customers.Register)
	authGroup.Post("/customers/login", cfg.Customers.Login)
	authGroup.Post("/technicians/register", cfg.Technicians.Register)
	authGroup.Post("/technicians/login", cfg.Technicians.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	api.Post("/tickets", auth.RequireCustomer(), cfg.Tickets.CreateTicket)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/tickets/:id/timeline", cfg.Tickets.Timeline)
	api.Get("/tickets/:id/closed", cfg.Tickets.Closed)
	api.Get("/tickets/:id/history", cfg.Tickets.History)
	api.Post("/tickets/:id/start", auth.RequireTechnician(), cfg.Tickets.Start)
	api.Post("/tickets/:id/close", cfg.Tickets.Close)
	api.Post("/tickets/:id/reopen", auth.RequireTechnician(), cfg.Tickets.Reopen)
	api.Post("/tickets/:id/files", cfg.Tickets.Upload)
	api.Get("/technicians/me/tickets", auth.RequireTechnician(), cfg.Technicians.MyTickets)

	app.Get("/ws", cfg.AuthMiddleware.Handle, cfg.Chat.Upgrade, cfg.Chat.Serve())
}
