package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-upgrade-agent/internal/api/http/handlers"
	"github.com/spec-kit/ticket-upgrade-agent/internal/auth"
	"github.com/spec-kit/ticket-upgrade-agent/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Chat           *handlers.ChatHandler
	Tools          *handlers.ToolsHandler
	Upgrades       *handlers.UpgradesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	app.Post("/chat", cfg.Chat.Chat)

	tickets := app.Group("/tickets")
	tickets.Get("/:id/tiers", cfg.Upgrades.Tiers)
	tickets.Get("/:id/calendar", cfg.Upgrades.Calendar)
	tickets.Get("/:id/best-dates", cfg.Upgrades.BestDates)
	tickets.Post("/:id/upgrade-orders", cfg.Upgrades.CreateOrder)

	orders := app.Group("/upgrade-orders")
	orders.Get("/:id", cfg.Upgrades.GetOrder)
	orders.Post("/:id/confirm", cfg.Upgrades.Confirm)

	customers := app.Group("/customers")
	customers.Get("/:id/tickets", cfg.Upgrades.CustomerTickets)
	customers.Patch("/:id", cfg.Upgrades.UpdateCustomer)

	tools := app.Group("/tools", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeToolsInvoke))
	tools.Get("", cfg.Tools.Catalog)
	tools.Post("/invoke", cfg.Tools.Invoke)

	ops := app.Group("/ops", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeOpsRead))
	ops.Get("/integrity", cfg.Upgrades.Integrity)
}
