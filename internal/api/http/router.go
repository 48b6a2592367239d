package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Drafts         *handlers.DraftsHandler
	Casebook       *handlers.CasebookHandler
	Batch          *handlers.BatchHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Read endpoints are open; anything that
// mutates pipeline state requires a reviewer token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	app.Get("/tickets", cfg.Tickets.ListTickets)
	app.Get("/tickets/:id", cfg.Tickets.GetTicket)
	app.Get("/tickets/:id/similar", cfg.Tickets.SimilarCases)

	app.Get("/drafts", cfg.Drafts.ListDrafts)
	app.Get("/drafts/:id", cfg.Drafts.GetDraft)
	app.Get("/casebook", cfg.Casebook.ListEntries)

	app.Get("/batch/runs", cfg.Batch.Runs)
	app.Get("/batch/status", cfg.Batch.Status)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/tickets/refresh", cfg.Tickets.Refresh)
	protected.Post("/tickets/:id/analyze", cfg.Tickets.Analyze)
	protected.Post("/tickets/:id/draft", cfg.Tickets.Draft)

	protected.Post("/drafts/:id/approve", cfg.Drafts.Approve)
	protected.Post("/drafts/:id/reject", cfg.Drafts.Reject)
	protected.Post("/drafts/:id/request-edit", cfg.Drafts.RequestEdit)
	protected.Post("/drafts/:id/promote", cfg.Drafts.Promote)
	protected.Delete("/drafts/:id", cfg.Drafts.Delete)

	protected.Post("/batch/run", cfg.Batch.Run)
	protected.Post("/schedule/toggle", cfg.Batch.ToggleSchedule)
}
