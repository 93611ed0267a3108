package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-engine/internal/api/http/handlers"
	"github.com/spec-kit/complaint-engine/internal/auth"
	"github.com/spec-kit/complaint-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. All complaint mutation routes require an
// authenticated staff principal.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	managerOnly := auth.RequireStaffRole(domain.StaffRoleManager, domain.StaffRoleCEO)

	complaints := protected.Group("/complaints")
	complaints.Post("", cfg.Complaints.Create)
	complaints.Get("", cfg.Complaints.List)
	complaints.Post("/auto-assign-batch", managerOnly, cfg.Complaints.AutoAssignBatch)
	complaints.Get("/:id", cfg.Complaints.Get)
	complaints.Get("/:id/history", cfg.Complaints.History)
	complaints.Post("/:id/assign", cfg.Complaints.Assign)
	complaints.Post("/:id/reassign", cfg.Complaints.Reassign)
	complaints.Post("/:id/auto-assign", cfg.Complaints.AutoAssign)
	complaints.Post("/:id/status", cfg.Complaints.TransitionStatus)
	complaints.Post("/:id/close", cfg.Complaints.Close)

	protected.Get("/offices/:id/available-staff", cfg.Staff.AvailableStaff)
	protected.Get("/staff/:id/workload", cfg.Staff.Workload)
	protected.Get("/sla/stats", managerOnly, cfg.Complaints.SLAStats)
}
