package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradewatch-api/internal/config"
	"github.com/noah-isme/gradewatch-api/internal/handler"
	"github.com/noah-isme/gradewatch-api/internal/middleware"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	UserHandler          *handler.UserHandler
	SyncHandler          *handler.SyncHandler
	ResultsHandler       *handler.ResultsHandler
	NotificationHandler  *handler.NotificationHandler
	AdminSettingsHandler *handler.AdminSettingsHandler
	JWTMiddleware        fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg *config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.UserHandler != nil {
		deps.UserHandler.RegisterPublic(app.Group("/api/v2/auth", middleware.RateLimit("auth", 10, time.Minute)))
		deps.UserHandler.Register(app.Group("/api/v2/users", jwtMiddleware))
	}

	if deps.SyncHandler != nil {
		deps.SyncHandler.Register(app.Group("/api/v2/sync", jwtMiddleware, middleware.RateLimit("sync", 6, time.Minute)))
	}

	if deps.ResultsHandler != nil {
		deps.ResultsHandler.Register(app.Group("/api/v2/results", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(app.Group("/api/v2/notifications", jwtMiddleware))
	}

	admin := app.Group("/api/v2/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.SyncHandler != nil {
		deps.SyncHandler.RegisterAdmin(admin.Group("/sync"))
	}
	if deps.AdminSettingsHandler != nil {
		deps.AdminSettingsHandler.Register(admin.Group("/settings"))
	}
}
