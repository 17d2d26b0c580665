package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-judge/internal/config"
	"github.com/noah-isme/gema-judge/internal/handler"
	"github.com/noah-isme/gema-judge/internal/middleware"
	"github.com/noah-isme/gema-judge/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QueueHandler      *handler.QueueHandler
	AssignmentHandler *handler.AssignmentHandler
	RunHandler        *handler.RunHandler
	ResultHandler     *handler.ResultHandler
	JudgeHandler      *handler.JudgeHandler
	ImportHandler     *handler.ImportHandler
	HealthChecks      map[string]handler.HealthCheckFunc
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	// Queue-scoped routes share one group; each handler adds its own suffixes.
	queues := api.Group("/queues")
	if deps.QueueHandler != nil {
		deps.QueueHandler.Register(queues)
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(queues)
	}
	if deps.RunHandler != nil {
		queues.Post("/:queueId/runs", middleware.RateLimit("runs", cfg.RateLimitPerMinute, time.Minute))
		deps.RunHandler.Register(queues)
	}

	if deps.ResultHandler != nil {
		deps.ResultHandler.Register(api.Group("/results"))
	}
	if deps.JudgeHandler != nil {
		deps.JudgeHandler.Register(api.Group("/judges"))
	}
	if deps.ImportHandler != nil {
		deps.ImportHandler.Register(api.Group("/imports", middleware.RateLimit("imports", cfg.RateLimitPerMinute, time.Minute)))
	}
}
