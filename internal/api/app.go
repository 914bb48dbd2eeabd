package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rybaukrainy/portal/internal/middleware"
)

// NewApp builds the Fiber app with the global middleware and all routes
func NewApp(h *Handlers) *fiber.App {
	cfg := fiber.Config{
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    16 << 20,
	}
	if h.Config != nil {
		cfg.ReadTimeout = h.Config.HTTPTimeout
		cfg.WriteTimeout = h.Config.HTTPTimeout
		if limit := int(h.Config.MaxFileSize) + 1<<20; limit > cfg.BodyLimit {
			cfg.BodyLimit = limit
		}
	}
	app := fiber.New(cfg)

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(h.Metrics))

	SetupRoutes(app, h)
	return app
}
