package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/analytics"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/config"
	"github.com/rybaukrainy/portal/internal/editor"
	"github.com/rybaukrainy/portal/internal/ingest"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/register"
)

// Version is reported by the health check
const Version = "1.0.0"

// Deps are the services the handlers work with. Every admin handler gets
// the gate through the middleware; none of them keeps auth state of its own.
type Deps struct {
	Config    *config.Config
	Provider  *auth.Provider
	Gate      *auth.Gate
	Sessions  *auth.Sessions
	Articles  *register.ArticleRegister
	Members   *register.MemberRegister
	Payments  *register.PaymentRegister
	Analytics *analytics.Service
	Editor    *editor.Registry
	Uploader  *ingest.Uploader
	Metrics   *metrics.Metrics
}

type Handlers struct {
	Deps
	started time.Time
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps, started: time.Now()}
}

// HealthCheck handles the /health endpoint
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"time":    time.Now().Format(time.RFC3339),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// withNotice adds a success notice to a response body
func withNotice(body fiber.Map, title, msg string) fiber.Map {
	body["notice"] = apperr.Success(title, msg)
	return body
}

// confirmed reads the confirmation flag of destructive requests
func confirmed(c *fiber.Ctx) bool {
	return c.QueryBool("confirm", false)
}
