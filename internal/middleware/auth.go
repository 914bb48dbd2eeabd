package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/logger"
)

// Locals keys set by the auth middleware
const (
	LocalSession = "session"
	LocalVisitor = "visitor"
)

// SessionSource reads the auth session of a request
type SessionSource interface {
	GetSession(c *fiber.Ctx) (*auth.Session, error)
}

// AdminGate decides whether a session may enter the admin area
type AdminGate interface {
	RequireAdmin(ctx context.Context, sess *auth.Session) (auth.Visitor, error)
}

// AuthConfig defines the config for the admin middleware
type AuthConfig struct {
	// Next defines a function to skip middleware.
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Sessions reads the session cookie.
	// Required.
	Sessions SessionSource

	// Gate checks the role of the session.
	// Required.
	Gate AdminGate
}

// LoadSession stores the request's session, if any, in Locals without
// requiring one.
func LoadSession(sessions SessionSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.GetSession(c)
		if err != nil {
			logger.Get().Warn().Err(err).Str("path", c.Path()).Msg("Ignoring unreadable session")
			return c.Next()
		}
		if sess != nil {
			c.Locals(LocalSession, sess)
		}
		return c.Next()
	}
}

// SignedInGate decides whether a session belongs to a signed-in account
type SignedInGate interface {
	RequireSignedIn(ctx context.Context, sess *auth.Session) (auth.Visitor, error)
}

// RequireAdmin rejects the request before any handler runs unless the
// session belongs to an admin. The error carries the redirect and notice.
func RequireAdmin(cfg AuthConfig) fiber.Handler {
	return guard(cfg.Next, cfg.Sessions, cfg.Gate.RequireAdmin, "Admin access denied")
}

// RequireSignedIn rejects anonymous requests. Members and admins pass.
func RequireSignedIn(sessions SessionSource, gate SignedInGate) fiber.Handler {
	return guard(nil, sessions, gate.RequireSignedIn, "Sign-in required")
}

func guard(next func(c *fiber.Ctx) bool, sessions SessionSource, check func(context.Context, *auth.Session) (auth.Visitor, error), denied string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if next != nil && next(c) {
			return c.Next()
		}

		sess, err := sessions.GetSession(c)
		if err != nil {
			// An unreadable cookie is treated like no session.
			logger.Get().Warn().Err(err).Str("path", c.Path()).Msg("Ignoring unreadable session")
			sess = nil
		}

		visitor, err := check(c.UserContext(), sess)
		if err != nil {
			logger.Get().Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Str("reason", apperr.KindOf(err).String()).
				Msg(denied)
			return err
		}

		c.Locals(LocalSession, sess)
		c.Locals(LocalVisitor, visitor)
		return c.Next()
	}
}

// SessionFrom returns the session stored by LoadSession or a guard
func SessionFrom(c *fiber.Ctx) *auth.Session {
	sess, _ := c.Locals(LocalSession).(*auth.Session)
	return sess
}

// VisitorFrom returns the visitor stored by RequireAdmin or RequireSignedIn
func VisitorFrom(c *fiber.Ctx) auth.Visitor {
	v, _ := c.Locals(LocalVisitor).(auth.Visitor)
	return v
}
