package auth

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/rybaukrainy/portal/internal/config"
)

// CookieName is the session cookie
const CookieName = "portal_session"

const (
	keyProfileID  = "profile_id"
	keyEmail      = "email"
	keySignedInAt = "signed_in_at"
)

// Sessions keeps auth sessions in Fiber's session store, keyed by cookie
type Sessions struct {
	store *session.Store
}

func NewSessions(cfg *config.Config) *Sessions {
	return &Sessions{
		store: session.New(session.Config{
			Expiration:     cfg.SessionTTL,
			KeyLookup:      "cookie:" + CookieName,
			CookieDomain:   cfg.CookieDomain,
			CookieSecure:   cfg.CookieSecure,
			CookieHTTPOnly: true,
			CookieSameSite: "Lax",
		}),
	}
}

// GetSession returns the session of the request, nil when anonymous
func (s *Sessions) GetSession(c *fiber.Ctx) (*Session, error) {
	sess, err := s.store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	id, _ := sess.Get(keyProfileID).(string)
	if id == "" {
		return nil, nil
	}
	email, _ := sess.Get(keyEmail).(string)
	signedIn, _ := sess.Get(keySignedInAt).(int64)
	return &Session{ProfileID: id, Email: email, SignedInAt: time.Unix(signedIn, 0).UTC()}, nil
}

// Start binds a fresh session id to the signed-in profile
func (s *Sessions) Start(c *fiber.Ctx, auth Session) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(keyProfileID, auth.ProfileID)
	sess.Set(keyEmail, auth.Email)
	sess.Set(keySignedInAt, auth.SignedInAt.Unix())
	return sess.Save()
}

// End destroys the session of the request
func (s *Sessions) End(c *fiber.Ctx) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	return sess.Destroy()
}
