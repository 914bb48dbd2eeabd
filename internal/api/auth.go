package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/middleware"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	sess, err := h.Provider.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if err := h.Sessions.Start(c, sess); err != nil {
		return err
	}
	return h.respondMe(c, &sess, apperr.Success("Вхід виконано", "Ласкаво просимо!"))
}

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req auth.SignUpRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	sess, err := h.Provider.SignUp(c.UserContext(), req)
	if err != nil {
		return err
	}
	if err := h.Sessions.Start(c, sess); err != nil {
		return err
	}
	c.Status(fiber.StatusCreated)
	return h.respondMe(c, &sess, apperr.Success("Реєстрація успішна", "Ваш обліковий запис створено"))
}

// Logout handles POST /api/v1/auth/logout. Signing out twice is not an error.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sess := middleware.SessionFrom(c)
	if sess != nil {
		h.Editor.CloseAll(sess.ProfileID)
		h.Provider.SignOut(c.UserContext(), *sess)
	}
	if err := h.Sessions.End(c); err != nil {
		logger.Get().Warn().Err(err).Msg("Failed to destroy session")
	}
	return c.JSON(fiber.Map{
		"redirect": "/",
		"notice":   apperr.Info("Вихід", "Ви вийшли з системи"),
	})
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	return h.respondMe(c, middleware.SessionFrom(c), apperr.Notice{})
}

func (h *Handlers) respondMe(c *fiber.Ctx, sess *auth.Session, notice apperr.Notice) error {
	visitor, err := h.Gate.Resolve(c.UserContext(), sess)
	if err != nil {
		// The response only describes the visitor, so a failed lookup
		// reports no admin rights rather than an error.
		logger.Get().Error().Err(err).Msg("Failed to resolve visitor")
		visitor = auth.Visitor{State: auth.Member, ProfileID: sess.ProfileID, Email: sess.Email}
	}
	body := fiber.Map{
		"state":   visitor.State.String(),
		"visitor": visitor,
	}
	if notice.Type != "" {
		body["notice"] = notice
	}
	return c.JSON(body)
}
