package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rybaukrainy/portal/internal/middleware"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers) {
	api := app.Group("/api/v1", middleware.LoadSession(h.Sessions))

	api.Get("/health", h.HealthCheck)
	api.Get("/categories", h.GetCategories)

	// Public pages
	news := api.Group("/news")
	{
		news.Get("", h.GetNews)
		news.Get("/:id", h.GetNewsByID)
	}
	api.Get("/members", h.GetMemberDirectory)

	authGroup := api.Group("/auth")
	{
		authGroup.Post("/login", h.Login)
		authGroup.Post("/register", h.Register)
		authGroup.Post("/logout", h.Logout)
		authGroup.Get("/me", h.Me)
	}

	me := api.Group("/me", middleware.RequireSignedIn(h.Sessions, h.Gate))
	{
		me.Get("/member", h.GetMyMember)
		me.Put("/member", h.UpdateMyMember)
	}

	// Admin area. The gate runs before every handler, so rejected visitors
	// never reach a data fetch.
	admin := api.Group("/admin", middleware.RequireAdmin(middleware.AuthConfig{
		Sessions: h.Sessions,
		Gate:     h.Gate,
	}))

	articles := admin.Group("/articles")
	{
		articles.Get("", h.ListArticles)
		articles.Post("", h.CreateArticle)
		articles.Get("/:id", h.GetArticle)
		articles.Put("/:id", h.UpdateArticle)
		articles.Delete("/:id", h.DeleteArticle)
	}

	ed := admin.Group("/editor")
	{
		ed.Post("", h.OpenEditor)
		ed.Get("/:id", h.GetEditor)
		ed.Delete("/:id", h.CloseEditor)
		ed.Post("/:id/command", h.EditorCommand)
		ed.Post("/:id/input", h.EditorInput)
		ed.Post("/:id/blur", h.EditorBlur)
		ed.Post("/:id/tab", h.EditorTab)
		ed.Post("/:id/field", h.EditorField)
		ed.Post("/:id/image", h.EditorImage)
		ed.Post("/:id/image-url", h.EditorImageURL)
		ed.Post("/:id/save", h.EditorSave)
		ed.Post("/:id/cancel", h.EditorCancel)
		ed.Post("/:id/recover", h.EditorRecover)
	}

	admin.Post("/images", h.UploadImage)

	members := admin.Group("/members")
	{
		members.Get("", h.ListMembers)
		members.Post("", h.CreateMember)
		members.Get("/:id", h.GetMember)
		members.Put("/:id", h.UpdateMember)
		members.Patch("/:id/membership", h.ChangeMembership)
		members.Delete("/:id", h.DeleteMember)
	}

	payments := admin.Group("/payments")
	{
		payments.Get("", h.ListPayments)
		payments.Post("", h.AddPayment)
		payments.Patch("/:id/status", h.TogglePaymentStatus)
	}

	admin.Get("/analytics", h.GetAnalytics)

	app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))

	if h.Config != nil && h.Config.StaticDir != "" {
		app.Static("/", h.Config.StaticDir)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Сторінку не знайдено")
	})
}
