package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/draft"
	"github.com/rybaukrainy/portal/internal/middleware"
	"github.com/rybaukrainy/portal/internal/models"
)

// articleRequest is the admin form for an article outside the editor.
// Tags come as a comma separated string, like in the editor.
type articleRequest struct {
	Title       string `json:"title" validate:"required"`
	Summary     string `json:"summary" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	PublishDate string `json:"publish_date"`
	Category    string `json:"category"`
	Author      string `json:"author"`
	Tags        string `json:"tags"`
	BaseHash    string `json:"base_hash"`
	Force       bool   `json:"force"`
}

// article builds the article through the draft model so the API and the
// editor normalize fields the same way
func (r articleRequest) article(id string) models.Article {
	d := draft.CreateEmpty(time.Now())
	d.ID = id
	d.Title = r.Title
	d.Summary = r.Summary
	d.Content = r.Content
	d.ImageURL = r.ImageURL
	d.PublishDate = r.PublishDate
	if r.Category != "" {
		d.Category = r.Category
	}
	d.Author = r.Author
	d.Tags = draft.FormatTags(r.Tags)
	return d.SerializeForSave(time.Now())
}

// ListArticles handles GET /api/v1/admin/articles
func (h *Handlers) ListArticles(c *fiber.Ctx) error {
	list, err := h.Articles.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"total":    len(list.Articles),
		"items":    list.Articles,
		"degraded": list.Degraded,
	})
}

// GetArticle handles GET /api/v1/admin/articles/:id. The fingerprint is
// returned as base_hash for a later update.
func (h *Handlers) GetArticle(c *fiber.Ctx) error {
	a, err := h.Articles.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"article": a, "base_hash": a.Fingerprint()})
}

// CreateArticle handles POST /api/v1/admin/articles
func (h *Handlers) CreateArticle(c *fiber.Ctx) error {
	var req articleRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.Articles.Save(c.UserContext(), req.article(""), "", false)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(withNotice(
		fiber.Map{"article": a, "base_hash": a.Fingerprint()},
		"Статтю створено", "Нову статтю успішно додано",
	))
}

// UpdateArticle handles PUT /api/v1/admin/articles/:id
func (h *Handlers) UpdateArticle(c *fiber.Ctx) error {
	var req articleRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	a, err := h.Articles.Save(c.UserContext(), req.article(c.Params("id")), req.BaseHash, req.Force)
	if err != nil {
		return err
	}
	return c.JSON(withNotice(
		fiber.Map{"article": a, "base_hash": a.Fingerprint()},
		"Статтю оновлено", "Зміни успішно збережено",
	))
}

// DeleteArticle handles DELETE /api/v1/admin/articles/:id?confirm=true
func (h *Handlers) DeleteArticle(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Articles.Delete(c.UserContext(), id, confirmed(c)); err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"id": id}, "Статтю видалено", "Статтю успішно видалено"))
}
