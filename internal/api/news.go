package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/middleware"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/register"
)

// GetNews handles GET /api/v1/news
func (h *Handlers) GetNews(c *fiber.Ctx) error {
	var q register.ArticleQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	list, err := h.Articles.Search(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"total":    len(list.Articles),
		"items":    list.Articles,
		"degraded": list.Degraded,
	})
}

// GetNewsByID handles GET /api/v1/news/:id
func (h *Handlers) GetNewsByID(c *fiber.Ctx) error {
	a, err := h.Articles.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	related, err := h.Articles.Related(c.UserContext(), a)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"article": a, "related": related})
}

// GetCategories handles GET /api/v1/categories
func (h *Handlers) GetCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": models.Categories})
}

// memberCard is the public part of a member record
type memberCard struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Logo           string                `json:"logo"`
	MembershipType models.MembershipType `json:"membership_type"`
	Website        string                `json:"website,omitempty"`
	ProductionType string                `json:"production_type,omitempty"`
}

// GetMemberDirectory handles GET /api/v1/members
func (h *Handlers) GetMemberDirectory(c *fiber.Ctx) error {
	var q register.MemberQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	members, err := h.Members.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	cards := make([]memberCard, 0, len(members))
	for _, m := range members {
		cards = append(cards, memberCard{
			ID:             m.ID,
			Name:           m.Name,
			Description:    m.Description,
			Logo:           m.Logo,
			MembershipType: m.MembershipType,
			Website:        m.Website,
			ProductionType: m.ProductionType,
		})
	}
	return c.JSON(fiber.Map{"total": len(cards), "items": cards})
}
