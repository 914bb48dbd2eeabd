package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/middleware"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/register"
)

type memberRequest struct {
	Name             string                `json:"name" validate:"required"`
	Description      string                `json:"description"`
	Logo             string                `json:"logo" validate:"omitempty,url"`
	MembershipType   models.MembershipType `json:"membership_type" validate:"omitempty,oneof=Free Standard Premium"`
	Email            string                `json:"email" validate:"omitempty,email"`
	Phone            string                `json:"phone"`
	Website          string                `json:"website" validate:"omitempty,url"`
	ProductionAmount float64               `json:"production_amount" validate:"gte=0"`
	ProductionType   string                `json:"production_type"`
}

func (r memberRequest) member(id string) models.Member {
	return models.Member{
		ID:               id,
		Name:             r.Name,
		Description:      r.Description,
		Logo:             r.Logo,
		MembershipType:   r.MembershipType,
		Email:            r.Email,
		Phone:            r.Phone,
		Website:          r.Website,
		ProductionAmount: r.ProductionAmount,
		ProductionType:   r.ProductionType,
	}
}

type membershipRequest struct {
	MembershipType models.MembershipType `json:"membership_type" validate:"required,oneof=Free Standard Premium"`
}

// ListMembers handles GET /api/v1/admin/members
func (h *Handlers) ListMembers(c *fiber.Ctx) error {
	var q register.MemberQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	members, err := h.Members.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"total": len(members), "items": members})
}

// GetMember handles GET /api/v1/admin/members/:id
func (h *Handlers) GetMember(c *fiber.Ctx) error {
	m, err := h.Members.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"member": m})
}

// CreateMember handles POST /api/v1/admin/members
func (h *Handlers) CreateMember(c *fiber.Ctx) error {
	var req memberRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.Members.Save(c.UserContext(), req.member(""))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(withNotice(
		fiber.Map{"member": m}, "Учасника додано", "Нового учасника успішно додано",
	))
}

// UpdateMember handles PUT /api/v1/admin/members/:id. Fields the form does
// not carry (account link, join date) are kept.
func (h *Handlers) UpdateMember(c *fiber.Ctx) error {
	var req memberRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	existing, err := h.Members.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	m := req.member(existing.ID)
	m.JoinDate = existing.JoinDate
	m.Username = existing.Username
	m.UserID = existing.UserID
	if m.MembershipType == "" {
		m.MembershipType = existing.MembershipType
	}

	saved, err := h.Members.Save(c.UserContext(), m)
	if err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"member": saved}, "Учасника оновлено", "Зміни успішно збережено"))
}

// ChangeMembership handles PATCH /api/v1/admin/members/:id/membership
func (h *Handlers) ChangeMembership(c *fiber.Ctx) error {
	var req membershipRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.Members.ChangeMembership(c.UserContext(), c.Params("id"), req.MembershipType)
	if err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"member": m}, "Тип членства змінено", "Новий тип: "+string(m.MembershipType)))
}

// DeleteMember handles DELETE /api/v1/admin/members/:id?confirm=true
func (h *Handlers) DeleteMember(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Members.Delete(c.UserContext(), id, confirmed(c)); err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"id": id}, "Учасника видалено", "Учасника успішно видалено"))
}

// GetMyMember handles GET /api/v1/me/member
func (h *Handlers) GetMyMember(c *fiber.Ctx) error {
	m, err := h.Members.ForUser(c.UserContext(), middleware.VisitorFrom(c).ProfileID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"member": m})
}

// UpdateMyMember handles PUT /api/v1/me/member. A member edits the profile
// card only; the tier is changed by an admin.
func (h *Handlers) UpdateMyMember(c *fiber.Ctx) error {
	var req memberRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.Members.SaveOwn(c.UserContext(), middleware.VisitorFrom(c).ProfileID, req.member(""))
	if err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"member": m}, "Профіль оновлено", "Зміни успішно збережено"))
}
