package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/middleware"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/register"
)

type paymentRequest struct {
	MemberID      string               `json:"member_id" validate:"required"`
	Amount        float64              `json:"amount" validate:"gte=0"`
	PaymentDate   string               `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentType   string               `json:"payment_type" validate:"omitempty,oneof='Банківський переказ' Готівка Картка"`
	PaymentStatus models.PaymentStatus `json:"payment_status" validate:"omitempty,oneof=paid pending"`
	Notes         string               `json:"notes"`
}

// ListPayments handles GET /api/v1/admin/payments
func (h *Handlers) ListPayments(c *fiber.Ctx) error {
	var q register.PaymentQuery
	if err := middleware.BindQuery(c, &q); err != nil {
		return err
	}
	list, err := h.Payments.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// AddPayment handles POST /api/v1/admin/payments
func (h *Handlers) AddPayment(c *fiber.Ctx) error {
	var req paymentRequest
	if err := middleware.Bind(c, &req); err != nil {
		return err
	}
	p := models.MembershipPayment{
		MemberID:      req.MemberID,
		Amount:        req.Amount,
		PaymentType:   req.PaymentType,
		PaymentStatus: req.PaymentStatus,
		Notes:         req.Notes,
	}
	if req.PaymentDate != "" {
		d, err := time.Parse(time.DateOnly, req.PaymentDate)
		if err != nil {
			return apperr.Validation(map[string]string{"payment_date": "datetime"})
		}
		p.PaymentDate = d
	}

	saved, err := h.Payments.Add(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(withNotice(
		fiber.Map{"payment": saved}, "Платіж додано", "Новий запис про оплату членського внеску було додано",
	))
}

// TogglePaymentStatus handles PATCH /api/v1/admin/payments/:id/status
func (h *Handlers) TogglePaymentStatus(c *fiber.Ctx) error {
	p, err := h.Payments.ToggleStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(withNotice(fiber.Map{"payment": p}, "Статус оновлено", "Статус платежу змінено"))
}

// GetAnalytics handles GET /api/v1/admin/analytics
func (h *Handlers) GetAnalytics(c *fiber.Ctx) error {
	report, err := h.Analytics.Report(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}
