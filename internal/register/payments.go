package register

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/storage"
)

// UnknownMember is shown for payments whose member no longer exists
const UnknownMember = "Невідомий учасник"

var errPaymentNotFound = apperr.New(apperr.KindNotFound, "Платіж не знайдено")

// PaymentRepository is the persistence the payment register needs
type PaymentRepository interface {
	List(ctx context.Context) ([]models.MembershipPayment, error)
	Get(ctx context.Context, id string) (models.MembershipPayment, error)
	Insert(ctx context.Context, p models.MembershipPayment) error
	SetStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

// MemberLister resolves member names for payment rows
type MemberLister interface {
	List(ctx context.Context) ([]models.Member, error)
}

// PaymentQuery filters the payment list. Search matches the member name.
type PaymentQuery struct {
	MemberID string               `query:"member_id"`
	Status   models.PaymentStatus `query:"status"`
	Search   string               `query:"q"`
}

// PaymentRow is a payment with its member's display name
type PaymentRow struct {
	models.MembershipPayment
	MemberName string `json:"member_name"`
}

// Totals sums payment amounts over a filtered list
type Totals struct {
	All     float64 `json:"all"`
	Paid    float64 `json:"paid"`
	Pending float64 `json:"pending"`
}

// PaymentList is a filtered listing with its totals
type PaymentList struct {
	Payments []PaymentRow `json:"payments"`
	Totals   Totals       `json:"totals"`
}

type PaymentRegister struct {
	repo    PaymentRepository
	members MemberLister
	log     zerolog.Logger
	now     func() time.Time
}

func NewPaymentRegister(repo PaymentRepository, members MemberLister) *PaymentRegister {
	return &PaymentRegister{repo: repo, members: members, log: logger.Component("payments"), now: time.Now}
}

// List returns the payments matching q, newest first, with totals over them
func (r *PaymentRegister) List(ctx context.Context, q PaymentQuery) (PaymentList, error) {
	payments, err := r.repo.List(ctx)
	if err != nil {
		return PaymentList{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося завантажити платежі", err)
	}
	members, err := r.members.List(ctx)
	if err != nil {
		return PaymentList{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося завантажити список учасників", err)
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	term := strings.ToLower(strings.TrimSpace(q.Search))
	list := PaymentList{Payments: []PaymentRow{}}
	for _, p := range payments {
		if q.MemberID != "" && p.MemberID != q.MemberID {
			continue
		}
		if q.Status != "" && p.PaymentStatus != q.Status {
			continue
		}
		name, known := names[p.MemberID]
		if term != "" && (!known || !strings.Contains(strings.ToLower(name), term)) {
			continue
		}
		if !known {
			name = UnknownMember
		}
		list.Payments = append(list.Payments, PaymentRow{MembershipPayment: p, MemberName: name})
		list.Totals.add(p)
	}
	return list, nil
}

func (t *Totals) add(p models.MembershipPayment) {
	t.All += p.Amount
	switch p.PaymentStatus {
	case models.PaymentPaid:
		t.Paid += p.Amount
	case models.PaymentPending:
		t.Pending += p.Amount
	}
}

// Add records a payment. Type defaults to bank transfer, status to paid and
// the date to today.
func (r *PaymentRegister) Add(ctx context.Context, p models.MembershipPayment) (models.MembershipPayment, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(p.MemberID) == "" {
		fields["member_id"] = "required"
	}
	if p.Amount < 0 {
		fields["amount"] = "min"
	}
	if p.PaymentStatus != "" && !p.PaymentStatus.Valid() {
		fields["payment_status"] = "oneof"
	}
	if len(fields) > 0 {
		return models.MembershipPayment{}, apperr.Validation(fields)
	}

	now := r.now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentType == "" {
		p.PaymentType = models.PaymentTypeBankTransfer
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = models.PaymentPaid
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now.Truncate(24 * time.Hour)
	}
	p.CreatedAt = now

	if err := r.repo.Insert(ctx, p); err != nil {
		return models.MembershipPayment{}, err
	}
	r.log.Info().
		Str("payment_id", p.ID).
		Str("member_id", p.MemberID).
		Float64("amount", p.Amount).
		Msg("Payment added")
	return p, nil
}

// ToggleStatus flips a payment between paid and pending
func (r *PaymentRegister) ToggleStatus(ctx context.Context, id string) (models.MembershipPayment, error) {
	p, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.MembershipPayment{}, errPaymentNotFound
		}
		return models.MembershipPayment{}, err
	}
	p.PaymentStatus = p.PaymentStatus.Toggled()
	if err := r.repo.SetStatus(ctx, id, p.PaymentStatus); err != nil {
		return models.MembershipPayment{}, err
	}
	r.log.Info().Str("payment_id", id).Str("status", string(p.PaymentStatus)).Msg("Payment status changed")
	return p, nil
}
