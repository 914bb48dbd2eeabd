// Package analytics aggregates member and payment records for the admin
// dashboard.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/models"
)

// MemberSource lists members
type MemberSource interface {
	List(ctx context.Context) ([]models.Member, error)
}

// PaymentSource lists payments
type PaymentSource interface {
	List(ctx context.Context) ([]models.MembershipPayment, error)
}

// Bucket is one named value of a chart
type Bucket struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Month holds the paid and pending amounts of one calendar month
type Month struct {
	Month   string  `json:"month"` // YYYY-MM
	Paid    float64 `json:"paid"`
	Pending float64 `json:"pending"`
}

// Report is the dashboard data
type Report struct {
	MemberCount      int      `json:"member_count"`
	PaidTotal        float64  `json:"paid_total"`
	ProductionTotal  float64  `json:"production_total"`
	ByMembership     []Bucket `json:"by_membership"`
	ByProductionType []Bucket `json:"by_production_type"`
	Monthly          []Month  `json:"monthly"`
}

type Service struct {
	members  MemberSource
	payments PaymentSource
}

func NewService(members MemberSource, payments PaymentSource) *Service {
	return &Service{members: members, payments: payments}
}

// Report loads all members and payments and aggregates them
func (s *Service) Report(ctx context.Context) (Report, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return Report{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося завантажити дані для аналітики", err)
	}
	payments, err := s.payments.List(ctx)
	if err != nil {
		return Report{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося завантажити дані для аналітики", err)
	}
	return Build(members, payments), nil
}

// Build aggregates the given records. Membership tiers always appear, in
// display order; production types are sorted by name and months ascending.
func Build(members []models.Member, payments []models.MembershipPayment) Report {
	r := Report{
		MemberCount:      len(members),
		ByMembership:     make([]Bucket, 0, len(models.MembershipTypes)),
		ByProductionType: []Bucket{},
		Monthly:          []Month{},
	}

	tiers := make(map[models.MembershipType]int)
	production := make(map[string]float64)
	for _, m := range members {
		tiers[m.MembershipType]++
		r.ProductionTotal += m.ProductionAmount
		if m.ProductionType != "" && m.ProductionAmount > 0 {
			production[m.ProductionType] += m.ProductionAmount
		}
	}
	for _, t := range models.MembershipTypes {
		r.ByMembership = append(r.ByMembership, Bucket{Name: string(t), Value: float64(tiers[t])})
	}
	for name, v := range production {
		r.ByProductionType = append(r.ByProductionType, Bucket{Name: name, Value: v})
	}
	sort.Slice(r.ByProductionType, func(i, j int) bool {
		return r.ByProductionType[i].Name < r.ByProductionType[j].Name
	})

	months := make(map[string]*Month)
	for _, p := range payments {
		d := p.PaymentDate.UTC()
		key := fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
		m, ok := months[key]
		if !ok {
			m = &Month{Month: key}
			months[key] = m
		}
		if p.PaymentStatus == models.PaymentPaid {
			m.Paid += p.Amount
			r.PaidTotal += p.Amount
		} else {
			m.Pending += p.Amount
		}
	}
	for _, m := range months {
		r.Monthly = append(r.Monthly, *m)
	}
	sort.Slice(r.Monthly, func(i, j int) bool { return r.Monthly[i].Month < r.Monthly[j].Month })
	return r
}
