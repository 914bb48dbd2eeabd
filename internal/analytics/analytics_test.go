package analytics

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestBuild(t *testing.T) {
	members := []models.Member{
		{Name: "A", MembershipType: models.MembershipFree, ProductionType: "Короп", ProductionAmount: 10},
		{Name: "B", MembershipType: models.MembershipPremium, ProductionType: "Короп", ProductionAmount: 5},
		{Name: "C", MembershipType: models.MembershipPremium, ProductionType: "Форель", ProductionAmount: 2},
		{Name: "D", MembershipType: models.MembershipFree},
	}
	payments := []models.MembershipPayment{
		{Amount: 100, PaymentDate: date(2024, 2, 3), PaymentStatus: models.PaymentPaid},
		{Amount: 50, PaymentDate: date(2024, 1, 20), PaymentStatus: models.PaymentPending},
		{Amount: 30, PaymentDate: date(2024, 2, 28), PaymentStatus: models.PaymentPending},
		{Amount: 70, PaymentDate: date(2023, 12, 1), PaymentStatus: models.PaymentPaid},
	}

	r := Build(members, payments)

	if r.MemberCount != 4 || r.PaidTotal != 170 || r.ProductionTotal != 17 {
		t.Errorf("totals = %d, %v, %v", r.MemberCount, r.PaidTotal, r.ProductionTotal)
	}
	wantTiers := []Bucket{{"Free", 2}, {"Standard", 0}, {"Premium", 2}}
	if !reflect.DeepEqual(r.ByMembership, wantTiers) {
		t.Errorf("ByMembership = %v, want %v", r.ByMembership, wantTiers)
	}
	wantProduction := []Bucket{{"Короп", 15}, {"Форель", 2}}
	if !reflect.DeepEqual(r.ByProductionType, wantProduction) {
		t.Errorf("ByProductionType = %v, want %v", r.ByProductionType, wantProduction)
	}
	wantMonths := []Month{
		{Month: "2023-12", Paid: 70},
		{Month: "2024-01", Pending: 50},
		{Month: "2024-02", Paid: 100, Pending: 30},
	}
	if !reflect.DeepEqual(r.Monthly, wantMonths) {
		t.Errorf("Monthly = %v, want %v", r.Monthly, wantMonths)
	}
}

func TestBuildEmpty(t *testing.T) {
	r := Build(nil, nil)
	if r.MemberCount != 0 || len(r.Monthly) != 0 || len(r.ByMembership) != 3 {
		t.Errorf("Build(nil) = %+v", r)
	}
}

type members []models.Member

func (m members) List(ctx context.Context) ([]models.Member, error) { return m, nil }

type failingPayments struct{}

func (failingPayments) List(ctx context.Context) ([]models.MembershipPayment, error) {
	return nil, errors.New("disk I/O error")
}

func TestReportFetchFailure(t *testing.T) {
	s := NewService(members{{Name: "A"}}, failingPayments{})
	if _, err := s.Report(context.Background()); !apperr.Is(err, apperr.KindFetchFailed) {
		t.Errorf("Report() error = %v, want fetch failed", err)
	}
}
