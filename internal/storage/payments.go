package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rybaukrainy/portal/internal/models"
)

// PaymentRepository persists membership payments
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(s *Store) *PaymentRepository {
	return &PaymentRepository{db: s.DB}
}

const paymentColumns = `id, member_id, amount, payment_date, payment_type, payment_status, notes, created_at`

// List returns all payments, latest payment date first
func (r *PaymentRepository) List(ctx context.Context) ([]models.MembershipPayment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM membership_payments
		ORDER BY payment_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []models.MembershipPayment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (models.MembershipPayment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM membership_payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MembershipPayment{}, ErrNotFound
	}
	return p, err
}

func (r *PaymentRepository) Insert(ctx context.Context, p models.MembershipPayment) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO membership_payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MemberID, p.Amount, formatTime(p.PaymentDate), p.PaymentType,
		string(p.PaymentStatus), nullString(p.Notes), formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// SetStatus changes only the status of one payment
func (r *PaymentRepository) SetStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE membership_payments SET payment_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPayment(s scanner) (models.MembershipPayment, error) {
	var (
		p                          models.MembershipPayment
		paymentDate, status, notes sql.NullString
		createdAt                  string
	)
	if err := s.Scan(&p.ID, &p.MemberID, &p.Amount, &paymentDate, &p.PaymentType, &status, &notes, &createdAt); err != nil {
		return p, err
	}
	p.PaymentDate = parseTime(paymentDate.String)
	p.PaymentStatus = models.PaymentStatus(status.String)
	p.Notes = notes.String
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}
