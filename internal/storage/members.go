package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rybaukrainy/portal/internal/models"
)

// MemberRepository persists association members
type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(s *Store) *MemberRepository {
	return &MemberRepository{db: s.DB}
}

const memberColumns = `id, name, description, logo, membership_type, join_date, email, phone,
	website, username, user_id, production_amount, production_type`

// List returns all members ordered by name
func (r *MemberRepository) List(ctx context.Context) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *MemberRepository) Get(ctx context.Context, id string) (models.Member, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUserID finds the member linked to a profile
func (r *MemberRepository) GetByUserID(ctx context.Context, userID string) (models.Member, error) {
	return r.getBy(ctx, "user_id", userID)
}

func (r *MemberRepository) getBy(ctx context.Context, column, value string) (models.Member, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE `+column+` = ?`, value)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrNotFound
	}
	return m, err
}

func (r *MemberRepository) Upsert(ctx context.Context, m models.Member) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			logo = excluded.logo,
			membership_type = excluded.membership_type,
			join_date = excluded.join_date,
			email = excluded.email,
			phone = excluded.phone,
			website = excluded.website,
			username = excluded.username,
			user_id = excluded.user_id,
			production_amount = excluded.production_amount,
			production_type = excluded.production_type`,
		m.ID, m.Name, nullString(m.Description), nullString(m.Logo), string(m.MembershipType),
		formatTime(m.JoinDate), nullString(m.Email), nullString(m.Phone), nullString(m.Website),
		nullString(m.Username), nullString(m.UserID), m.ProductionAmount, nullString(m.ProductionType),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member %s: %w", m.ID, err)
	}
	return nil
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMember(s scanner) (models.Member, error) {
	var (
		m                                                  models.Member
		description, logo, joinDate, email, phone, website sql.NullString
		username, userID, productionType                   sql.NullString
		membership                                         string
		amount                                             sql.NullFloat64
	)
	err := s.Scan(&m.ID, &m.Name, &description, &logo, &membership, &joinDate, &email, &phone,
		&website, &username, &userID, &amount, &productionType)
	if err != nil {
		return m, err
	}
	m.Description = description.String
	m.Logo = logo.String
	m.MembershipType = models.MembershipType(membership)
	m.JoinDate = parseTime(joinDate.String)
	m.Email = email.String
	m.Phone = phone.String
	m.Website = website.String
	m.Username = username.String
	m.UserID = userID.String
	m.ProductionAmount = amount.Float64
	m.ProductionType = productionType.String
	return m, nil
}
