package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rybaukrainy/portal/internal/models"
)

// ErrDuplicateEmail is returned when registering an email that already exists
var ErrDuplicateEmail = errors.New("email already registered")

// ProfileRepository persists accounts and their roles
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(s *Store) *ProfileRepository {
	return &ProfileRepository{db: s.DB}
}

const profileColumns = `id, email, password_hash, role, username, company_name, updated_at`

func (r *ProfileRepository) Get(ctx context.Context, id string) (models.Profile, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail looks up a profile by its lower-cased email
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (models.Profile, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *ProfileRepository) getBy(ctx context.Context, column, value string) (models.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+column+` = ?`, value)

	var (
		p                            models.Profile
		username, company, updatedAt sql.NullString
	)
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &username, &company, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	p.Username = username.String
	p.CompanyName = company.String
	p.UpdatedAt = parseTime(updatedAt.String)
	return p, nil
}

// Create inserts a new profile, failing with ErrDuplicateEmail on reuse
func (r *ProfileRepository) Create(ctx context.Context, p models.Profile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, strings.ToLower(strings.TrimSpace(p.Email)), p.PasswordHash, p.Role,
		nullString(p.Username), nullString(p.CompanyName), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// SetRole changes the role of a profile
func (r *ProfileRepository) SetRole(ctx context.Context, id, role string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("failed to update role of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
