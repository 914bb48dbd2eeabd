package models

import "time"

// RoleAdmin is the profile role that opens the admin area
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Profile is an authenticated account. The role column drives authorization.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Username     string    `json:"username,omitempty"`
	CompanyName  string    `json:"company_name,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
