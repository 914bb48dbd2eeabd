package models

import "time"

// MembershipType is the tier of an association member
type MembershipType string

const (
	MembershipFree     MembershipType = "Free"
	MembershipStandard MembershipType = "Standard"
	MembershipPremium  MembershipType = "Premium"
)

// MembershipTypes lists the valid tiers in display order
var MembershipTypes = []MembershipType{MembershipFree, MembershipStandard, MembershipPremium}

// Valid reports whether t is one of the three tiers
func (t MembershipType) Valid() bool {
	switch t {
	case MembershipFree, MembershipStandard, MembershipPremium:
		return true
	}
	return false
}

// Member is a company registered with the association
type Member struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Logo             string         `json:"logo"`
	MembershipType   MembershipType `json:"membership_type"`
	JoinDate         time.Time      `json:"join_date"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Website          string         `json:"website,omitempty"`
	Username         string         `json:"username,omitempty"`
	UserID           string         `json:"user_id,omitempty"`
	ProductionAmount float64        `json:"production_amount,omitempty"`
	ProductionType   string         `json:"production_type,omitempty"`
}
