package models

import "time"

// PaymentStatus is either paid or pending
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
)

// Valid reports whether s is paid or pending
func (s PaymentStatus) Valid() bool {
	return s == PaymentPaid || s == PaymentPending
}

// Toggled returns the opposite status
func (s PaymentStatus) Toggled() PaymentStatus {
	if s == PaymentPaid {
		return PaymentPending
	}
	return PaymentPaid
}

// Payment types offered by the admin form
const (
	PaymentTypeBankTransfer = "Банківський переказ"
	PaymentTypeCash         = "Готівка"
	PaymentTypeCard         = "Картка"
)

// PaymentTypes lists the accepted payment types, default first
var PaymentTypes = []string{PaymentTypeBankTransfer, PaymentTypeCash, PaymentTypeCard}

// MembershipPayment is a membership fee record. MemberID is not enforced
// against the members table.
type MembershipPayment struct {
	ID            string        `json:"id"`
	MemberID      string        `json:"member_id"`
	Amount        float64       `json:"amount"`
	PaymentDate   time.Time     `json:"payment_date"`
	PaymentType   string        `json:"payment_type"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
