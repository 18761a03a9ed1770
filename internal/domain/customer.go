package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is the applicant identity shared by all of their applications
type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CustomerInfo is the identity block supplied on submission
type CustomerInfo struct {
	FullName string `json:"full_name" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email,max=190"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// Normalized trims surrounding whitespace from every field
func (c CustomerInfo) Normalized() CustomerInfo {
	return CustomerInfo{
		FullName: strings.TrimSpace(c.FullName),
		Email:    strings.TrimSpace(c.Email),
		Phone:    strings.TrimSpace(c.Phone),
	}
}

// Merge copies non-empty fields of info that differ from the customer.
// It returns true if anything changed.
func (c *Customer) Merge(info CustomerInfo) bool {
	changed := false
	if info.FullName != "" && info.FullName != c.FullName {
		c.FullName = info.FullName
		changed = true
	}
	if info.Email != "" && info.Email != c.Email {
		c.Email = info.Email
		changed = true
	}
	if info.Phone != "" && info.Phone != c.Phone {
		c.Phone = info.Phone
		changed = true
	}
	return changed
}

// CustomerStats summarises a customer's applications
type CustomerStats struct {
	TotalApplications int             `json:"total_applications"`
	Approved          int             `json:"approved"`
	Disbursed         int             `json:"disbursed"`
	Rejected          int             `json:"rejected"`
	TotalBorrowed     decimal.Decimal `json:"total_borrowed"`
}
