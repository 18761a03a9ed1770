package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanApplication represents a loan application moving through the workflow
type LoanApplication struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CustomerID    uuid.UUID       `json:"customer_id" db:"customer_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	TermMonths    int             `json:"term_months" db:"term_months"`
	Purpose       string          `json:"purpose,omitempty" db:"purpose"`
	MonthlyIncome decimal.Decimal `json:"monthly_income" db:"monthly_income"`

	Status          LoanStatus `json:"status" db:"status"`
	AssessmentNote  string     `json:"assessment_note,omitempty" db:"assessment_note"`
	ApprovalNote    string     `json:"approval_note,omitempty" db:"approval_note"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	AssessedAt  *time.Time `json:"assessed_at,omitempty" db:"assessed_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	DisbursedAt *time.Time `json:"disbursed_at,omitempty" db:"disbursed_at"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Customer *Customer `json:"customer,omitempty" db:"-"`
}

// Clone returns a deep copy so callers never share mutable state
func (a *LoanApplication) Clone() *LoanApplication {
	if a == nil {
		return nil
	}
	out := *a
	for _, ts := range []**time.Time{
		&out.SubmittedAt, &out.ReviewedAt, &out.AssessedAt,
		&out.ApprovedAt, &out.RejectedAt, &out.DisbursedAt,
	} {
		if *ts != nil {
			t := **ts
			*ts = &t
		}
	}
	if a.Customer != nil {
		c := *a.Customer
		out.Customer = &c
	}
	return &out
}

// EnteredStatusAt returns the time the application entered its current status
func (a *LoanApplication) EnteredStatusAt() *time.Time {
	switch a.Status {
	case StatusSubmitted:
		return a.SubmittedAt
	case StatusUnderReview:
		return a.ReviewedAt
	case StatusAssessed:
		return a.AssessedAt
	case StatusApproved:
		return a.ApprovedAt
	case StatusRejected:
		return a.RejectedAt
	case StatusDisbursed:
		return a.DisbursedAt
	}
	return nil
}

type stampRule struct {
	name string
	get  func(*LoanApplication) *time.Time
}

var (
	stampSubmitted = stampRule{"submitted_at", func(a *LoanApplication) *time.Time { return a.SubmittedAt }}
	stampReviewed  = stampRule{"reviewed_at", func(a *LoanApplication) *time.Time { return a.ReviewedAt }}
	stampAssessed  = stampRule{"assessed_at", func(a *LoanApplication) *time.Time { return a.AssessedAt }}
	stampApproved  = stampRule{"approved_at", func(a *LoanApplication) *time.Time { return a.ApprovedAt }}
	stampRejected  = stampRule{"rejected_at", func(a *LoanApplication) *time.Time { return a.RejectedAt }}
	stampDisbursed = stampRule{"disbursed_at", func(a *LoanApplication) *time.Time { return a.DisbursedAt }}
)

// required and forbidden timestamps per status
var stampRules = map[LoanStatus][2][]stampRule{
	StatusSubmitted: {
		{stampSubmitted},
		{stampReviewed, stampAssessed, stampApproved, stampRejected, stampDisbursed},
	},
	StatusUnderReview: {
		{stampSubmitted, stampReviewed},
		{stampAssessed, stampApproved, stampRejected, stampDisbursed},
	},
	StatusAssessed: {
		{stampSubmitted, stampReviewed, stampAssessed},
		{stampApproved, stampRejected, stampDisbursed},
	},
	StatusApproved: {
		{stampSubmitted, stampReviewed, stampAssessed, stampApproved},
		{stampRejected, stampDisbursed},
	},
	StatusRejected: {
		{stampSubmitted, stampReviewed, stampRejected},
		{stampApproved, stampDisbursed},
	},
	StatusDisbursed: {
		{stampSubmitted, stampReviewed, stampAssessed, stampApproved, stampDisbursed},
		{stampRejected},
	},
}

// CheckConsistency verifies that the lifecycle timestamps agree with the status
func (a *LoanApplication) CheckConsistency() error {
	rules, ok := stampRules[a.Status]
	if !ok {
		return fmt.Errorf("invalid loan status: %q", a.Status)
	}
	for _, r := range rules[0] {
		if r.get(a) == nil {
			return fmt.Errorf("status %s requires %s", a.Status, r.name)
		}
	}
	for _, r := range rules[1] {
		if r.get(a) != nil {
			return fmt.Errorf("status %s must not have %s", a.Status, r.name)
		}
	}
	return nil
}

// DTOs for requests and responses

type SubmitApplicationRequest struct {
	Customer      CustomerInfo    `json:"customer"`
	Amount        decimal.Decimal `json:"amount" validate:"dgt=0,dlte=1000000000000000,dscale=2"`
	TermMonths    int             `json:"term_months" validate:"gt=0,lte=600"`
	Purpose       string          `json:"purpose" validate:"max=500"`
	MonthlyIncome decimal.Decimal `json:"monthly_income" validate:"dgte=0,dlte=1000000000000000,dscale=2"`
}

type NoteRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=400"`
}

// Quote is the amortization view of an application
type Quote struct {
	ApplicationID   uuid.UUID       `json:"application_id"`
	MonthlyPayment  decimal.Decimal `json:"monthly_payment"`
	DebtToIncome    decimal.Decimal `json:"debt_to_income"`
	TotalInterest   decimal.Decimal `json:"total_interest"`
	Eligible        bool            `json:"eligible"`
	IneligibleCause string          `json:"ineligible_cause,omitempty"`
}
