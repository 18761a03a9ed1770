// Package eligibility holds the pure business rules gating intake and approval.
package eligibility

import (
	"errors"
	"fmt"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/pkg/utils"

	"github.com/shopspring/decimal"
)

// Policy carries the thresholds of the rules
type Policy struct {
	AnnualRate      decimal.Decimal
	MinAmount       decimal.Decimal
	MaxAmount       decimal.Decimal
	MinTermMonths   int
	MaxTermMonths   int
	MaxDebtToIncome decimal.Decimal
}

// DefaultPolicy is 12% nominal a year, 1M..2B principal, 3..60 months, DTI at most 0.33
func DefaultPolicy() Policy {
	return Policy{
		AnnualRate:      decimal.RequireFromString("0.12"),
		MinAmount:       decimal.NewFromInt(1_000_000),
		MaxAmount:       decimal.NewFromInt(2_000_000_000),
		MinTermMonths:   3,
		MaxTermMonths:   60,
		MaxDebtToIncome: decimal.RequireFromString("0.33"),
	}
}

// Validate rejects a policy whose bounds cannot be satisfied
func (p Policy) Validate() error {
	if p.AnnualRate.IsNegative() {
		return errors.New("annual rate must not be negative")
	}
	if p.MinAmount.GreaterThan(p.MaxAmount) {
		return errors.New("minimum amount exceeds maximum amount")
	}
	if p.MinTermMonths <= 0 || p.MinTermMonths > p.MaxTermMonths {
		return errors.New("term bounds are invalid")
	}
	if !p.MaxDebtToIncome.IsPositive() {
		return errors.New("max debt-to-income must be positive")
	}
	return nil
}

// MonthlyPayment is the annuity payment of the application under the policy rate
func (p Policy) MonthlyPayment(app *domain.LoanApplication) decimal.Decimal {
	return utils.MonthlyPayment(app.Amount, app.TermMonths, p.AnnualRate)
}

// DebtToIncomeRatio is the monthly payment over monthly income, zero when income is not positive
func (p Policy) DebtToIncomeRatio(app *domain.LoanApplication) decimal.Decimal {
	return utils.DebtToIncomeRatio(p.MonthlyPayment(app), app.MonthlyIncome)
}

func (p Policy) termInRange(term int) bool {
	return term >= p.MinTermMonths && term <= p.MaxTermMonths
}

// CheckComplete returns the first unmet intake condition, or nil
func (p Policy) CheckComplete(app *domain.LoanApplication) error {
	c := app.Customer
	switch {
	case c == nil:
		return errors.New("customer is missing")
	case utils.IsBlank(c.FullName):
		return errors.New("customer full name is blank")
	case utils.IsBlank(c.Phone):
		return errors.New("customer phone is blank")
	case utils.IsBlank(c.Email):
		return errors.New("customer email is blank")
	case app.Amount.LessThan(p.MinAmount):
		return fmt.Errorf("amount %s is below minimum %s", app.Amount, p.MinAmount)
	case !p.termInRange(app.TermMonths):
		return fmt.Errorf("term %d months is outside [%d, %d]", app.TermMonths, p.MinTermMonths, p.MaxTermMonths)
	case !app.MonthlyIncome.IsPositive():
		return errors.New("monthly income must be positive")
	}
	return nil
}

// IsComplete reports whether the application may pass intake
func (p Policy) IsComplete(app *domain.LoanApplication) bool {
	return p.CheckComplete(app) == nil
}

// CheckEligibility returns the first unmet approval condition, or nil
func (p Policy) CheckEligibility(app *domain.LoanApplication) error {
	if app.Amount.LessThan(p.MinAmount) || app.Amount.GreaterThan(p.MaxAmount) {
		return fmt.Errorf("amount %s is outside [%s, %s]", app.Amount, p.MinAmount, p.MaxAmount)
	}
	if !p.termInRange(app.TermMonths) {
		return fmt.Errorf("term %d months is outside [%d, %d]", app.TermMonths, p.MinTermMonths, p.MaxTermMonths)
	}
	// income was already gated at intake; a zero ratio here means no income was recorded
	ratio := p.DebtToIncomeRatio(app)
	if ratio.GreaterThan(p.MaxDebtToIncome) {
		return fmt.Errorf("debt-to-income ratio %s exceeds %s", ratio.StringFixed(4), p.MaxDebtToIncome)
	}
	return nil
}

// IsEligibleForApproval reports whether the application passes every approval gate
func (p Policy) IsEligibleForApproval(app *domain.LoanApplication) bool {
	return p.CheckEligibility(app) == nil
}

// Quote summarises the repayment figures of an application
func (p Policy) Quote(app *domain.LoanApplication) *domain.Quote {
	q := &domain.Quote{
		ApplicationID:  app.ID,
		MonthlyPayment: p.MonthlyPayment(app),
		DebtToIncome:   p.DebtToIncomeRatio(app),
		TotalInterest:  utils.TotalInterest(app.Amount, app.TermMonths, p.AnnualRate),
		Eligible:       true,
	}
	if err := p.CheckEligibility(app); err != nil {
		q.Eligible = false
		q.IneligibleCause = err.Error()
	}
	return q
}
