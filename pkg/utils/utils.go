package utils

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rounding scales
const (
	MoneyPlaces = 2
	RatePlaces  = 6
	RatioPlaces = 4

	compoundPlaces = 16
)

var (
	one    = decimal.NewFromInt(1)
	twelve = decimal.NewFromInt(12)
)

// MonthlyRate converts a nominal annual rate into the monthly rate used by the annuity formula
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(twelve).Round(RatePlaces)
}

// MonthlyPayment calculates the fixed annuity payment
// Formula: P * r(1+r)^n / ((1+r)^n - 1), or P / n when r = 0
func MonthlyPayment(principal decimal.Decimal, termMonths int, annualRate decimal.Decimal) decimal.Decimal {
	if termMonths <= 0 || principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	n := decimal.NewFromInt(int64(termMonths))
	r := MonthlyRate(annualRate)
	if r.IsZero() {
		return principal.Div(n).Round(MoneyPlaces)
	}

	factor := compound(r, termMonths)
	payment := principal.Mul(r).Mul(factor).Div(factor.Sub(one))

	return payment.Round(MoneyPlaces)
}

// compound returns (1+r)^n carried to RatePlaces.
// Squaring keeps it at O(log n) multiplications and every product is cut to
// compoundPlaces, so intermediate digits stay bounded.
func compound(r decimal.Decimal, n int) decimal.Decimal {
	base := one.Add(r)
	factor := one
	for n > 0 {
		if n&1 == 1 {
			factor = factor.Mul(base).Round(compoundPlaces)
		}
		base = base.Mul(base).Round(compoundPlaces)
		n >>= 1
	}
	return factor.Round(RatePlaces)
}

// DebtToIncomeRatio divides the monthly payment by monthly income.
// Returns zero when income is not positive.
func DebtToIncomeRatio(payment, monthlyIncome decimal.Decimal) decimal.Decimal {
	if monthlyIncome.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return payment.Div(monthlyIncome).Round(RatioPlaces)
}

// TotalInterest is the sum of all payments minus the principal
func TotalInterest(principal decimal.Decimal, termMonths int, annualRate decimal.Decimal) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	payment := MonthlyPayment(principal, termMonths, annualRate)
	total := payment.Mul(decimal.NewFromInt(int64(termMonths)))
	return total.Sub(principal).Round(MoneyPlaces)
}

// Installment is one row of an amortization schedule
type Installment struct {
	Period           int
	DueDate          time.Time
	Principal        decimal.Decimal
	Interest         decimal.Decimal
	Total            decimal.Decimal
	RemainingBalance decimal.Decimal
}

// AmortizationSchedule splits each annuity payment into interest and principal.
// The last period absorbs rounding so the balance ends at exactly zero.
func AmortizationSchedule(principal decimal.Decimal, termMonths int, annualRate decimal.Decimal, start time.Time) []Installment {
	if termMonths <= 0 || principal.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	payment := MonthlyPayment(principal, termMonths, annualRate)
	r := MonthlyRate(annualRate)
	remaining := principal
	schedule := make([]Installment, 0, termMonths)

	for period := 1; period <= termMonths; period++ {
		interest := remaining.Mul(r).Round(MoneyPlaces)
		principalPart := payment.Sub(interest)
		if period == termMonths || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)

		schedule = append(schedule, Installment{
			Period:           period,
			DueDate:          CalculateDueDate(start, period),
			Principal:        principalPart,
			Interest:         interest,
			Total:            principalPart.Add(interest),
			RemainingBalance: remaining,
		})
	}

	return schedule
}

// CalculateDueDate returns the due date of the given monthly period
// Period 1 is due one month after start
func CalculateDueDate(start time.Time, period int) time.Time {
	return start.AddDate(0, period, 0)
}

// IsOverdue reports whether more than window has elapsed since since
func IsOverdue(since time.Time, window time.Duration, now time.Time) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(since) > window
}

// IsBlank reports whether s is empty after trimming whitespace
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
