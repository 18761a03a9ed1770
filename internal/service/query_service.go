package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/eligibility"
	"github.com/segyhp/loan-workflow/internal/repository"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
	"github.com/segyhp/loan-workflow/pkg/utils"
)

// QueryService serves the read-only views over applications
type QueryService struct {
	apps      repository.ApplicationRepository
	customers repository.CustomerRepository
	policy    eligibility.Policy
}

func NewQueryService(apps repository.ApplicationRepository, customers repository.CustomerRepository, policy eligibility.Policy) *QueryService {
	return &QueryService{
		apps:      apps,
		customers: customers,
		policy:    policy,
	}
}

// GetApplication returns an application with its customer attached
func (s *QueryService) GetApplication(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	app, err := s.apps.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapApplicationNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	customer, err := s.customers.GetByID(ctx, app.CustomerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapDatabaseError(err)
	}
	app.Customer = customer
	return app, nil
}

// ListByStatus lists applications in the given statuses, oldest first
func (s *QueryService) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.LoanApplication, error) {
	for _, status := range statuses {
		if !status.Valid() {
			return nil, customError.WrapInvalidInput("unknown status " + status.String())
		}
	}
	apps, err := s.apps.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return apps, nil
}

// ListSection returns the work queue of a back-office section
func (s *QueryService) ListSection(ctx context.Context, section domain.Section) ([]*domain.LoanApplication, error) {
	statuses := section.QueueStatuses()
	if len(statuses) == 0 {
		return nil, customError.WrapInvalidInput("unknown section " + string(section))
	}
	return s.ListByStatus(ctx, statuses...)
}

// CountByStatus returns the dashboard counters for every status
func (s *QueryService) CountByStatus(ctx context.Context) (map[domain.LoanStatus]int, error) {
	counts, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return counts, nil
}

// customerByIdentity resolves an email (contains "@") or a phone number
func (s *QueryService) customerByIdentity(ctx context.Context, identity string) (*domain.Customer, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, customError.WrapInvalidInput("customer identity must not be blank")
	}

	lookup := s.customers.GetByPhone
	if strings.Contains(identity, "@") {
		lookup = s.customers.GetByEmail
	}
	customer, err := lookup(ctx, identity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapCustomerNotFound(identity)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return customer, nil
}

// ListCustomerApplications lists the applications of the customer owning identity, newest first
func (s *QueryService) ListCustomerApplications(ctx context.Context, identity string) ([]*domain.LoanApplication, error) {
	customer, err := s.customerByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	apps, err := s.apps.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return apps, nil
}

// GetCustomerApplication returns one application only if it belongs to the customer owning identity
func (s *QueryService) GetCustomerApplication(ctx context.Context, identity string, id uuid.UUID) (*domain.LoanApplication, error) {
	customer, err := s.customerByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.CustomerID != customer.ID {
		return nil, customError.WrapAccessDenied(id.String())
	}
	return app, nil
}

// CustomerStats summarises the applications of the customer owning identity
func (s *QueryService) CustomerStats(ctx context.Context, identity string) (*domain.CustomerStats, error) {
	apps, err := s.ListCustomerApplications(ctx, identity)
	if err != nil {
		return nil, err
	}

	stats := &domain.CustomerStats{TotalBorrowed: decimal.Zero}
	for _, app := range apps {
		stats.TotalApplications++
		switch app.Status {
		case domain.StatusApproved:
			stats.Approved++
		case domain.StatusDisbursed:
			stats.Disbursed++
			stats.TotalBorrowed = stats.TotalBorrowed.Add(app.Amount)
		case domain.StatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// Quote computes the repayment figures and the current eligibility verdict
func (s *QueryService) Quote(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.policy.Quote(app), nil
}

// RepaymentSchedule returns the monthly schedule of an APPROVED or DISBURSED application.
// Due dates run monthly from disbursement, or from approval while not yet disbursed.
func (s *QueryService) RepaymentSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if app.Status != domain.StatusApproved && app.Status != domain.StatusDisbursed {
		return nil, customError.WrapInvalidState(id.String(), "schedule", app.Status.String(),
			domain.StatusApproved.String(), domain.StatusDisbursed.String())
	}
	start := app.EnteredStatusAt()
	if start == nil {
		return nil, fmt.Errorf("application %s is %s without a matching timestamp", app.ID, app.Status)
	}

	rows := utils.AmortizationSchedule(app.Amount, app.TermMonths, s.policy.AnnualRate, *start)
	schedule := make([]*domain.Installment, 0, len(rows))
	for _, row := range rows {
		schedule = append(schedule, &domain.Installment{
			Period:           row.Period,
			DueDate:          row.DueDate,
			Principal:        row.Principal,
			Interest:         row.Interest,
			Total:            row.Total,
			RemainingBalance: row.RemainingBalance,
		})
	}

	return &domain.ScheduleResponse{
		ApplicationID: app.ID,
		Schedule:      schedule,
	}, nil
}
