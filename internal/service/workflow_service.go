package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/eligibility"
	"github.com/segyhp/loan-workflow/internal/repository"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
	"github.com/segyhp/loan-workflow/pkg/utils"
	"github.com/segyhp/loan-workflow/pkg/validation"
)

// Operation names used in state errors and logs
const (
	OpIntakeAccept       = "intake-accept"
	OpCheckBlacklist     = "check-blacklist"
	OpCompleteAssessment = "complete-assessment"
	OpApprove            = "approve"
	OpReject             = "reject"
	OpDisburse           = "disburse"
)

// WorkflowService owns every status transition of a loan application
type WorkflowService struct {
	apps      repository.ApplicationRepository
	customers repository.CustomerRepository
	tx        repository.Transactor
	screen    BlacklistScreen
	policy    eligibility.Policy
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

func NewWorkflowService(
	apps repository.ApplicationRepository,
	customers repository.CustomerRepository,
	tx repository.Transactor,
	screen BlacklistScreen,
	policy eligibility.Policy,
	logger *slog.Logger,
) *WorkflowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowService{
		apps:      apps,
		customers: customers,
		tx:        tx,
		screen:    screen,
		policy:    policy,
		validate:  validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for lifecycle timestamps
func (s *WorkflowService) WithClock(now func() time.Time) *WorkflowService {
	s.now = now
	return s
}

// Submit registers a new application in SUBMITTED, creating or updating the customer.
// Only syntactic checks apply here; business rules are enforced at intake.
func (s *WorkflowService) Submit(ctx context.Context, request *domain.SubmitApplicationRequest) (*domain.LoanApplication, error) {
	if request == nil {
		return nil, customError.WrapInvalidInput("request body is required")
	}
	request.Customer = request.Customer.Normalized()
	request.Purpose = strings.TrimSpace(request.Purpose)
	if err := s.validate.Struct(request); err != nil {
		return nil, customError.WrapInvalidInput(validation.Describe(err))
	}

	var app *domain.LoanApplication
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()

		customer, err := s.upsertCustomer(ctx, request.Customer, now)
		if err != nil {
			return err
		}

		app = &domain.LoanApplication{
			ID:            uuid.New(),
			CustomerID:    customer.ID,
			Amount:        request.Amount,
			TermMonths:    request.TermMonths,
			Purpose:       request.Purpose,
			MonthlyIncome: request.MonthlyIncome,
			Status:        domain.StatusSubmitted,
			SubmittedAt:   &now,
			UpdatedAt:     now,
		}
		if err := s.apps.Create(ctx, app); err != nil {
			return customError.WrapDatabaseError(err)
		}
		app.Customer = customer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application submitted",
		"application_id", app.ID,
		"customer_id", app.CustomerID,
		"amount", app.Amount.String(),
		"term_months", app.TermMonths,
	)
	return app, nil
}

// upsertCustomer matches by email, else phone, and updates changed contact fields
func (s *WorkflowService) upsertCustomer(ctx context.Context, info domain.CustomerInfo, now time.Time) (*domain.Customer, error) {
	customer, err := s.findCustomer(ctx, info)
	if err != nil {
		return nil, err
	}

	if customer == nil {
		customer = &domain.Customer{
			ID:        uuid.New(),
			FullName:  info.FullName,
			Email:     info.Email,
			Phone:     info.Phone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.customers.Create(ctx, customer); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		return customer, nil
	}

	if customer.Merge(info) {
		if err := s.customers.Update(ctx, customer); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}
	return customer, nil
}

func (s *WorkflowService) findCustomer(ctx context.Context, info domain.CustomerInfo) (*domain.Customer, error) {
	lookups := []struct {
		key string
		get func(context.Context, string) (*domain.Customer, error)
	}{
		{info.Email, s.customers.GetByEmail},
		{info.Phone, s.customers.GetByPhone},
	}
	for _, l := range lookups {
		if utils.IsBlank(l.key) {
			continue
		}
		customer, err := l.get(ctx, l.key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		return customer, nil
	}
	return nil, nil
}

// IntakeAccept moves a complete SUBMITTED application to UNDER_REVIEW
func (s *WorkflowService) IntakeAccept(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return s.transition(ctx, id, OpIntakeAccept, func(ctx context.Context, app *domain.LoanApplication, now time.Time) error {
		if err := requireStatus(app, OpIntakeAccept, domain.StatusSubmitted); err != nil {
			return err
		}
		if err := s.policy.CheckComplete(app); err != nil {
			return customError.WrapIncompleteApplication(app.ID.String(), err.Error())
		}
		app.Status = domain.StatusUnderReview
		stamp(&app.ReviewedAt, now)
		return nil
	})
}

// CheckBlacklistOrReject screens an UNDER_REVIEW application and rejects it on a hit.
// Outside UNDER_REVIEW, or when the screen is clear, the record is returned unchanged.
func (s *WorkflowService) CheckBlacklistOrReject(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return s.transition(ctx, id, OpCheckBlacklist, func(ctx context.Context, app *domain.LoanApplication, now time.Time) error {
		if app.Status != domain.StatusUnderReview {
			return nil
		}

		var email, phone string
		if app.Customer != nil {
			email, phone = app.Customer.Email, app.Customer.Phone
		}
		reason, flagged, err := s.screen.Check(ctx, email, phone)
		if err != nil {
			return err
		}
		if !flagged {
			return nil
		}

		app.Status = domain.StatusRejected
		app.RejectionReason = "Blacklist: " + reason
		stamp(&app.RejectedAt, now)
		return nil
	})
}

// CompleteAssessment records the assessment note and moves UNDER_REVIEW to ASSESSED
func (s *WorkflowService) CompleteAssessment(ctx context.Context, id uuid.UUID, note string) (*domain.LoanApplication, error) {
	note = strings.TrimSpace(note)

	return s.transition(ctx, id, OpCompleteAssessment, func(ctx context.Context, app *domain.LoanApplication, now time.Time) error {
		if err := requireStatus(app, OpCompleteAssessment, domain.StatusUnderReview); err != nil {
			return err
		}
		if err := s.validateNote(note); err != nil {
			return err
		}
		app.Status = domain.StatusAssessed
		app.AssessmentNote = note
		stamp(&app.AssessedAt, now)
		return nil
	})
}

// Approve re-checks eligibility and moves ASSESSED to APPROVED
func (s *WorkflowService) Approve(ctx context.Context, id uuid.UUID, note string) (*domain.LoanApplication, error) {
	note = strings.TrimSpace(note)

	return s.transition(ctx, id, OpApprove, func(ctx context.Context, app *domain.LoanApplication, now time.Time) error {
		if err := requireStatus(app, OpApprove, domain.StatusAssessed); err != nil {
			return err
		}
		if err := s.validateNote(note); err != nil {
			return err
		}
		if err := s.policy.CheckEligibility(app); err != nil {
			return customError.WrapNotEligible(app.ID.String(), err.Error())
		}
		app.Status = domain.StatusApproved
		app.ApprovalNote = note
		stamp(&app.ApprovedAt, now)
		return nil
	})
}

// Reject closes an UNDER_REVIEW or ASSESSED application with a reason
func (s *WorkflowService) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.LoanApplication, error) {
	reason = strings.TrimSpace(reason)

	return s.transition(ctx, id, OpReject, func(ctx context.Context, app *domain.LoanApplication, now time.Time) error {
		if err := requireStatus(app, OpReject, domain.StatusUnderReview, domain.StatusAssessed); err != nil {
			return err
		}
		if reason == "" {
			return customError.WrapInvalidInput("rejection reason must not be blank")
		}
		if err := s.validate.Struct(domain.RejectRequest{Reason: reason}); err != nil {
			return customError.WrapInvalidInput(validation.Describe(err))
		}
		app.Status = domain.StatusRejected
		app.RejectionReason = reason
		stamp(&app.RejectedAt, now)
		return nil
	})
}

// Disburse moves APPROVED to DISBURSED. A second call fails with an invalid state.
func (s *WorkflowService) Disburse(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return s.transition(ctx, id, OpDisburse, func(ctx context.Context, app *domain.LoanApplication, now time.Time) error {
		if err := requireStatus(app, OpDisburse, domain.StatusApproved); err != nil {
			return err
		}
		app.Status = domain.StatusDisbursed
		stamp(&app.DisbursedAt, now)
		return nil
	})
}

type mutation func(ctx context.Context, app *domain.LoanApplication, now time.Time) error

// transition runs load, validate, mutate and save as one unit of work.
// The application row is locked for the duration; nothing is written when apply fails.
func (s *WorkflowService) transition(ctx context.Context, id uuid.UUID, op string, apply mutation) (*domain.LoanApplication, error) {
	var (
		result *domain.LoanApplication
		from   domain.LoanStatus
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		app, err := s.loadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = app.Status

		if err := apply(ctx, app, s.now().UTC()); err != nil {
			return err
		}

		if app.Status == from {
			result = app
			return nil
		}
		if !domain.CanTransition(from, app.Status) {
			return fmt.Errorf("illegal transition %s -> %s for application %s", from, app.Status, app.ID)
		}
		if err := app.CheckConsistency(); err != nil {
			return fmt.Errorf("application %s: %w", app.ID, err)
		}
		if err := s.apps.Update(ctx, app); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return customError.WrapApplicationNotFound(id.String())
			}
			return customError.WrapDatabaseError(err)
		}

		result = app
		return nil
	})
	if err != nil {
		s.logger.Debug("transition refused", "operation", op, "application_id", id, "error", err)
		return nil, err
	}

	if result.Status != from {
		s.logger.Info("application transitioned",
			"operation", op,
			"application_id", result.ID,
			"from", from,
			"to", result.Status,
		)
	}
	return result, nil
}

// loadForUpdate locks the application and attaches its customer
func (s *WorkflowService) loadForUpdate(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	app, err := s.apps.GetByIDForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapApplicationNotFound(id.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	customer, err := s.customers.GetByID(ctx, app.CustomerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		app.Customer = nil
	case err != nil:
		return nil, customError.WrapDatabaseError(err)
	default:
		app.Customer = customer
	}
	return app, nil
}

func requireStatus(app *domain.LoanApplication, op string, allowed ...domain.LoanStatus) error {
	for _, status := range allowed {
		if app.Status == status {
			return nil
		}
	}
	required := make([]string, len(allowed))
	for i, status := range allowed {
		required[i] = status.String()
	}
	return customError.WrapInvalidState(app.ID.String(), op, app.Status.String(), required...)
}

func (s *WorkflowService) validateNote(note string) error {
	if err := s.validate.Struct(domain.NoteRequest{Note: note}); err != nil {
		return customError.WrapInvalidInput(validation.Describe(err))
	}
	return nil
}

// stamp sets a lifecycle timestamp only the first time
func stamp(ts **time.Time, now time.Time) {
	if *ts == nil {
		t := now
		*ts = &t
	}
}
