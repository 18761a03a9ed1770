package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/loan-workflow/internal/domain"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
)

// Workflow is the set of workflow operations callers drive
type Workflow interface {
	Submit(ctx context.Context, request *domain.SubmitApplicationRequest) (*domain.LoanApplication, error)
	IntakeAccept(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)
	CheckBlacklistOrReject(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)
	CompleteAssessment(ctx context.Context, id uuid.UUID, note string) (*domain.LoanApplication, error)
	Approve(ctx context.Context, id uuid.UUID, note string) (*domain.LoanApplication, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.LoanApplication, error)
	Disburse(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)
}

var _ Workflow = (*WorkflowService)(nil)

// Actor identifies who drives an operation. The engine does not authorise on it.
type Actor struct {
	Role string
	Name string
}

// Anonymous is used when a caller supplies no identity
var Anonymous = Actor{Role: "anonymous"}

// AuditedWorkflow records the actor and outcome of each workflow call
type AuditedWorkflow struct {
	inner  Workflow
	logger *slog.Logger
}

func NewAuditedWorkflow(inner Workflow, logger *slog.Logger) *AuditedWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedWorkflow{
		inner:  inner,
		logger: logger.With("component", "audit"),
	}
}

func (w *AuditedWorkflow) record(ctx context.Context, actor Actor, op string, id uuid.UUID, started time.Time, app *domain.LoanApplication, err error) {
	attrs := []any{
		"actor_role", actor.Role,
		"actor_name", actor.Name,
		"operation", op,
		"duration", time.Since(started),
	}
	if id == uuid.Nil && app != nil {
		id = app.ID
	}
	if id != uuid.Nil {
		attrs = append(attrs, "application_id", id)
	}
	if app != nil {
		attrs = append(attrs, "status", app.Status)
	}

	if err != nil {
		attrs = append(attrs, "code", customError.CodeOf(err), "error", err)
		w.logger.WarnContext(ctx, "workflow call failed", attrs...)
		return
	}
	w.logger.InfoContext(ctx, "workflow call", attrs...)
}

func (w *AuditedWorkflow) Submit(ctx context.Context, actor Actor, request *domain.SubmitApplicationRequest) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.Submit(ctx, request)
	w.record(ctx, actor, "submit", uuid.Nil, started, app, err)
	return app, err
}

func (w *AuditedWorkflow) IntakeAccept(ctx context.Context, actor Actor, id uuid.UUID) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.IntakeAccept(ctx, id)
	w.record(ctx, actor, OpIntakeAccept, id, started, app, err)
	return app, err
}

func (w *AuditedWorkflow) CheckBlacklistOrReject(ctx context.Context, actor Actor, id uuid.UUID) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.CheckBlacklistOrReject(ctx, id)
	w.record(ctx, actor, OpCheckBlacklist, id, started, app, err)
	return app, err
}

func (w *AuditedWorkflow) CompleteAssessment(ctx context.Context, actor Actor, id uuid.UUID, note string) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.CompleteAssessment(ctx, id, note)
	w.record(ctx, actor, OpCompleteAssessment, id, started, app, err)
	return app, err
}

func (w *AuditedWorkflow) Approve(ctx context.Context, actor Actor, id uuid.UUID, note string) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.Approve(ctx, id, note)
	w.record(ctx, actor, OpApprove, id, started, app, err)
	return app, err
}

func (w *AuditedWorkflow) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.Reject(ctx, id, reason)
	w.record(ctx, actor, OpReject, id, started, app, err)
	return app, err
}

func (w *AuditedWorkflow) Disburse(ctx context.Context, actor Actor, id uuid.UUID) (*domain.LoanApplication, error) {
	started := time.Now()
	app, err := w.inner.Disburse(ctx, id)
	w.record(ctx, actor, OpDisburse, id, started, app, err)
	return app, err
}
