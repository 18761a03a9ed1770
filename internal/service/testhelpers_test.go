package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/eligibility"
	"github.com/segyhp/loan-workflow/internal/repository/memory"
)

var testStart = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

// fakeClock advances by step on every reading
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: testStart, step: time.Minute}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store     *memory.Store
	blacklist *BlacklistService
	workflow  *WorkflowService
	query     *QueryService
	clock     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	logger := discardLogger()
	blacklist := NewBlacklistService(store.Blacklist(), logger)
	require.NoError(t, blacklist.EnsureSamples(context.Background()))

	clock := newFakeClock()
	policy := eligibility.DefaultPolicy()
	return &fixture{
		store:     store,
		blacklist: blacklist,
		workflow: NewWorkflowService(store.Applications(), store.Customers(), store, blacklist, policy, logger).
			WithClock(clock.Now),
		query: NewQueryService(store.Applications(), store.Customers(), policy),
		clock: clock,
	}
}

func validRequest() *domain.SubmitApplicationRequest {
	return &domain.SubmitApplicationRequest{
		Customer: domain.CustomerInfo{
			FullName: "Nguyen Van A",
			Email:    "a.nguyen@example.com",
			Phone:    "0912345678",
		},
		Amount:        decimal.NewFromInt(5_000_000),
		TermMonths:    12,
		Purpose:       "Motorbike",
		MonthlyIncome: decimal.NewFromInt(3_000_000),
	}
}

// seedApplication stores an application already sitting in status with consistent timestamps
func (f *fixture) seedApplication(t *testing.T, status domain.LoanStatus) *domain.LoanApplication {
	t.Helper()
	ctx := context.Background()

	customer := &domain.Customer{
		ID:        uuid.New(),
		FullName:  "Tran Thi B",
		Email:     uuid.NewString() + "@example.com",
		Phone:     "0987654321",
		CreatedAt: testStart,
		UpdatedAt: testStart,
	}
	require.NoError(t, f.store.Customers().Create(ctx, customer))

	at := func(minutes int) *time.Time {
		ts := testStart.Add(time.Duration(minutes) * time.Minute)
		return &ts
	}

	app := &domain.LoanApplication{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		Amount:        decimal.NewFromInt(5_000_000),
		TermMonths:    12,
		MonthlyIncome: decimal.NewFromInt(3_000_000),
		Status:        status,
		SubmittedAt:   at(-60),
		UpdatedAt:     testStart,
	}
	if status != domain.StatusSubmitted {
		app.ReviewedAt = at(-50)
	}
	switch status {
	case domain.StatusAssessed:
		app.AssessedAt = at(-40)
	case domain.StatusApproved:
		app.AssessedAt, app.ApprovedAt = at(-40), at(-30)
	case domain.StatusDisbursed:
		app.AssessedAt, app.ApprovedAt, app.DisbursedAt = at(-40), at(-30), at(-20)
	case domain.StatusRejected:
		app.RejectedAt = at(-40)
		app.RejectionReason = "seeded"
	}
	require.NoError(t, app.CheckConsistency())
	require.NoError(t, f.store.Applications().Create(ctx, app))
	return app
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.LoanStatus {
	t.Helper()
	app, err := f.store.Applications().GetByID(context.Background(), id)
	require.NoError(t, err)
	return app.Status
}
