package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/repository"
)

func newApplication(status domain.LoanStatus, submitted time.Time) *domain.LoanApplication {
	return &domain.LoanApplication{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		Amount:        decimal.NewFromInt(5_000_000),
		TermMonths:    12,
		MonthlyIncome: decimal.NewFromInt(3_000_000),
		Status:        status,
		SubmittedAt:   &submitted,
	}
}

func TestStore_ApplicationsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	apps := store.Applications()

	app := newApplication(domain.StatusSubmitted, time.Now())
	require.NoError(t, apps.Create(ctx, app))

	got, err := apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	got.Status = domain.StatusRejected
	*got.SubmittedAt = time.Time{}

	again, err := apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, again.Status)
	assert.False(t, again.SubmittedAt.IsZero())
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, err := store.Applications().GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.Applications().Update(ctx, newApplication(domain.StatusSubmitted, time.Now()))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.Customers().GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	apps := store.Applications()

	app := newApplication(domain.StatusSubmitted, time.Now())
	require.NoError(t, apps.Create(ctx, app))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context) error {
		loaded, err := apps.GetByIDForUpdate(ctx, app.ID)
		require.NoError(t, err)
		loaded.Status = domain.StatusUnderReview
		require.NoError(t, apps.Update(ctx, loaded))

		require.NoError(t, store.Customers().Create(ctx, &domain.Customer{ID: uuid.New(), Email: "a@b.c"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.Status)

	_, err = store.Customers().GetByEmail(ctx, "a@b.c")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_WithTxCommitsAndNests(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	apps := store.Applications()
	app := newApplication(domain.StatusSubmitted, time.Now())

	err := store.WithTx(ctx, func(ctx context.Context) error {
		return store.WithTx(ctx, func(ctx context.Context) error {
			return apps.Create(ctx, app)
		})
	})
	require.NoError(t, err)

	_, err = apps.GetByID(ctx, app.ID)
	assert.NoError(t, err)
}

func TestStore_ListAndCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	apps := store.Applications()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	first := newApplication(domain.StatusSubmitted, base)
	second := newApplication(domain.StatusAssessed, base.Add(time.Hour))
	third := newApplication(domain.StatusSubmitted, base.Add(2*time.Hour))
	third.CustomerID = first.CustomerID
	for _, a := range []*domain.LoanApplication{third, first, second} {
		require.NoError(t, apps.Create(ctx, a))
	}

	submitted, err := apps.ListByStatus(ctx, domain.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, submitted, 2)
	assert.Equal(t, first.ID, submitted[0].ID)
	assert.Equal(t, third.ID, submitted[1].ID)

	all, err := apps.ListByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := apps.ListByCustomer(ctx, first.CustomerID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, third.ID, mine[0].ID)

	counts, err := apps.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, len(domain.AllStatuses))
	assert.Equal(t, 2, counts[domain.StatusSubmitted])
	assert.Equal(t, 1, counts[domain.StatusAssessed])
	assert.Equal(t, 0, counts[domain.StatusDisbursed])
}

func TestStore_CustomerLookup(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	customers := store.Customers()

	c := &domain.Customer{ID: uuid.New(), FullName: "Jane", Email: "Jane@Example.com", Phone: "0911", CreatedAt: time.Now()}
	require.NoError(t, customers.Create(ctx, c))

	byEmail, err := customers.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byEmail.ID)

	byPhone, err := customers.GetByPhone(ctx, "0911")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byPhone.ID)

	byEmail.FullName = "Jane Doe"
	require.NoError(t, customers.Update(ctx, byEmail))
	reloaded, err := customers.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", reloaded.FullName)
}

func TestStore_BlacklistMatchesActiveCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	bl := store.Blacklist()

	require.NoError(t, bl.Create(ctx, &domain.BlacklistEntry{Type: domain.BlacklistEmail, Value: "Fraud@Example.com", Reason: "Prior fraud", Active: true}))
	require.NoError(t, bl.Create(ctx, &domain.BlacklistEntry{Type: domain.BlacklistPhone, Value: "0900000000", Reason: "old", Active: false}))

	entry, err := bl.FindActive(ctx, domain.BlacklistEmail, "fraud@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "Prior fraud", entry.Reason)
	assert.Equal(t, int64(1), entry.ID)

	_, err = bl.FindActive(ctx, domain.BlacklistPhone, "0900000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = bl.FindActive(ctx, domain.BlacklistPhone, "fraud@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
