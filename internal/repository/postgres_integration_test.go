package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/segyhp/loan-workflow/internal/database"
	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/repository"
)

const migrationsDir = "../../migrations"

// startPostgres runs a throwaway postgres with the schema applied
func startPostgres(ctx context.Context, t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("loanflow_test"),
		postgres.WithUsername("loanflow"),
		postgres.WithPassword("loanflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(dsn, migrationsDir))

	db, err := database.Connect(ctx, dsn, database.PoolOptions{MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, dsn
}

// startRedis runs a throwaway redis and returns a client for it
func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func newCustomer(email, phone string) *domain.Customer {
	now := time.Now().UTC()
	return &domain.Customer{
		ID:        uuid.New(),
		FullName:  "Tran Thi B",
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newApplication(customerID uuid.UUID, submitted time.Time) *domain.LoanApplication {
	return &domain.LoanApplication{
		ID:            uuid.New(),
		CustomerID:    customerID,
		Amount:        decimal.RequireFromString("10000000.00"),
		TermMonths:    12,
		Purpose:       "Motorbike",
		MonthlyIncome: decimal.RequireFromString("3000000.00"),
		Status:        domain.StatusSubmitted,
		SubmittedAt:   &submitted,
		UpdatedAt:     submitted,
	}
}

func TestPostgresRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	db, _ := startPostgres(ctx, t)

	apps := repository.NewApplicationRepository(db)
	customers := repository.NewCustomerRepository(db)
	blacklist := repository.NewBlacklistRepository(db)
	tx := repository.NewTransactor(db)

	customer := newCustomer("B.Tran@Example.com", "0987654321")
	require.NoError(t, customers.Create(ctx, customer))

	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	t.Run("customer lookup", func(t *testing.T) {
		got, err := customers.GetByEmail(ctx, "b.tran@example.com")
		require.NoError(t, err)
		assert.Equal(t, customer.ID, got.ID)

		got, err = customers.GetByPhone(ctx, "0987654321")
		require.NoError(t, err)
		assert.Equal(t, customer.ID, got.ID)

		_, err = customers.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		got.FullName = "Tran Thi Bich"
		require.NoError(t, customers.Update(ctx, got))
		reloaded, err := customers.GetByID(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tran Thi Bich", reloaded.FullName)
	})

	t.Run("application round trip", func(t *testing.T) {
		app := newApplication(customer.ID, base)
		require.NoError(t, apps.Create(ctx, app))

		got, err := apps.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.True(t, app.Amount.Equal(got.Amount))
		assert.Equal(t, domain.StatusSubmitted, got.Status)
		assert.Nil(t, got.ReviewedAt)

		reviewed := base.Add(time.Hour)
		got.Status = domain.StatusUnderReview
		got.ReviewedAt = &reviewed
		require.NoError(t, apps.Update(ctx, got))

		again, err := apps.GetByID(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusUnderReview, again.Status)
		require.NotNil(t, again.ReviewedAt)
		assert.True(t, reviewed.Equal(*again.ReviewedAt))

		_, err = apps.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, apps.Update(ctx, newApplication(customer.ID, base)), repository.ErrNotFound)
	})

	t.Run("list and count", func(t *testing.T) {
		other := newCustomer("c.le@example.com", "0911111111")
		require.NoError(t, customers.Create(ctx, other))

		older := newApplication(other.ID, base.Add(-48*time.Hour))
		newer := newApplication(other.ID, base.Add(-24*time.Hour))
		require.NoError(t, apps.Create(ctx, newer))
		require.NoError(t, apps.Create(ctx, older))

		byCustomer, err := apps.ListByCustomer(ctx, other.ID)
		require.NoError(t, err)
		require.Len(t, byCustomer, 2)
		assert.Equal(t, newer.ID, byCustomer[0].ID)

		submitted, err := apps.ListByStatus(ctx, domain.StatusSubmitted)
		require.NoError(t, err)
		require.Len(t, submitted, 2)
		assert.Equal(t, older.ID, submitted[0].ID)

		counts, err := apps.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[domain.StatusSubmitted])
		assert.Equal(t, 1, counts[domain.StatusUnderReview])
		assert.Equal(t, 0, counts[domain.StatusDisbursed])
	})

	t.Run("transaction rollback", func(t *testing.T) {
		app := newApplication(customer.ID, base)
		boom := errors.New("boom")

		err := tx.WithTx(ctx, func(ctx context.Context) error {
			require.NoError(t, apps.Create(ctx, app))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = apps.GetByID(ctx, app.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("row lock serializes writers", func(t *testing.T) {
		app := newApplication(customer.ID, base)
		require.NoError(t, apps.Create(ctx, app))

		locked := make(chan struct{})
		observed := make(chan domain.LoanStatus, 1)

		err := tx.WithTx(ctx, func(txCtx context.Context) error {
			first, err := apps.GetByIDForUpdate(txCtx, app.ID)
			if err != nil {
				return err
			}

			go func() {
				close(locked)
				_ = tx.WithTx(ctx, func(ctx context.Context) error {
					second, err := apps.GetByIDForUpdate(ctx, app.ID)
					if err != nil {
						return err
					}
					observed <- second.Status
					return nil
				})
			}()

			<-locked
			time.Sleep(200 * time.Millisecond)
			select {
			case <-observed:
				t.Fatal("second transaction read a locked row")
			default:
			}

			first.Status = domain.StatusUnderReview
			return apps.Update(txCtx, first)
		})
		require.NoError(t, err)

		select {
		case status := <-observed:
			assert.Equal(t, domain.StatusUnderReview, status)
		case <-time.After(5 * time.Second):
			t.Fatal("second transaction never acquired the lock")
		}
	})

	t.Run("blacklist lookup", func(t *testing.T) {
		entry := &domain.BlacklistEntry{
			Type:      domain.BlacklistEmail,
			Value:     "Fraud@Example.com",
			Reason:    "Prior fraud",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, blacklist.Create(ctx, entry))
		assert.NotZero(t, entry.ID)

		got, err := blacklist.FindActive(ctx, domain.BlacklistEmail, " fraud@example.COM ")
		require.NoError(t, err)
		assert.Equal(t, "Prior fraud", got.Reason)

		inactive := &domain.BlacklistEntry{
			Type:      domain.BlacklistPhone,
			Value:     "0900000001",
			Active:    false,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, blacklist.Create(ctx, inactive))
		_, err = blacklist.FindActive(ctx, domain.BlacklistPhone, "0900000001")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		duplicate := *entry
		duplicate.Value = "FRAUD@example.com"
		assert.Error(t, blacklist.Create(ctx, &duplicate))
	})
}

func TestCachedBlacklistRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	db, _ := startPostgres(ctx, t)
	client := startRedis(ctx, t)

	cached := repository.NewCachedBlacklistRepository(repository.NewBlacklistRepository(db), client, time.Minute, nil)

	_, err := cached.FindActive(ctx, domain.BlacklistPhone, "0900000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	marker, err := client.Get(ctx, "loanflow:blacklist:PHONE:0900000000").Result()
	require.NoError(t, err)
	assert.Equal(t, "-", marker)

	// Create through the cache drops the negative entry
	require.NoError(t, cached.Create(ctx, &domain.BlacklistEntry{
		Type:      domain.BlacklistPhone,
		Value:     "0900000000",
		Reason:    "Bad debt group 5",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}))

	got, err := cached.FindActive(ctx, domain.BlacklistPhone, "0900000000")
	require.NoError(t, err)
	assert.Equal(t, "Bad debt group 5", got.Reason)

	// Served from redis once the row is gone
	_, err = db.ExecContext(ctx, `DELETE FROM blacklist_entries`)
	require.NoError(t, err)

	got, err = cached.FindActive(ctx, domain.BlacklistPhone, "0900000000")
	require.NoError(t, err)
	assert.Equal(t, "Bad debt group 5", got.Reason)
}

func TestMigrations_DownAndUpAgain(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	db, dsn := startPostgres(ctx, t)

	tableExists := func(name string) bool {
		var exists bool
		require.NoError(t, db.GetContext(ctx, &exists, `SELECT to_regclass($1) IS NOT NULL`, name))
		return exists
	}

	require.NoError(t, database.MigrateDown(dsn, migrationsDir))
	for _, table := range []string{"customers", "loan_applications", "blacklist_entries"} {
		assert.False(t, tableExists(table), table)
	}

	require.NoError(t, database.Migrate(dsn, migrationsDir))
	require.NoError(t, database.Migrate(dsn, migrationsDir), "a second run has nothing to apply")
	for _, table := range []string{"customers", "loan_applications", "blacklist_entries"} {
		assert.True(t, tableExists(table), table)
	}
}
