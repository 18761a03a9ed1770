package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/segyhp/loan-workflow/internal/domain"
)

// ErrNotFound is returned by every repository when the requested row does not exist
var ErrNotFound = errors.New("repository: not found")

// Transactor scopes a unit of work. Repositories called with the context
// passed to fn join the transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ApplicationRepository defines the interface for loan application data operations
type ApplicationRepository interface {
	// Create inserts a new application
	Create(ctx context.Context, app *domain.LoanApplication) error

	// GetByID retrieves an application by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)

	// GetByIDForUpdate retrieves an application and locks it for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)

	// Update persists the workflow fields of an application
	Update(ctx context.Context, app *domain.LoanApplication) error

	// ListByStatus returns applications in any of the statuses, oldest submission first.
	// No statuses means all applications.
	ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.LoanApplication, error)

	// ListByCustomer returns a customer's applications, newest submission first
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.LoanApplication, error)

	// CountByStatus returns the number of applications per status
	CountByStatus(ctx context.Context) (map[domain.LoanStatus]int, error)
}

// CustomerRepository defines the interface for customer data operations
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	Update(ctx context.Context, customer *domain.Customer) error
}

// BlacklistRepository defines the interface for blacklist lookups
type BlacklistRepository interface {
	// FindActive returns the active entry matching type and value case-insensitively
	FindActive(ctx context.Context, entryType domain.BlacklistType, value string) (*domain.BlacklistEntry, error)

	// Create inserts a new entry
	Create(ctx context.Context, entry *domain.BlacklistEntry) error
}
