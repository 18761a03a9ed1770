package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-workflow/internal/domain"
)

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, full_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		customer.ID,
		customer.FullName,
		customer.Email,
		customer.Phone,
		customer.CreatedAt,
		customer.UpdatedAt,
	)

	return err
}

func (r *customerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	return r.getOne(ctx, `SELECT id, full_name, email, phone, created_at, updated_at FROM customers WHERE id = $1`, id)
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	query := `
		SELECT id, full_name, email, phone, created_at, updated_at
		FROM customers
		WHERE lower(email) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, query, email)
}

func (r *customerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	query := `
		SELECT id, full_name, email, phone, created_at, updated_at
		FROM customers
		WHERE phone = $1
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, query, phone)
}

func (r *customerRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.Customer, error) {
	var customer domain.Customer
	err := conn(ctx, r.db).GetContext(ctx, &customer, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	query := `
		UPDATE customers
		SET full_name = $2, email = $3, phone = $4, updated_at = $5
		WHERE id = $1
	`

	customer.UpdatedAt = time.Now().UTC()
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		customer.ID,
		customer.FullName,
		customer.Email,
		customer.Phone,
		customer.UpdatedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
