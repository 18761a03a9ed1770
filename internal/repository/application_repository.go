package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/segyhp/loan-workflow/internal/domain"
)

const applicationColumns = `
	id, customer_id, amount, term_months, purpose, monthly_income, status,
	assessment_note, approval_note, rejection_reason,
	submitted_at, reviewed_at, assessed_at, approved_at, rejected_at, disbursed_at, updated_at`

type applicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *domain.LoanApplication) error {
	query := `
		INSERT INTO loan_applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		app.ID,
		app.CustomerID,
		app.Amount,
		app.TermMonths,
		app.Purpose,
		app.MonthlyIncome,
		app.Status,
		app.AssessmentNote,
		app.ApprovalNote,
		app.RejectionReason,
		app.SubmittedAt,
		app.ReviewedAt,
		app.AssessedAt,
		app.ApprovedAt,
		app.RejectedAt,
		app.DisbursedAt,
		app.UpdatedAt,
	)

	return err
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return r.get(ctx, `SELECT`+applicationColumns+` FROM loan_applications WHERE id = $1`, id)
}

func (r *applicationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return r.get(ctx, `SELECT`+applicationColumns+` FROM loan_applications WHERE id = $1 FOR UPDATE`, id)
}

func (r *applicationRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.LoanApplication, error) {
	var app domain.LoanApplication
	err := conn(ctx, r.db).GetContext(ctx, &app, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &app, nil
}

func (r *applicationRepository) Update(ctx context.Context, app *domain.LoanApplication) error {
	query := `
		UPDATE loan_applications
		SET status = $2, assessment_note = $3, approval_note = $4, rejection_reason = $5,
		    reviewed_at = $6, assessed_at = $7, approved_at = $8, rejected_at = $9, disbursed_at = $10,
		    updated_at = $11
		WHERE id = $1
	`

	app.UpdatedAt = time.Now().UTC()
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		app.ID,
		app.Status,
		app.AssessmentNote,
		app.ApprovalNote,
		app.RejectionReason,
		app.ReviewedAt,
		app.AssessedAt,
		app.ApprovedAt,
		app.RejectedAt,
		app.DisbursedAt,
		app.UpdatedAt,
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

func (r *applicationRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.LoanApplication, error) {
	query := `SELECT` + applicationColumns + ` FROM loan_applications`
	args := []interface{}{}
	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, s := range statuses {
			raw[i] = string(s)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(raw))
	}
	query += ` ORDER BY submitted_at, id`

	var apps []*domain.LoanApplication
	if err := conn(ctx, r.db).SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *applicationRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.LoanApplication, error) {
	query := `SELECT` + applicationColumns + `
		FROM loan_applications
		WHERE customer_id = $1
		ORDER BY submitted_at DESC, id
	`

	var apps []*domain.LoanApplication
	if err := conn(ctx, r.db).SelectContext(ctx, &apps, query, customerID); err != nil {
		return nil, err
	}

	return apps, nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context) (map[domain.LoanStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM loan_applications GROUP BY status`

	var rows []struct {
		Status domain.LoanStatus `db:"status"`
		Count  int               `db:"count"`
	}
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	counts := make(map[domain.LoanStatus]int, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}
