package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-workflow/internal/domain"
)

type blacklistRepository struct {
	db *sqlx.DB
}

func NewBlacklistRepository(db *sqlx.DB) BlacklistRepository {
	return &blacklistRepository{db: db}
}

func (r *blacklistRepository) FindActive(ctx context.Context, entryType domain.BlacklistType, value string) (*domain.BlacklistEntry, error) {
	query := `
		SELECT id, type, value, reason, active, created_at
		FROM blacklist_entries
		WHERE type = $1 AND lower(value) = $2 AND active
		ORDER BY id
		LIMIT 1
	`

	var entry domain.BlacklistEntry
	err := conn(ctx, r.db).GetContext(ctx, &entry, query, entryType, domain.NormalizeBlacklistValue(value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *blacklistRepository) Create(ctx context.Context, entry *domain.BlacklistEntry) error {
	query := `
		INSERT INTO blacklist_entries (type, value, reason, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return conn(ctx, r.db).QueryRowxContext(ctx, query,
		entry.Type,
		entry.Value,
		entry.Reason,
		entry.Active,
		entry.CreatedAt,
	).Scan(&entry.ID)
}
