package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/repository"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
	"github.com/segyhp/loan-workflow/pkg/utils"
)

// BlacklistScreen answers whether an identity is barred and why
type BlacklistScreen interface {
	Check(ctx context.Context, email, phone string) (reason string, flagged bool, err error)
}

// sampleEntries are ensured at process start
var sampleEntries = []domain.BlacklistEntry{
	{Type: domain.BlacklistEmail, Value: "fraud@example.com", Reason: "Prior fraud", Active: true},
	{Type: domain.BlacklistPhone, Value: "0900000000", Reason: "Bad debt group 5", Active: true},
}

type BlacklistService struct {
	repo   repository.BlacklistRepository
	logger *slog.Logger
}

func NewBlacklistService(repo repository.BlacklistRepository, logger *slog.Logger) *BlacklistService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlacklistService{
		repo:   repo,
		logger: logger,
	}
}

// Check screens the email first, then the phone. Blank values are skipped.
func (s *BlacklistService) Check(ctx context.Context, email, phone string) (string, bool, error) {
	candidates := []struct {
		kind  domain.BlacklistType
		value string
	}{
		{domain.BlacklistEmail, email},
		{domain.BlacklistPhone, phone},
	}

	for _, c := range candidates {
		if utils.IsBlank(c.value) {
			continue
		}
		entry, err := s.repo.FindActive(ctx, c.kind, c.value)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", false, customError.WrapDatabaseError(err)
		}
		return entry.Reason, true, nil
	}

	return "", false, nil
}

// EnsureSamples inserts the sample entries that are not present yet
func (s *BlacklistService) EnsureSamples(ctx context.Context) error {
	for _, sample := range sampleEntries {
		_, err := s.repo.FindActive(ctx, sample.Type, sample.Value)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return customError.WrapDatabaseError(err)
		}

		entry := sample
		entry.CreatedAt = time.Now().UTC()
		if err := s.repo.Create(ctx, &entry); err != nil {
			return customError.WrapDatabaseError(err)
		}
		s.logger.Info("seeded blacklist entry", "type", entry.Type, "value", entry.Value)
	}
	return nil
}
