package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-workflow/internal/domain"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
)

// missMarker caches a negative lookup so clean identities skip the database too
const missMarker = "-"

type cachedBlacklistRepository struct {
	inner  BlacklistRepository
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedBlacklistRepository wraps a blacklist repository with a Redis read-through cache.
// Cache failures fall back to the inner repository.
func NewCachedBlacklistRepository(inner BlacklistRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) BlacklistRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedBlacklistRepository{
		inner:  inner,
		client: client,
		prefix: "loanflow:blacklist:",
		ttl:    ttl,
		logger: logger,
	}
}

func (r *cachedBlacklistRepository) key(entryType domain.BlacklistType, value string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, entryType, domain.NormalizeBlacklistValue(value))
}

func (r *cachedBlacklistRepository) FindActive(ctx context.Context, entryType domain.BlacklistType, value string) (*domain.BlacklistEntry, error) {
	key := r.key(entryType, value)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == missMarker {
			return nil, ErrNotFound
		}
		var entry domain.BlacklistEntry
		if err := json.Unmarshal(data, &entry); err == nil {
			return &entry, nil
		}
		r.logger.Warn("discarding corrupt blacklist cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		r.degraded("blacklist cache read failed", key, err)
	}

	entry, err := r.inner.FindActive(ctx, entryType, value)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payload := []byte(missMarker)
	if entry != nil {
		if payload, err = json.Marshal(entry); err != nil {
			return entry, nil
		}
	}
	if setErr := r.client.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
		r.degraded("blacklist cache write failed", key, setErr)
	}

	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (r *cachedBlacklistRepository) Create(ctx context.Context, entry *domain.BlacklistEntry) error {
	if err := r.inner.Create(ctx, entry); err != nil {
		return err
	}
	key := r.key(entry.Type, entry.Value)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.degraded("blacklist cache invalidation failed", key, err)
	}
	return nil
}

// degraded logs a cache failure; lookups carry on against the inner repository
func (r *cachedBlacklistRepository) degraded(msg, key string, err error) {
	cacheErr := customError.WrapCacheError(err)
	r.logger.Warn(msg, "key", key, "code", cacheErr.Code, "error", cacheErr)
}
