package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-workflow/pkg/response"
)

type HealthHandler struct {
	checks  map[string]func(ctx context.Context) error
	timeout time.Duration
}

// NewHealthHandler checks every dependency that is configured; nil ones are skipped
func NewHealthHandler(db *sqlx.DB, redisClient redis.UniversalClient, timeout time.Duration) *HealthHandler {
	h := &HealthHandler{
		checks:  make(map[string]func(ctx context.Context) error),
		timeout: timeout,
	}
	if db != nil {
		h.checks["database"] = db.PingContext
	}
	if redisClient != nil {
		h.checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if h.timeout <= 0 {
		h.timeout = 5 * time.Second
	}
	return h
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

// Ready performs readiness check including database and redis connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := check(ctx)
		cancel()

		if err != nil {
			status.Status = "error"
			status.Checks[name] = "failed: " + err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}

	if status.Status == "error" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	response.Success(w, status)
}
