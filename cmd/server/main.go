package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-workflow/internal/config"
	"github.com/segyhp/loan-workflow/internal/database"
	"github.com/segyhp/loan-workflow/internal/handler"
	"github.com/segyhp/loan-workflow/internal/repository"
	"github.com/segyhp/loan-workflow/internal/repository/memory"
	"github.com/segyhp/loan-workflow/internal/service"
	"github.com/segyhp/loan-workflow/pkg/logger"
)

// storage is the set of repositories behind the services
type storage struct {
	apps      repository.ApplicationRepository
	customers repository.CustomerRepository
	blacklist repository.BlacklistRepository
	tx        repository.Transactor
	db        *sqlx.DB
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogOptions())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := initStorage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if store.db != nil {
		defer store.db.Close()
	}

	// Redis only fronts blacklist lookups; it stays optional
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		opts, err := cfg.RedisOptions()
		if err != nil {
			log.Error("invalid redis configuration", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		redisClient = client
		store.blacklist = repository.NewCachedBlacklistRepository(store.blacklist, client, cfg.GetBlacklistTTL(), log)
	}

	policy := cfg.Policy()
	blacklistService := service.NewBlacklistService(store.blacklist, log)
	if err := blacklistService.EnsureSamples(ctx); err != nil {
		log.Warn("failed to seed blacklist samples", "error", err)
	}

	workflowService := service.NewWorkflowService(store.apps, store.customers, store.tx, blacklistService, policy, log)
	queryService := service.NewQueryService(store.apps, store.customers, policy)
	monitor := service.NewSLAMonitor(store.apps, log)

	workflowHandler := handler.NewWorkflowHandler(service.NewAuditedWorkflow(workflowService, log), queryService, monitor, log)
	healthHandler := handler.NewHealthHandler(store.db, redisClient, cfg.GetHealthTimeout())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.NewRouter(workflowHandler, healthHandler, log),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", "addr", server.Addr, "storage", cfg.Database.Driver, "redis", cfg.Redis.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

func initStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			apps:      store.Applications(),
			customers: store.Customers(),
			blacklist: store.Blacklist(),
			tx:        store,
		}, nil
	}

	db, err := database.Connect(ctx, cfg.DSN(), database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.GetConnMaxLifetime(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.DSN(), cfg.Database.MigrationsDir); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("database migrations applied", "dir", cfg.Database.MigrationsDir)
	}

	return &storage{
		apps:      repository.NewApplicationRepository(db),
		customers: repository.NewCustomerRepository(db),
		blacklist: repository.NewBlacklistRepository(db),
		tx:        repository.NewTransactor(db),
		db:        db,
	}, nil
}
