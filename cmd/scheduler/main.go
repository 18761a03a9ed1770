package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/loan-workflow/internal/config"
	"github.com/segyhp/loan-workflow/internal/database"
	"github.com/segyhp/loan-workflow/internal/repository"
	"github.com/segyhp/loan-workflow/internal/service"
	"github.com/segyhp/loan-workflow/pkg/logger"
)

// scanTimeout bounds a single SLA scan
const scanTimeout = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogOptions()).With("component", "scheduler")

	// The in-memory store lives inside the server process, so there is nothing to scan here
	if cfg.Database.Driver != config.DriverPostgres {
		log.Error("scheduler requires postgres storage", "driver", cfg.Database.Driver)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DSN(), database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.GetConnMaxLifetime(),
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	monitor := service.NewSLAMonitor(repository.NewApplicationRepository(db), log)

	c := cron.New(cron.WithLocation(cfg.GetSchedulerLocation()))
	if err := setupCronJobs(ctx, c, cfg, monitor, log); err != nil {
		log.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	c.Start()
	log.Info("scheduler started", "spec", cfg.Scheduler.Spec, "timezone", cfg.Scheduler.Timezone)

	<-ctx.Done()

	log.Info("shutting down scheduler")
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func setupCronJobs(ctx context.Context, c *cron.Cron, cfg *config.Config, monitor *service.SLAMonitor, log *slog.Logger) error {
	_, err := c.AddFunc(cfg.Scheduler.Spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, scanTimeout)
		defer cancel()

		if _, err := monitor.Report(jobCtx); err != nil {
			log.Error("SLA scan failed", "error", err)
		}
	})
	return err
}
