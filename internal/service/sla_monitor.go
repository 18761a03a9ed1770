package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/segyhp/loan-workflow/internal/domain"
	"github.com/segyhp/loan-workflow/internal/repository"
	customError "github.com/segyhp/loan-workflow/pkg/errors"
	"github.com/segyhp/loan-workflow/pkg/utils"
)

// OverdueApplication is an application that has sat in its status past the SLA window
type OverdueApplication struct {
	Application *domain.LoanApplication `json:"application"`
	EnteredAt   time.Time               `json:"entered_at"`
	SLA         time.Duration           `json:"sla"`
	Overdue     time.Duration           `json:"overdue"`
}

// SLAMonitor finds non-terminal applications breaching the catalog SLA
type SLAMonitor struct {
	apps   repository.ApplicationRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewSLAMonitor(apps repository.ApplicationRepository, logger *slog.Logger) *SLAMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SLAMonitor{
		apps:   apps,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source used to measure age
func (m *SLAMonitor) WithClock(now func() time.Time) *SLAMonitor {
	m.now = now
	return m
}

// FindOverdue lists overdue applications, oldest first
func (m *SLAMonitor) FindOverdue(ctx context.Context) ([]*OverdueApplication, error) {
	var open []domain.LoanStatus
	for _, status := range domain.AllStatuses {
		if !status.IsTerminal() && status.Info().SLA > 0 {
			open = append(open, status)
		}
	}

	apps, err := m.apps.ListByStatus(ctx, open...)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := m.now().UTC()
	var overdue []*OverdueApplication
	for _, app := range apps {
		entered := app.EnteredStatusAt()
		if entered == nil {
			continue
		}
		sla := app.Status.Info().SLA
		if !utils.IsOverdue(*entered, sla, now) {
			continue
		}
		overdue = append(overdue, &OverdueApplication{
			Application: app,
			EnteredAt:   *entered,
			SLA:         sla,
			Overdue:     now.Sub(*entered) - sla,
		})
	}
	return overdue, nil
}

// Report logs every overdue application and returns how many were found
func (m *SLAMonitor) Report(ctx context.Context) (int, error) {
	overdue, err := m.FindOverdue(ctx)
	if err != nil {
		m.logger.Error("SLA scan failed", "error", err)
		return 0, err
	}

	for _, o := range overdue {
		m.logger.Warn("application breached SLA",
			"application_id", o.Application.ID,
			"status", o.Application.Status,
			"entered_at", o.EnteredAt,
			"sla", o.SLA.String(),
			"overdue_by", o.Overdue.Round(time.Minute).String(),
		)
	}
	m.logger.Info("SLA scan completed", "overdue", len(overdue))
	return len(overdue), nil
}
