package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/models"
)

const (
	HostageFundsThreshold = 72 * time.Hour
	StaleDisputeThreshold = 7 * 24 * time.Hour
	StuckFundingThreshold = 7 * 24 * time.Hour
)

const (
	monitorCheckHostage  = "hostage_funds"
	monitorCheckDisputes = "stale_disputes"
	monitorCheckFunding  = "stuck_funding"
)

type StaleJobLister interface {
	ListStale(ctx context.Context, filter models.StaleJobFilter) ([]models.Job, error)
}

type StaleDisputeLister interface {
	ListStale(ctx context.Context, status models.DisputeStatus, before time.Time) ([]models.Dispute, error)
}

type SystemLogWriter interface {
	CaptureError(ctx context.Context, level, message string, fields map[string]interface{}, actor *models.Actor)
}

// MonitorAlert одно найденное нарушение сроков.
type MonitorAlert struct {
	Check   string   `json:"check"`
	Level   string   `json:"level"`
	Message string   `json:"message"`
	IDs     []string `json:"ids"`
}

// MonitorService ищет зависшие заказы и споры. Только обнаружение, ничего не исправляет.
type MonitorService struct {
	jobs     StaleJobLister
	disputes StaleDisputeLister
	logs     SystemLogWriter
	metrics  *metrics.Collector
}

func NewMonitorService(jobs StaleJobLister, disputes StaleDisputeLister, logs SystemLogWriter, collector *metrics.Collector) *MonitorService {
	return &MonitorService{jobs: jobs, disputes: disputes, logs: logs, metrics: collector}
}

// Run выполняет все проверки на момент now. Ошибка одной проверки не останавливает остальные.
func (s *MonitorService) Run(ctx context.Context, now time.Time) ([]MonitorAlert, error) {
	s.metrics.RecordMonitorRun()
	logger.Log.Info("monitor: запуск проверки состояния системы")

	var (
		alerts []MonitorAlert
		errs   []error
	)

	hostage, err := s.jobs.ListStale(ctx, models.StaleJobFilter{
		Status: models.JobStatusWorkSubmitted,
		Field:  "completion_timestamp",
		Before: now.Add(-HostageFundsThreshold),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("monitor: %s: %w", monitorCheckHostage, err))
	} else if len(hostage) > 0 {
		ids := jobIDs(hostage)
		alerts = append(alerts, MonitorAlert{
			Check: monitorCheckHostage,
			Level: models.LogLevelError,
			IDs:   ids,
			Message: fmt.Sprintf("ALERT: %d jobs are in 'Pending Confirmation' for more than 72 hours. Potential hostage fund situation. IDs: %s",
				len(ids), strings.Join(ids, ", ")),
		})
	}

	stale, err := s.disputes.ListStale(ctx, models.DisputeStatusOpen, now.Add(-StaleDisputeThreshold))
	if err != nil {
		errs = append(errs, fmt.Errorf("monitor: %s: %w", monitorCheckDisputes, err))
	} else if len(stale) > 0 {
		ids := make([]string, len(stale))
		for i, d := range stale {
			ids[i] = d.ID.String()
		}
		alerts = append(alerts, MonitorAlert{
			Check: monitorCheckDisputes,
			Level: models.LogLevelError,
			IDs:   ids,
			Message: fmt.Sprintf("ALERT: %d disputes are open for more than 7 days. Escalation required. IDs: %s",
				len(ids), strings.Join(ids, ", ")),
		})
	}

	stuck, err := s.jobs.ListStale(ctx, models.StaleJobFilter{
		Status: models.JobStatusBidAccepted,
		Field:  "funding_deadline",
		Before: now.Add(-StuckFundingThreshold),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("monitor: %s: %w", monitorCheckFunding, err))
	} else if len(stuck) > 0 {
		ids := jobIDs(stuck)
		alerts = append(alerts, MonitorAlert{
			Check: monitorCheckFunding,
			Level: models.LogLevelWarning,
			IDs:   ids,
			Message: fmt.Sprintf("WARNING: %d jobs are stuck in 'Pending Funding' for > 7 days. Auto-cancellation might have failed. IDs: %s",
				len(ids), strings.Join(ids, ", ")),
		})
	}

	for _, a := range alerts {
		s.report(ctx, a)
	}
	for _, e := range errs {
		logger.Log.WithError(e).Error("monitor: проверка не выполнена")
	}

	if len(alerts) == 0 {
		logger.Log.Info("monitor: критичных проблем не найдено")
	} else {
		logger.Log.WithField("alerts", len(alerts)).Info("monitor: проверка завершена с предупреждениями")
	}
	return alerts, errors.Join(errs...)
}

func (s *MonitorService) report(ctx context.Context, a MonitorAlert) {
	entry := logger.Component("monitor").WithField("check", a.Check).WithField("count", len(a.IDs))
	if a.Level == models.LogLevelWarning {
		entry.Warn(a.Message)
	} else {
		entry.Error(a.Message)
	}
	s.logs.CaptureError(ctx, a.Level, a.Message, map[string]interface{}{
		"check": a.Check,
		"ids":   a.IDs,
	}, nil)
	s.metrics.RecordMonitorAlert(a.Check, a.Level)
}

func jobIDs(jobs []models.Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID.String()
	}
	return ids
}

// AlertMessages возвращает тексты предупреждений.
func AlertMessages(alerts []MonitorAlert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Message
	}
	return out
}
