package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

// BusinessEventLogger пишет бизнес-аудит. Ошибки записи не возвращаются вызывающему.
type BusinessEventLogger interface {
	LogBusinessEvent(ctx context.Context, eventType models.BusinessEventType, actorID *uuid.UUID, entityID string, metadata map[string]interface{})
}

// FlagChecker отвечает, включена ли функциональность.
type FlagChecker interface {
	IsEnabled(ctx context.Context, name string) bool
}

// transition переводит заказ в новый статус, если таблица переходов это разрешает.
func transition(job *models.Job, next models.JobStatus) error {
	if !job.Status.CanTransitionTo(next) {
		return invalidTransition(job.Status, next)
	}
	job.Status = next
	return nil
}

func invalidTransition(from, to models.JobStatus) error {
	return apperror.Wrap(fmt.Errorf("%s -> %s", from, to), apperror.ErrCodeConflict, apperror.ErrInvalidTransition.Message)
}

func requireStatus(job *models.Job, want models.JobStatus) error {
	if job.Status != want {
		return apperror.New(apperror.ErrCodeConflict,
			fmt.Sprintf("действие доступно только в статусе %q, текущий статус %q", want.DisplayName(), job.Status.DisplayName()))
	}
	return nil
}

func validationErr(err error) error {
	if err == nil {
		return nil
	}
	return apperror.Validation("%s", err.Error())
}

func actorIDPtr(actor models.Actor) *uuid.UUID {
	id := actor.ID
	return &id
}
