package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/validation"
)

type ReputationRepository interface {
	AdjustReputation(ctx context.Context, userID uuid.UUID, jobID *uuid.UUID, reason string, next func(current int) int) (int, error)
	Reinstate(ctx context.Context, userID, jobID uuid.UUID, reason string, next func(current int) int) (int, error)
}

// ReapplyPenalty штраф за возврат к заказу после отказа от предложения.
const ReapplyPenalty = 15

type ReputationService struct {
	users  ReputationRepository
	events BusinessEventLogger
}

func NewReputationService(users ReputationRepository, events BusinessEventLogger) *ReputationService {
	return &ReputationService{users: users, events: events}
}

type DeductPointsInput struct {
	UserID uuid.UUID
	Points int
	Reason string
	// JobID если указан, установщик снимается с отстранения по этому заказу.
	JobID *uuid.UUID
}

// DeductPoints списывает очки, баланс не уходит ниже нуля. Возвращает новый баланс.
func (s *ReputationService) DeductPoints(ctx context.Context, actor models.Actor, in DeductPointsInput) (int, error) {
	if !actor.Roles.IsStaff() {
		return 0, apperror.ErrForbidden
	}
	if in.Points < 0 {
		return 0, apperror.Validation("количество очков не может быть отрицательным")
	}
	if err := validation.ValidateReason(in.Reason); err != nil {
		return 0, validationErr(err)
	}

	points, err := s.users.AdjustReputation(ctx, in.UserID, in.JobID, strings.TrimSpace(in.Reason), func(current int) int {
		return deductPoints(current, in.Points)
	})
	if err != nil {
		return 0, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":  in.UserID,
		"deducted": in.Points,
		"balance":  points,
		"actor_id": actor.ID,
	}).Info("списаны очки репутации")
	return points, nil
}

// Reapply установщик сам снимает отстранение с заказа за ReapplyPenalty очков.
// Списание и снятие отстранения выполняются в одной транзакции.
func (s *ReputationService) Reapply(ctx context.Context, actor models.Actor, jobID uuid.UUID) (int, error) {
	if !actor.Roles.Has(models.RoleInstaller) {
		return 0, apperror.ErrForbidden
	}

	points, err := s.users.Reinstate(ctx, actor.ID, jobID, "Re-application for Job "+jobID.String(), func(current int) int {
		return deductPoints(current, ReapplyPenalty)
	})
	if err != nil {
		return 0, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"job_id":  jobID,
		"balance": points,
	}).Info("установщик вернулся к заказу")
	s.events.LogBusinessEvent(ctx, models.EventReapplied, &actor.ID, jobID.String(), map[string]interface{}{
		"penalty": ReapplyPenalty,
	})
	return points, nil
}

// AddPoints начисляет очки за завершённые заказы.
func (s *ReputationService) AddPoints(ctx context.Context, userID uuid.UUID, points int, reason string) (int, error) {
	if points < 0 {
		return 0, apperror.Validation("количество очков не может быть отрицательным")
	}
	return s.users.AdjustReputation(ctx, userID, nil, reason, func(current int) int {
		return current + points
	})
}

func deductPoints(current, points int) int {
	if next := current - points; next > 0 {
		return next
	}
	return 0
}
