package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/ai"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/metrics"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/validation"
)

type AIQuota interface {
	Check(ctx context.Context, userID uuid.UUID, action AIAction) error
	Reserve(ctx context.Context, userID uuid.UUID, action AIAction) error
	Release(ctx context.Context, userID uuid.UUID, action AIAction)
}

type AIService struct {
	provider ai.Provider
	cache    *AICacheService
	quota    AIQuota
	flags    FlagChecker
	metrics  *metrics.Collector
}

func NewAIService(provider ai.Provider, cache *AICacheService, quota AIQuota, flags FlagChecker, collector *metrics.Collector) *AIService {
	return &AIService{provider: provider, cache: cache, quota: quota, flags: flags, metrics: collector}
}

// GenerateJobDescription пишет описание заказа по заголовку.
// Порядок: флаг, проверка квоты, кэш, резерв квоты, модель, проверка схемы, запись в кэш.
// Ответ из кэша квоту не расходует, неудачная генерация возвращает резерв.
func (s *AIService) GenerateJobDescription(ctx context.Context, actor models.Actor, jobTitle string) (*ai.JobDescription, error) {
	if !s.flags.IsEnabled(ctx, models.FlagAIGeneration) {
		return nil, apperror.ErrAIDisabled
	}
	jobTitle = strings.TrimSpace(jobTitle)
	if err := validation.ValidateJobTitle(jobTitle); err != nil {
		return nil, validationErr(err)
	}
	if err := s.quota.Check(ctx, actor.ID, AIActionChat); err != nil {
		s.metrics.RecordAI(ai.FlowJobDescription, "quota_exceeded")
		return nil, err
	}

	input := ai.JobDescriptionInput{JobTitle: jobTitle}
	model := s.provider.Model()

	if cached := s.cache.Get(ctx, ai.FlowJobDescription, input, model); cached != nil {
		var out ai.JobDescription
		if err := json.Unmarshal(cached, &out); err == nil && out.JobDescription != "" {
			s.metrics.RecordAI(ai.FlowJobDescription, "cache_hit")
			return &out, nil
		}
	}

	if err := s.quota.Reserve(ctx, actor.ID, AIActionChat); err != nil {
		s.metrics.RecordAI(ai.FlowJobDescription, "quota_exceeded")
		return nil, err
	}

	out, raw, err := ai.GenerateJobDescription(ctx, s.provider, input)
	if err != nil {
		s.quota.Release(ctx, actor.ID, AIActionChat)
		s.metrics.RecordAI(ai.FlowJobDescription, "error")
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"user_id": actor.ID,
			"model":   model,
		}).Error("ai: генерация описания не удалась")
		if errors.Is(err, ai.ErrInvalidOutput) {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "модель вернула некорректный ответ")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "AI сервис недоступен")
	}

	s.cache.Set(ctx, ai.FlowJobDescription, input, model, raw, 0)
	s.metrics.RecordAI(ai.FlowJobDescription, "generated")
	return out, nil
}
