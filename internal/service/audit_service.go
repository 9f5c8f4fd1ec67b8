package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
)

type AuditRepository interface {
	InsertSystemLog(ctx context.Context, entry *models.SystemLog) error
	InsertBusinessEvent(ctx context.Context, event *models.BusinessEvent) error
	ListSystemLogs(ctx context.Context, level string, limit int) ([]models.SystemLog, error)
}

// AuditService пишет system_logs и business_audit_logs.
// Сбой записи журнала только логируется и никогда не ломает основной сценарий.
type AuditService struct {
	repo AuditRepository
	env  string
}

func NewAuditService(repo AuditRepository, env string) *AuditService {
	return &AuditService{repo: repo, env: env}
}

// CaptureError сохраняет техническое событие уровня level.
func (s *AuditService) CaptureError(ctx context.Context, level, message string, fields map[string]interface{}, actor *models.Actor) {
	entry := &models.SystemLog{
		Level:       level,
		Message:     message,
		Context:     marshalFields(fields),
		Environment: s.env,
	}
	if actor != nil {
		entry.ActorID = actorIDPtr(*actor)
		if len(actor.Roles) > 0 {
			role := string(actor.Roles[0])
			entry.ActorRole = &role
		}
	}

	if err := s.repo.InsertSystemLog(ctx, entry); err != nil {
		logger.Log.WithError(err).WithField("message", message).Error("audit: не удалось сохранить system log")
	}
}

func (s *AuditService) LogBusinessEvent(ctx context.Context, eventType models.BusinessEventType, actorID *uuid.UUID, entityID string, metadata map[string]interface{}) {
	event := &models.BusinessEvent{
		EventType: eventType,
		ActorID:   actorID,
		EntityID:  entityID,
		Metadata:  marshalFields(metadata),
	}
	if err := s.repo.InsertBusinessEvent(ctx, event); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"entity_id":  entityID,
		}).Error("audit: не удалось сохранить бизнес-событие")
	}
}

func (s *AuditService) ListSystemLogs(ctx context.Context, level string, limit int) ([]models.SystemLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSystemLogs(ctx, level, limit)
}

func marshalFields(fields map[string]interface{}) json.RawMessage {
	if len(fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return raw
}
