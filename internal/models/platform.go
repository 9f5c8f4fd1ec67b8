package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	FlagPayments     = "ENABLE_PAYMENTS"
	FlagAIGeneration = "ENABLE_AI_GENERATION"
	FlagDisputesV2   = "ENABLE_DISPUTES_V2"
)

// FeatureFlag булев переключатель функциональности.
type FeatureFlag struct {
	Name        string    `db:"name" json:"name" yaml:"name"`
	IsEnabled   bool      `db:"is_enabled" json:"isEnabled" yaml:"enabled"`
	Description string    `db:"description" json:"description" yaml:"description"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt" yaml:"-"`
}

// AICacheEntry сохранённый результат AI сценария.
type AICacheEntry struct {
	Key          string          `db:"key" json:"key"`
	FlowName     string          `db:"flow_name" json:"flowName"`
	ModelVersion string          `db:"model_version" json:"modelVersion"`
	Output       json.RawMessage `db:"output" json:"output"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	ExpiresAt    time.Time       `db:"expires_at" json:"expiresAt"`
}

func (e *AICacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

const (
	LogLevelInfo    = "INFO"
	LogLevelWarning = "WARNING"
	LogLevelError   = "ERROR"
)

// SystemLog технический журнал, пишется монитором и обработчиками ошибок.
type SystemLog struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Level       string          `db:"level" json:"level"`
	Message     string          `db:"message" json:"message"`
	Context     json.RawMessage `db:"context" json:"context,omitempty"`
	Environment string          `db:"environment" json:"environment"`
	ActorID     *uuid.UUID      `db:"actor_id" json:"actorId,omitempty"`
	ActorRole   *string         `db:"actor_role" json:"actorRole,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

type BusinessEventType string

const (
	EventJobPosted       BusinessEventType = "JOB_POSTED"
	EventBidPlaced       BusinessEventType = "BID_PLACED"
	EventBidAccepted     BusinessEventType = "BID_ACCEPTED"
	EventPaymentFunded   BusinessEventType = "PAYMENT_FUNDED"
	EventPaymentReleased BusinessEventType = "PAYMENT_RELEASED"
	EventPaymentRefunded BusinessEventType = "PAYMENT_REFUNDED"
	EventDisputeRaised   BusinessEventType = "DISPUTE_RAISED"
	EventJobCompleted    BusinessEventType = "JOB_COMPLETED"
	EventWebhookReceived BusinessEventType = "WEBHOOK_RECEIVED"
	EventOfferDeclined   BusinessEventType = "OFFER_DECLINED"
	EventReapplied       BusinessEventType = "INSTALLER_REAPPLIED"
)

// BusinessEvent запись бизнес-аудита.
type BusinessEvent struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	EventType BusinessEventType `db:"event_type" json:"eventType"`
	ActorID   *uuid.UUID        `db:"actor_id" json:"actorId,omitempty"`
	EntityID  string            `db:"entity_id" json:"entityId"`
	Metadata  json.RawMessage   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
}
