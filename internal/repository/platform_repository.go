package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/team4job/marketplace-backend/internal/models"
)

// ErrFlagNotFound означает, что флаг не заведён в базе и нужно использовать дефолт.
var ErrFlagNotFound = errors.New("feature flag not found")

type FeatureFlagRepository struct {
	db *sqlx.DB
}

func NewFeatureFlagRepository(db *sqlx.DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{db: db}
}

func (r *FeatureFlagRepository) Get(ctx context.Context, name string) (*models.FeatureFlag, error) {
	var flag models.FeatureFlag
	if err := r.db.GetContext(ctx, &flag, `SELECT * FROM feature_flags WHERE name = $1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFlagNotFound
		}
		return nil, fmt.Errorf("feature flag repository: get %w", err)
	}
	return &flag, nil
}

func (r *FeatureFlagRepository) List(ctx context.Context) ([]models.FeatureFlag, error) {
	var flags []models.FeatureFlag
	if err := r.db.SelectContext(ctx, &flags, `SELECT * FROM feature_flags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("feature flag repository: list %w", err)
	}
	return flags, nil
}

func (r *FeatureFlagRepository) Upsert(ctx context.Context, flag *models.FeatureFlag) error {
	err := r.db.GetContext(ctx, &flag.UpdatedAt, `
		INSERT INTO feature_flags (name, is_enabled, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			description = CASE WHEN EXCLUDED.description = '' THEN feature_flags.description ELSE EXCLUDED.description END,
			updated_at = NOW()
		RETURNING updated_at
	`, flag.Name, flag.IsEnabled, flag.Description)
	if err != nil {
		return fmt.Errorf("feature flag repository: upsert %w", err)
	}
	return nil
}

// AICacheRepository хранит результаты AI сценариев в таблице ai_cache.
type AICacheRepository struct {
	db *sqlx.DB
}

func NewAICacheRepository(db *sqlx.DB) *AICacheRepository {
	return &AICacheRepository{db: db}
}

// Get возвращает запись или nil, если ключа нет.
func (r *AICacheRepository) Get(ctx context.Context, key string) (*models.AICacheEntry, error) {
	var entry models.AICacheEntry
	if err := r.db.GetContext(ctx, &entry, `SELECT * FROM ai_cache WHERE key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ai cache repository: get %w", err)
	}
	return &entry, nil
}

func (r *AICacheRepository) Set(ctx context.Context, entry *models.AICacheEntry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ai_cache (key, flow_name, model_version, output, created_at, expires_at)
		VALUES (:key, :flow_name, :model_version, :output, :created_at, :expires_at)
		ON CONFLICT (key) DO UPDATE SET
			output = EXCLUDED.output,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, entry)
	if err != nil {
		return fmt.Errorf("ai cache repository: set %w", err)
	}
	return nil
}

// Delete удаляет запись. expiresAt защищает от удаления записи, перезаписанной параллельно.
func (r *AICacheRepository) Delete(ctx context.Context, key string, expiresAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ai_cache WHERE key = $1 AND expires_at = $2`, key, expiresAt); err != nil {
		return fmt.Errorf("ai cache repository: delete %w", err)
	}
	return nil
}

// DeleteExpired чистит все истёкшие записи, возвращает количество удалённых.
func (r *AICacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ai_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ai cache repository: delete expired %w", err)
	}
	return res.RowsAffected()
}

// AuditRepository пишет system_logs и business_audit_logs.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertSystemLog(ctx context.Context, entry *models.SystemLog) error {
	err := r.db.GetContext(ctx, entry, `
		INSERT INTO system_logs (level, message, context, environment, actor_id, actor_role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, entry.Level, entry.Message, nullableJSON(entry.Context), entry.Environment, entry.ActorID, entry.ActorRole)
	if err != nil {
		return fmt.Errorf("audit repository: system log %w", err)
	}
	return nil
}

func (r *AuditRepository) InsertBusinessEvent(ctx context.Context, event *models.BusinessEvent) error {
	err := r.db.GetContext(ctx, event, `
		INSERT INTO business_audit_logs (event_type, actor_id, entity_id, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, event.EventType, event.ActorID, event.EntityID, nullableJSON(event.Metadata))
	if err != nil {
		return fmt.Errorf("audit repository: business event %w", err)
	}
	return nil
}

func (r *AuditRepository) ListSystemLogs(ctx context.Context, level string, limit int) ([]models.SystemLog, error) {
	var items []models.SystemLog
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM system_logs WHERE ($1 = '' OR level = $1) ORDER BY created_at DESC LIMIT $2
	`, level, limit)
	if err != nil {
		return nil, fmt.Errorf("audit repository: list system logs %w", err)
	}
	return items, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
