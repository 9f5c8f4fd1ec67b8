package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
)

const DefaultAICacheTTL = 24 * time.Hour

type AICacheRepository interface {
	Get(ctx context.Context, key string) (*models.AICacheEntry, error)
	Set(ctx context.Context, entry *models.AICacheEntry) error
	Delete(ctx context.Context, key string, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AICacheService кэширует ответы AI сценариев в базе. Любая ошибка кэша
// считается промахом и не мешает основному запросу.
type AICacheService struct {
	repo    AICacheRepository
	enabled bool
	ttl     time.Duration
	now     func() time.Time
}

func NewAICacheService(repo AICacheRepository, enabled bool, ttl time.Duration) *AICacheService {
	if ttl <= 0 {
		ttl = DefaultAICacheTTL
	}
	return &AICacheService{repo: repo, enabled: enabled, ttl: ttl, now: time.Now}
}

// GenerateKey детерминированный ключ: flow_model_sha256(JSON с отсортированными ключами).
func GenerateKey(flow string, input interface{}, modelVersion string) (string, error) {
	normalized, err := canonicalJSON(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return flow + "_" + modelVersion + "_" + hex.EncodeToString(sum[:]), nil
}

// canonicalJSON проходит через map, а encoding/json сортирует ключи map на всех уровнях.
// Числа остаются json.Number, символы <, > и & не экранируются.
func canonicalJSON(input interface{}) ([]byte, error) {
	raw, err := encodeJSON(input)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return encodeJSON(generic)
}

func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Get возвращает сохранённый ответ или nil при промахе, истёкшей записи и выключенном кэше.
func (s *AICacheService) Get(ctx context.Context, flow string, input interface{}, modelVersion string) json.RawMessage {
	if !s.enabled {
		return nil
	}
	key, err := GenerateKey(flow, input, modelVersion)
	if err != nil {
		logger.Log.WithError(err).WithField("flow", flow).Warn("ai cache: не удалось построить ключ")
		return nil
	}

	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		logger.Log.WithError(err).WithField("flow", flow).Warn("ai cache: ошибка чтения")
		return nil
	}
	if entry == nil {
		return nil
	}

	if entry.Expired(s.now()) {
		if err := s.repo.Delete(ctx, key, entry.ExpiresAt); err != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("ai cache: не удалось удалить истёкшую запись")
		}
		return nil
	}
	return entry.Output
}

// Set сохраняет ответ. ttl <= 0 означает срок по умолчанию.
func (s *AICacheService) Set(ctx context.Context, flow string, input interface{}, modelVersion string, output json.RawMessage, ttl time.Duration) {
	if !s.enabled {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	key, err := GenerateKey(flow, input, modelVersion)
	if err != nil {
		logger.Log.WithError(err).WithField("flow", flow).Warn("ai cache: не удалось построить ключ")
		return
	}

	now := s.now()
	entry := &models.AICacheEntry{
		Key:          key,
		FlowName:     flow,
		ModelVersion: modelVersion,
		Output:       output,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Set(ctx, entry); err != nil {
		logger.Log.WithError(err).WithField("flow", flow).Warn("ai cache: ошибка записи")
	}
}

// Purge удаляет все истёкшие записи, вызывается по расписанию.
func (s *AICacheService) Purge(ctx context.Context) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		logger.Log.WithError(err).Warn("ai cache: ошибка очистки")
		return
	}
	if n > 0 {
		logger.Log.WithField("deleted", n).Debug("ai cache: удалены истёкшие записи")
	}
}
