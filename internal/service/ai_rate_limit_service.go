package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

type AIAction string

const (
	AIActionChat  AIAction = "ai_chat"
	AIActionBio   AIAction = "ai_bio"
	AIActionImage AIAction = "ai_image"
	AIActionVoice AIAction = "ai_voice"
)

type tierLimits struct {
	free, pro, admin int64
}

// Дневные лимиты по тарифам.
var aiDailyLimits = map[AIAction]tierLimits{
	AIActionChat:  {free: 50, pro: 500, admin: 10000},
	AIActionBio:   {free: 10, pro: 100, admin: 10000},
	AIActionImage: {free: 5, pro: 50, admin: 10000},
	AIActionVoice: {free: 5, pro: 50, admin: 10000},
}

// DailyLimit возвращает лимит действия для тарифа.
func DailyLimit(action AIAction, tier string) int64 {
	l, ok := aiDailyLimits[action]
	if !ok {
		l = aiDailyLimits[AIActionChat]
	}
	switch tier {
	case models.TierAdmin:
		return l.admin
	case models.TierPro:
		return l.pro
	}
	return l.free
}

// UsageCounter подмножество команд Redis, которых хватает для счётчиков.
type UsageCounter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	DecrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
}

// CounterFromRedis не даёт nil клиенту превратиться в ненулевой интерфейс.
func CounterFromRedis(client *redis.Client) UsageCounter {
	if client == nil {
		return nil
	}
	return client
}

// AIRateLimitService дневные квоты AI запросов. Если Redis недоступен, запросы пропускаются.
type AIRateLimitService struct {
	counter UsageCounter
	users   UserGetter
	now     func() time.Time
}

func NewAIRateLimitService(counter UsageCounter, users UserGetter) *AIRateLimitService {
	return &AIRateLimitService{counter: counter, users: users, now: time.Now}
}

func usageKey(userID uuid.UUID, day string, action AIAction) string {
	return fmt.Sprintf("ai_usage:%s:%s:%s", userID, day, action)
}

// Check возвращает ErrAIQuotaExceeded, если дневной лимит исчерпан.
func (s *AIRateLimitService) Check(ctx context.Context, userID uuid.UUID, action AIAction) error {
	if s.counter == nil {
		return nil
	}

	tier := s.tier(ctx, userID)
	limit := DailyLimit(action, tier)

	raw, err := s.counter.Get(ctx, usageKey(userID, s.day(), action)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("ai rate limit: проверка не удалась, запрос пропущен")
		return nil
	}

	used, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	if used >= limit {
		return quotaExceeded(limit, action)
	}
	return nil
}

// Reserve атомарно занимает одну единицу квоты. Решение принимается по
// результату INCR, поэтому параллельные запросы не превышают лимит.
// Ключ живёт до конца суток UTC.
func (s *AIRateLimitService) Reserve(ctx context.Context, userID uuid.UUID, action AIAction) error {
	if s.counter == nil {
		return nil
	}
	limit := DailyLimit(action, s.tier(ctx, userID))
	key := usageKey(userID, s.day(), action)

	used, err := s.counter.IncrBy(ctx, key, 1).Result()
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("ai rate limit: не удалось увеличить счётчик, запрос пропущен")
		return nil
	}
	if err := s.counter.ExpireAt(ctx, key, endOfDay(s.now())).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("ai rate limit: не удалось выставить срок жизни")
	}
	if used > limit {
		s.decrement(ctx, key)
		return quotaExceeded(limit, action)
	}
	return nil
}

// Release возвращает единицу, занятую Reserve, если запрос к модели не удался.
func (s *AIRateLimitService) Release(ctx context.Context, userID uuid.UUID, action AIAction) {
	if s.counter == nil {
		return
	}
	s.decrement(ctx, usageKey(userID, s.day(), action))
}

func (s *AIRateLimitService) decrement(ctx context.Context, key string) {
	if err := s.counter.DecrBy(ctx, key, 1).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("ai rate limit: не удалось вернуть единицу квоты")
	}
}

func quotaExceeded(limit int64, action AIAction) error {
	return apperror.Wrap(apperror.ErrAIQuotaExceeded, apperror.ErrCodeRateLimited,
		fmt.Sprintf("Daily limit of %d reached for %s. Upgrade to Pro for more.", limit, action))
}

func (s *AIRateLimitService) tier(ctx context.Context, userID uuid.UUID) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("ai rate limit: тариф не определён, используется free")
		return models.TierFree
	}
	return user.Tier()
}

func (s *AIRateLimitService) day() string {
	return s.now().UTC().Format("2006-01-02")
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
