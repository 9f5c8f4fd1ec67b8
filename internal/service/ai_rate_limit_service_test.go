package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

// fakeCounter счётчики Redis в памяти.
type fakeCounter struct {
	mu      sync.Mutex
	values  map[string]int64
	expires map[string]time.Time
	getErr  error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{values: make(map[string]int64), expires: make(map[string]time.Time)}
}

func (c *fakeCounter) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return redis.NewStringResult("", c.getErr)
	}
	v, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(strconv.FormatInt(v, 10), nil)
}

func (c *fakeCounter) IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] += value
	return redis.NewIntResult(c.values[key], nil)
}

func (c *fakeCounter) DecrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] -= value
	return redis.NewIntResult(c.values[key], nil)
}

func (c *fakeCounter) ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires[key] = tm
	return redis.NewBoolResult(true, nil)
}

func TestDailyLimit(t *testing.T) {
	assert.Equal(t, int64(50), DailyLimit(AIActionChat, models.TierFree))
	assert.Equal(t, int64(500), DailyLimit(AIActionChat, models.TierPro))
	assert.Equal(t, int64(10000), DailyLimit(AIActionChat, models.TierAdmin))
	assert.Equal(t, int64(10), DailyLimit(AIActionBio, models.TierFree))
	assert.Equal(t, int64(5), DailyLimit(AIActionImage, "unknown"))
	assert.Equal(t, int64(50), DailyLimit("ai_unknown", models.TierFree))
}

func TestAIRateLimitService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 15, 18, 45, 0, 0, time.UTC)

	newSvc := func(counter UsageCounter, store *memStore) *AIRateLimitService {
		svc := NewAIRateLimitService(counter, fakeUserRepo{store})
		svc.now = fixedClock(now)
		return svc
	}

	t.Run("лимит бесплатного тарифа", func(t *testing.T) {
		store := newMemStore()
		user := store.putUser(models.User{SubscriptionTier: models.TierFree})
		counter := newFakeCounter()
		svc := newSvc(counter, store)

		for i := 0; i < 5; i++ {
			require.NoError(t, svc.Check(ctx, user.ID, AIActionImage))
			require.NoError(t, svc.Reserve(ctx, user.ID, AIActionImage))
		}

		err := svc.Check(ctx, user.ID, AIActionImage)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrAIQuotaExceeded)
		assert.Equal(t, "Daily limit of 5 reached for ai_image. Upgrade to Pro for more.", apperror.PublicMessage(err))

		err = svc.Reserve(ctx, user.ID, AIActionImage)
		assert.ErrorIs(t, err, apperror.ErrAIQuotaExceeded)

		key := "ai_usage:" + user.ID.String() + ":2026-06-15:ai_image"
		assert.Equal(t, int64(5), counter.values[key])
		assert.Equal(t, time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC), counter.expires[key])
	})

	t.Run("параллельные запросы не превышают лимит", func(t *testing.T) {
		store := newMemStore()
		user := store.putUser(models.User{SubscriptionTier: models.TierFree})
		counter := newFakeCounter()
		svc := newSvc(counter, store)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if svc.Reserve(ctx, user.ID, AIActionImage) == nil {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, allowed)
		key := "ai_usage:" + user.ID.String() + ":2026-06-15:ai_image"
		assert.Equal(t, int64(5), counter.values[key])
	})

	t.Run("неудачная генерация возвращает единицу", func(t *testing.T) {
		store := newMemStore()
		user := store.putUser(models.User{SubscriptionTier: models.TierFree})
		counter := newFakeCounter()
		svc := newSvc(counter, store)

		require.NoError(t, svc.Reserve(ctx, user.ID, AIActionBio))
		svc.Release(ctx, user.ID, AIActionBio)

		key := "ai_usage:" + user.ID.String() + ":2026-06-15:ai_bio"
		assert.Equal(t, int64(0), counter.values[key])
	})

	t.Run("администратор", func(t *testing.T) {
		store := newMemStore()
		user := store.putUser(models.User{Roles: pq.StringArray{string(models.RoleAdmin)}})
		counter := newFakeCounter()
		svc := newSvc(counter, store)

		counter.values["ai_usage:"+user.ID.String()+":2026-06-15:ai_image"] = 100
		assert.NoError(t, svc.Reserve(ctx, user.ID, AIActionImage))
		assert.NoError(t, svc.Check(ctx, user.ID, AIActionImage))
	})

	t.Run("неизвестный пользователь считается free", func(t *testing.T) {
		counter := newFakeCounter()
		svc := newSvc(counter, newMemStore())
		id := uuid.New()

		for i := 0; i < 5; i++ {
			require.NoError(t, svc.Reserve(ctx, id, AIActionVoice))
		}
		assert.Error(t, svc.Check(ctx, id, AIActionVoice))
		assert.Error(t, svc.Reserve(ctx, id, AIActionVoice))
	})

	t.Run("redis недоступен", func(t *testing.T) {
		counter := newFakeCounter()
		counter.getErr = errors.New("dial tcp: connection refused")
		svc := newSvc(counter, newMemStore())

		assert.NoError(t, svc.Check(ctx, uuid.New(), AIActionChat))
	})

	t.Run("без redis", func(t *testing.T) {
		svc := newSvc(CounterFromRedis(nil), newMemStore())
		id := uuid.New()

		for i := 0; i < 100; i++ {
			require.NoError(t, svc.Reserve(ctx, id, AIActionChat))
		}
		assert.NoError(t, svc.Check(ctx, id, AIActionChat))
		svc.Release(ctx, id, AIActionChat)
	})
}
