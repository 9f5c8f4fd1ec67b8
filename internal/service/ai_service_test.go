package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/team4job/marketplace-backend/internal/ai"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, req ai.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Model() string {
	return "test-model"
}

type mockQuota struct {
	mock.Mock
}

func (m *mockQuota) Check(ctx context.Context, userID uuid.UUID, action AIAction) error {
	return m.Called(ctx, userID, action).Error(0)
}

func (m *mockQuota) Reserve(ctx context.Context, userID uuid.UUID, action AIAction) error {
	return m.Called(ctx, userID, action).Error(0)
}

func (m *mockQuota) Release(ctx context.Context, userID uuid.UUID, action AIAction) {
	m.Called(ctx, userID, action)
}

func newAIFixture(t *testing.T) (*AIService, *mockProvider, *mockQuota, fakeFlags) {
	t.Helper()
	provider := &mockProvider{}
	quota := &mockQuota{}
	flags := fakeFlags{}
	cache := NewAICacheService(newFakeAICacheRepo(), true, time.Hour)
	return NewAIService(provider, cache, quota, flags, nil), provider, quota, flags
}

func TestAIService_GenerateJobDescription(t *testing.T) {
	ctx := context.Background()
	user := jobGiver()

	t.Run("генерация и кэш", func(t *testing.T) {
		svc, provider, quota, _ := newAIFixture(t)
		quota.On("Check", mock.Anything, user.ID, AIActionChat).Return(nil)
		quota.On("Reserve", mock.Anything, user.ID, AIActionChat).Return(nil).Once()
		provider.On("Complete", mock.Anything, mock.MatchedBy(func(r ai.Request) bool {
			return r.JSON && r.Prompt != ""
		})).Return(`{"jobDescription":"  Install four dome cameras.  "}`, nil).Once()

		out, err := svc.GenerateJobDescription(ctx, user, "Install 4 CCTV cameras")
		require.NoError(t, err)
		assert.Equal(t, "Install four dome cameras.", out.JobDescription)

		// второй вызов берётся из кэша и не расходует квоту
		again, err := svc.GenerateJobDescription(ctx, user, "  Install 4 CCTV cameras ")
		require.NoError(t, err)
		assert.Equal(t, out.JobDescription, again.JobDescription)

		provider.AssertExpectations(t)
		quota.AssertExpectations(t)
		quota.AssertNumberOfCalls(t, "Reserve", 1)
		quota.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("флаг выключен", func(t *testing.T) {
		svc, provider, quota, flags := newAIFixture(t)
		flags[models.FlagAIGeneration] = false

		_, err := svc.GenerateJobDescription(ctx, user, "Install 4 CCTV cameras")
		assert.ErrorIs(t, err, apperror.ErrAIDisabled)
		provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		quota.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("квота исчерпана", func(t *testing.T) {
		svc, provider, quota, _ := newAIFixture(t)
		quota.On("Check", mock.Anything, user.ID, AIActionChat).Return(apperror.ErrAIQuotaExceeded)

		_, err := svc.GenerateJobDescription(ctx, user, "Install 4 CCTV cameras")
		assert.ErrorIs(t, err, apperror.ErrAIQuotaExceeded)
		provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("квота занята параллельным запросом", func(t *testing.T) {
		svc, provider, quota, _ := newAIFixture(t)
		quota.On("Check", mock.Anything, user.ID, AIActionChat).Return(nil)
		quota.On("Reserve", mock.Anything, user.ID, AIActionChat).Return(apperror.ErrAIQuotaExceeded)

		_, err := svc.GenerateJobDescription(ctx, user, "Install 4 CCTV cameras")
		assert.ErrorIs(t, err, apperror.ErrAIQuotaExceeded)
		provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		quota.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("короткий заголовок", func(t *testing.T) {
		svc, _, _, _ := newAIFixture(t)
		_, err := svc.GenerateJobDescription(ctx, user, "cam")
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("некорректный ответ модели", func(t *testing.T) {
		svc, provider, quota, _ := newAIFixture(t)
		quota.On("Check", mock.Anything, user.ID, AIActionChat).Return(nil)
		quota.On("Reserve", mock.Anything, user.ID, AIActionChat).Return(nil).Once()
		quota.On("Release", mock.Anything, user.ID, AIActionChat).Return().Once()
		provider.On("Complete", mock.Anything, mock.Anything).Return(`{"description":"wrong field"}`, nil)

		_, err := svc.GenerateJobDescription(ctx, user, "Install 4 CCTV cameras")
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrInvalidOutput)
		quota.AssertExpectations(t)
	})

	t.Run("провайдер недоступен", func(t *testing.T) {
		svc, provider, quota, _ := newAIFixture(t)
		quota.On("Check", mock.Anything, user.ID, AIActionChat).Return(nil)
		quota.On("Reserve", mock.Anything, user.ID, AIActionChat).Return(nil).Once()
		quota.On("Release", mock.Anything, user.ID, AIActionChat).Return().Once()
		provider.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("connection reset"))

		_, err := svc.GenerateJobDescription(ctx, user, "Install 4 CCTV cameras")
		require.Error(t, err)
		assert.Equal(t, apperror.ErrCodeInternal, apperror.From(err).Code)
		quota.AssertExpectations(t)
	})
}
