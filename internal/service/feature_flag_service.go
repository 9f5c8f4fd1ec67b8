package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
	"github.com/team4job/marketplace-backend/internal/repository"
)

const featureFlagTTL = 30 * time.Second

// defaultFlags используются, когда флага нет в базе или база недоступна.
var defaultFlags = map[string]bool{
	models.FlagPayments:     true,
	models.FlagAIGeneration: true,
	models.FlagDisputesV2:   true,
}

type FeatureFlagRepository interface {
	Get(ctx context.Context, name string) (*models.FeatureFlag, error)
	List(ctx context.Context) ([]models.FeatureFlag, error)
	Upsert(ctx context.Context, flag *models.FeatureFlag) error
}

type FeatureFlagService struct {
	repo  FeatureFlagRepository
	cache *CacheService
}

func NewFeatureFlagService(repo FeatureFlagRepository, cache *CacheService) *FeatureFlagService {
	return &FeatureFlagService{repo: repo, cache: cache}
}

// IsEnabled читает флаг из базы с кэшем на 30 секунд.
func (s *FeatureFlagService) IsEnabled(ctx context.Context, name string) bool {
	value, err := s.cache.GetOrSet(ctx, FeatureFlagCacheKey(name), featureFlagTTL, func() (interface{}, error) {
		flag, err := s.repo.Get(ctx, name)
		if errors.Is(err, repository.ErrFlagNotFound) {
			return defaultFlag(name), nil
		}
		if err != nil {
			return nil, err
		}
		return flag.IsEnabled, nil
	})
	if err != nil {
		logger.Log.WithError(err).WithField("flag", name).Warn("feature flags: база недоступна, используется значение по умолчанию")
		return defaultFlag(name)
	}
	return value.(bool)
}

// Require возвращает errDisabled, если флаг выключен.
func (s *FeatureFlagService) Require(ctx context.Context, name string, errDisabled error) error {
	if s.IsEnabled(ctx, name) {
		return nil
	}
	return errDisabled
}

// List возвращает флаги из базы, дополненные значениями по умолчанию.
func (s *FeatureFlagService) List(ctx context.Context) ([]models.FeatureFlag, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	seen := make(map[string]bool, len(stored))
	for _, f := range stored {
		seen[f.Name] = true
	}
	for name, enabled := range defaultFlags {
		if !seen[name] {
			stored = append(stored, models.FeatureFlag{Name: name, IsEnabled: enabled})
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Name < stored[j].Name })
	return stored, nil
}

// Set сохраняет значение флага и сбрасывает кэш.
func (s *FeatureFlagService) Set(ctx context.Context, name string, enabled bool, description string) (*models.FeatureFlag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("имя флага обязательно")
	}

	flag := &models.FeatureFlag{Name: name, IsEnabled: enabled, Description: description}
	if err := s.repo.Upsert(ctx, flag); err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.Delete(FeatureFlagCacheKey(name))
	return flag, nil
}

type flagSeedFile struct {
	Flags []models.FeatureFlag `yaml:"flags"`
}

// Seed загружает флаги из YAML вида:
//
//	flags:
//	  - name: ENABLE_PAYMENTS
//	    enabled: true
//	    description: Приём платежей
func (s *FeatureFlagService) Seed(ctx context.Context, r io.Reader) ([]models.FeatureFlag, error) {
	var file flagSeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, apperror.Validation("некорректный файл флагов: %v", err)
	}

	applied := make([]models.FeatureFlag, 0, len(file.Flags))
	for i, f := range file.Flags {
		if strings.TrimSpace(f.Name) == "" {
			return applied, apperror.Validation("флаг #%d без имени", i+1)
		}
		flag, err := s.Set(ctx, f.Name, f.IsEnabled, f.Description)
		if err != nil {
			return applied, fmt.Errorf("seed %s: %w", f.Name, err)
		}
		applied = append(applied, *flag)
	}
	return applied, nil
}

func defaultFlag(name string) bool {
	if v, ok := defaultFlags[name]; ok {
		return v
	}
	return false
}
