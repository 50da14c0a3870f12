package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
)

type gradingConfigReader interface {
	FindSystemByID(ctx context.Context, id string) (*models.GradingSystem, error)
	FindActiveByLevel(ctx context.Context, level models.SchoolLevel) (*models.GradingSystem, error)
	FindAnyActive(ctx context.Context) (*models.GradingSystem, error)
	ListActiveCategories(ctx context.Context) ([]models.AssessmentCategory, error)
}

const (
	cacheKeySystem       = "system:%s"
	cacheKeyLevelSystem  = "system:level:%s"
	cacheKeyCategories   = "categories:active"
	cacheInvalidateScope = "*"
)

// GradingConfigService resolves grading systems and categories, caching them in Redis.
type GradingConfigService struct {
	repo   gradingConfigReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewGradingConfigService constructs the service. cache may be nil.
func NewGradingConfigService(repo gradingConfigReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *GradingConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingConfigService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// SystemByID returns a grading system with its scales.
func (s *GradingConfigService) SystemByID(ctx context.Context, id string) (*models.GradingSystem, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grading_system_id is required")
	}
	key := fmt.Sprintf(cacheKeySystem, id)
	var cached models.GradingSystem
	if s.cachedInto(ctx, key, &cached) {
		return &cached, nil
	}

	system, err := s.repo.FindSystemByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grading system not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading system")
	}
	s.store(ctx, key, system)
	return system, nil
}

// ActiveForLevel resolves the active system for a school level, falling back
// to any active system. It returns a configuration error when none exists.
func (s *GradingConfigService) ActiveForLevel(ctx context.Context, level models.SchoolLevel) (*models.GradingSystem, error) {
	key := fmt.Sprintf(cacheKeyLevelSystem, level)
	var cached models.GradingSystem
	if s.cachedInto(ctx, key, &cached) {
		return &cached, nil
	}

	system, err := s.repo.FindActiveByLevel(ctx, level)
	if errors.Is(err, sql.ErrNoRows) {
		system, err = s.repo.FindAnyActive(ctx)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, "no active grading system")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve grading system")
	}
	s.store(ctx, key, system)
	return system, nil
}

// ActiveCategories returns the active assessment categories in display order.
func (s *GradingConfigService) ActiveCategories(ctx context.Context) ([]models.AssessmentCategory, error) {
	var cached []models.AssessmentCategory
	if s.cachedInto(ctx, cacheKeyCategories, &cached) {
		return cached, nil
	}

	categories, err := s.repo.ListActiveCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment categories")
	}
	s.store(ctx, cacheKeyCategories, categories)
	return categories, nil
}

// Invalidate drops every cached configuration entry.
func (s *GradingConfigService) Invalidate(ctx context.Context) (int, error) {
	removed, err := s.cache.Invalidate(ctx, cacheInvalidateScope)
	if err != nil {
		return removed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate grading config cache")
	}
	s.logger.Info("grading config cache invalidated", zap.Int("keys", removed))
	return removed, nil
}

// cachedInto ignores cache errors; configuration falls through to the database.
func (s *GradingConfigService) cachedInto(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *GradingConfigService) store(ctx context.Context, key string, value interface{}) {
	_ = s.cache.Set(ctx, key, value, s.ttl)
}
