package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-insight-api/pkg/errors"
)

const cacheKeyPrefix = "insight"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateUnit drops every cached report derived from a unit's records.
func (s *CacheService) InvalidateUnit(ctx context.Context, unitID string) error {
	return s.Invalidate(ctx, UnitCachePattern(unitID))
}

// UnitCachePattern matches all cache keys belonging to a unit.
func UnitCachePattern(unitID string) string {
	return fmt.Sprintf("%s:%s:*", cacheKeyPrefix, keyPart(unitID))
}

// ReportCacheKey builds the cache key for a unit scoped report. Every part
// is escaped, so ":" inside a value never shifts the segments and glob
// characters never reach the invalidation pattern.
func ReportCacheKey(kind, unitID string, anchor string, filter models.RecordFilter) string {
	parts := []string{
		unitID,
		kind,
		anchor,
		filter.IntakeType,
		filter.Course,
		filter.Status,
		filter.Shift,
		filter.Modality,
	}
	for i, part := range parts {
		parts[i] = keyPart(part)
	}
	return cacheKeyPrefix + ":" + strings.Join(parts, ":")
}

func keyPart(raw string) string {
	return url.QueryEscape(raw)
}
