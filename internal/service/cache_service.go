package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Cache keys live under "cache:" so they never collide with lock keys on the same Redis.
const timetableCacheKey = "cache:timetable:current"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService keeps a read-through copy of the current timetable and records cache metrics.
// Cache failures are logged and never fail the caller.
//
// Every invalidation bumps an epoch. A reader captures the epoch before it loads from the
// database and its write-back is dropped when an invalidation happened in between. Other
// instances sharing the Redis keyspace are bounded by the TTL only.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool

	mu    sync.Mutex
	epoch uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Timetable returns the cached timetable, or nil on a miss.
func (s *CacheService) Timetable(ctx context.Context) *models.Timetable {
	if !s.Enabled() {
		return nil
	}
	start := time.Now()
	var tt models.Timetable
	err := s.repo.Get(ctx, timetableCacheKey, &tt)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", timetableCacheKey), zap.Error(err))
		}
		return nil
	}
	return &tt
}

// Epoch identifies the current cache generation.
func (s *CacheService) Epoch() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// StoreTimetable caches tt for the configured TTL unless the cache was invalidated after
// epoch was read.
func (s *CacheService) StoreTimetable(ctx context.Context, tt *models.Timetable, epoch uint64) {
	if !s.Enabled() || tt == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		s.logger.Debug("skipping stale cache write", zap.Uint64("epoch", epoch), zap.Uint64("current", s.epoch))
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, timetableCacheKey, tt, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", timetableCacheKey), zap.Error(err))
	}
}

// InvalidateTimetable drops the cached timetable.
func (s *CacheService) InvalidateTimetable(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, timetableCacheKey); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("key", timetableCacheKey), zap.Error(err))
	}
}
