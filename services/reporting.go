package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/phillip/shelter-donations-go/models"
)

const (
	statsCacheNamespace  = "donations"
	statsCacheKey        = "stats"
	statsVersionCacheKey = "stats_version"
)

// cachedStats tags an aggregate with the cache version current when its
// source read began. Invalidate moves the version, so a read that was in
// flight across an invalidation can still write, but its entry is never
// served.
type cachedStats struct {
	Version string               `json:"version"`
	Stats   models.DonationStats `json:"stats"`
}

// ReportingService serves the donation aggregates, optionally through a
// cache that the reconciler invalidates whenever aggregates move.
type ReportingService struct {
	source StatsSource
	cache  StatsCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewReportingService(source StatsSource, cache StatsCache, ttl time.Duration, logger *zap.Logger) *ReportingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportingService{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (s *ReportingService) Stats(ctx context.Context) (*models.DonationStats, error) {
	var version string
	if s.cache != nil {
		version = s.version(ctx)
		if raw, err := s.cache.Get(ctx, statsCacheNamespace, statsCacheKey); err == nil && raw != "" {
			var cached cachedStats
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.Version == version {
				return &cached.Stats, nil
			}
		}
	}

	stats, err := s.source.Stats(ctx)
	if err != nil {
		return nil, err
	}
	total, _ := decimal.NewFromFloat(stats.TotalAmount).Round(2).Float64()
	stats.TotalAmount = total

	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(cachedStats{Version: version, Stats: *stats}); err == nil {
			if err := s.cache.Set(ctx, statsCacheNamespace, statsCacheKey, string(raw), s.ttl); err != nil {
				s.logger.Warn("stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *ReportingService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheNamespace, statsVersionCacheKey, uuid.NewString(), 0); err != nil {
		s.logger.Warn("stats cache version bump failed", zap.Error(err))
	}
	if err := s.cache.Delete(ctx, statsCacheNamespace, statsCacheKey); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// version is empty until the first invalidation, or when the cache is down.
func (s *ReportingService) version(ctx context.Context) string {
	v, err := s.cache.Get(ctx, statsCacheNamespace, statsVersionCacheKey)
	if err != nil {
		return ""
	}
	return v
}
