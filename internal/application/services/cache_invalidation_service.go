package services

import (
	"context"
	"fmt"
	"time"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

const invalidationTimeout = 10 * time.Second

// CacheInvalidationService drops cached HTTP responses once the underlying data changed
type CacheInvalidationService struct {
	cache providers.CacheProvider
}

// NewCacheInvalidationService creates a new cache invalidation service. A nil cache
// turns every call into a no-op.
func NewCacheInvalidationService(cache providers.CacheProvider) *CacheInvalidationService {
	return &CacheInvalidationService{cache: cache}
}

// InvalidateResponses deletes every cached API response
func (s *CacheInvalidationService) InvalidateResponses(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, invalidationTimeout)
	defer cancel()

	pattern := providers.ResponseCacheKeyPrefix + "*"
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
	}
	observability.LoggerFromContext(ctx).Info().Str("pattern", pattern).Msg("invalidated response cache")
	return nil
}
