package magicalapi

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/cache"
	"github.com/spigell/adherence-scorer/internal/metrics"
	"github.com/spigell/adherence-scorer/internal/profile"
)

const cacheKeyPrefix = "profile:"

// CachedResolver serves profiles from a cache and falls back to the wrapped
// resolver. Only successful resolutions are stored.
type CachedResolver struct {
	next   ProfileResolver
	cache  cache.Cache
	logger *zap.Logger
	TTL    time.Duration
}

func NewCachedResolver(next ProfileResolver, c cache.Cache, logger *zap.Logger) *CachedResolver {
	if c == nil {
		c = cache.Nop{}
	}

	return &CachedResolver{
		next:   next,
		cache:  c,
		logger: logger,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, slug string) (*profile.Profile, error) {
	key := cacheKeyPrefix + slug

	var data map[string]any
	err := r.cache.Get(ctx, key, &data)
	switch {
	case err == nil:
		p, decodeErr := profile.Decode(data)
		if decodeErr == nil {
			metrics.Resolutions.WithLabelValues("cached").Inc()
			r.logger.Debug("profile served from cache", zap.String("slug", slug))
			return p, nil
		}
		r.logger.Warn("dropping undecodable cached profile", zap.String("slug", slug), zap.Error(decodeErr))
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Warn("failed to delete cached profile", zap.String("slug", slug), zap.Error(err))
		}
	case !errors.Is(err, cache.ErrNotFound):
		r.logger.Warn("profile cache unavailable", zap.String("slug", slug), zap.Error(err))
	}

	p, err := r.next.Resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, p, r.TTL); err != nil {
		r.logger.Warn("failed to cache profile", zap.String("slug", slug), zap.Error(err))
	}

	return p, nil
}
