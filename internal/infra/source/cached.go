package source

import (
	"context"
	"strconv"

	"feed-engine-service/internal/domain"
	"feed-engine-service/internal/infra/cache"
)

// FeedCacheKey is the logical cache name for primary catalog fetches.
const FeedCacheKey = "feed"

// CachedPrimary decorates a primary source with the TTL cache. The catalog is
// identical for every anonymous reader and per-user for authenticated ones,
// so the key is parameterized on the identity. Stale entries are served when
// the upstream is down.
type CachedPrimary struct {
	inner domain.PrimarySource
	cache *cache.Cache
}

// NewCachedPrimary wraps a primary source with caching.
func NewCachedPrimary(inner domain.PrimarySource, c *cache.Cache) *CachedPrimary {
	return &CachedPrimary{inner: inner, cache: c}
}

// FetchPrimary returns the primary catalog, preferring a fresh cache entry
// and falling back to a stale one when the upstream fetch fails.
func (p *CachedPrimary) FetchPrimary(ctx context.Context, identity domain.Identity) ([]domain.ContentItem, error) {
	return cache.Fetch(ctx, p.cache, FeedCacheKey, identityParams(identity), func(ctx context.Context) ([]domain.ContentItem, error) {
		return p.inner.FetchPrimary(ctx, identity)
	})
}

// InvalidatePrimary drops the cached catalog for one identity so the next
// fetch goes to the upstream. A pull-to-refresh rebuilds the feed wholesale,
// which means refetching the sources rather than replaying a live entry;
// with the entry gone, a refresh against a dead upstream surfaces the error
// instead of a stale catalog.
func (p *CachedPrimary) InvalidatePrimary(ctx context.Context, identity domain.Identity) {
	p.cache.Remove(ctx, FeedCacheKey, identityParams(identity))
}

func identityParams(identity domain.Identity) cache.Params {
	return cache.Params{
		"user_id": identity.UserID,
		"authed":  strconv.FormatBool(identity.Authenticated),
	}
}

// HealthCheck probes the underlying source; the cache never masks an
// unhealthy upstream from readiness.
func (p *CachedPrimary) HealthCheck(ctx context.Context) error {
	return p.inner.HealthCheck(ctx)
}
