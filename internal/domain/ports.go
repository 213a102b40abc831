package domain

import (
	"context"
)

// Identity carries the reader identity forwarded to the content sources.
type Identity struct {
	UserID        string
	Authenticated bool
}

// PrimarySource fetches the editorial catalog.
// Implementations: internal/infra/source/primary
type PrimarySource interface {
	// FetchPrimary returns the full initial catalog, already interleaved
	// with ad placeholders by the upstream layout policy. Items carry their
	// source discriminator and IsAdSlot flag.
	FetchPrimary(ctx context.Context, identity Identity) ([]ContentItem, error)

	// HealthCheck verifies the source is reachable.
	HealthCheck(ctx context.Context) error
}

// RecommendationSource fetches ranked personalized items.
// Implementations: internal/infra/source/recommended
type RecommendationSource interface {
	// FetchRecommended returns up to count items, honoring excludeIDs
	// best-effort. The engine does not re-filter the response: duplicates
	// returned despite exclusion are treated as legitimate items.
	FetchRecommended(ctx context.Context, count int, excludeIDs []string, identity Identity) ([]ContentItem, error)

	HealthCheck(ctx context.Context) error
}

// AdHandle is an opaque reference to a reserved ad instance.
type AdHandle string

// AdProvider acquires and releases ad instances for slot positions.
// Implementations: internal/infra/adprovider
type AdProvider interface {
	// LoadAdInstance reserves an instance for the given feed position.
	LoadAdInstance(ctx context.Context, position int) (AdHandle, error)

	// ReleaseAdInstance releases a previously reserved instance. Must be
	// safe to call for a handle whose load has not resolved yet (fast
	// unload racing a slow load) and for the empty handle.
	ReleaseAdInstance(ctx context.Context, handle AdHandle)
}

// CacheStorage is the durable key-value store backing the TTL cache.
// Implementations: internal/infra/redisstore, internal/infra/postgres
type CacheStorage interface {
	// GetItem returns the raw entry for key, or nil when absent.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem stores the raw entry, replacing any prior value.
	SetItem(ctx context.Context, key string, value []byte) error

	// RemoveItem deletes one entry. Absent keys are not an error.
	RemoveItem(ctx context.Context, key string) error

	// MultiRemove deletes a batch of entries.
	MultiRemove(ctx context.Context, keys []string) error

	// GetAllKeys lists every stored key under this store's namespace.
	GetAllKeys(ctx context.Context) ([]string, error)
}
