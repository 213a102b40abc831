// Package cache provides a TTL cache over a pluggable key-value storage,
// with parameter-addressed keys and a stale-on-error fetch composition.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
)

// Params addresses one parameterization of a logical resource, e.g. an
// edition id. Different parameterizations of the same name never collide.
type Params map[string]string

// entry is the stored envelope. Entries are immutable once written; Set
// replaces them wholesale.
type entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
}

// Cache is the process-wide TTL cache. Concurrent Get/Set on the same key is
// a last-write-wins race, acceptable because values are idempotent
// re-derivations of the same upstream resource.
type Cache struct {
	storage    domain.CacheStorage
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a Cache. ttls maps logical key names (editions, covers, pdfs,
// articles) to their TTL; names without an entry use defaultTTL.
func New(storage domain.CacheStorage, ttls map[string]time.Duration, defaultTTL time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		storage:    storage,
		ttls:       ttls,
		defaultTTL: defaultTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// TTL returns the configured TTL for a logical key name.
func (c *Cache) TTL(name string) time.Duration {
	if ttl, ok := c.ttls[name]; ok {
		return ttl
	}

	return c.defaultTTL
}

// Get returns the stored value for name+params if present and not expired.
// Storage and decode errors are swallowed and reported as a miss: a broken
// cache must never block a foreground fetch.
func (c *Cache) Get(ctx context.Context, name string, params Params) ([]byte, bool) {
	e, ok := c.read(ctx, name, params)
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.StoredAt) > c.TTL(name) {
		c.logger.Debug("cache entry expired",
			zap.String("key", BuildKey(name, params)),
			zap.Time("stored_at", e.StoredAt),
		)

		return nil, false
	}

	return e.Value, true
}

// GetStale returns the stored value regardless of TTL. Used as the last
// resort when the network fetch fails: expiry is a soft boundary, enforced
// on the happy path and waived during outages.
func (c *Cache) GetStale(ctx context.Context, name string, params Params) ([]byte, bool) {
	e, ok := c.read(ctx, name, params)
	if !ok {
		return nil, false
	}

	return e.Value, true
}

// Set stores value with the current timestamp, replacing any prior entry.
// Write errors are logged and dropped.
func (c *Cache) Set(ctx context.Context, name string, params Params, value []byte) {
	key := BuildKey(name, params)

	raw, err := json.Marshal(entry{Value: value, StoredAt: c.now()})
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))

		return
	}

	if err := c.storage.SetItem(ctx, key, raw); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))

		return
	}

	c.logger.Debug("cache set",
		zap.String("key", key),
		zap.Int("bytes", len(value)),
	)
}

// Remove deletes one entry; used for forced invalidation, e.g. orientation
// changes invalidating image-dependent caches.
func (c *Cache) Remove(ctx context.Context, name string, params Params) {
	key := BuildKey(name, params)
	if err := c.storage.RemoveItem(ctx, key); err != nil {
		c.logger.Warn("cache remove failed", zap.String("key", key), zap.Error(err))
	}
}

// read fetches and decodes the envelope, mapping every failure to a miss.
func (c *Cache) read(ctx context.Context, name string, params Params) (*entry, bool) {
	key := BuildKey(name, params)

	raw, err := c.storage.GetItem(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))

		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("cache decode failed", zap.String("key", key), zap.Error(err))

		return nil, false
	}

	return &e, true
}

// SweepExpired deletes every entry whose age exceeds grace times its TTL.
// The grace multiple keeps recently expired entries around for the
// stale-on-error fallback; only entries too old to be worth serving during an
// outage are collected. Undecodable entries are collected too. Returns the
// number of deleted entries.
func (c *Cache) SweepExpired(ctx context.Context, grace int) (int, error) {
	keys, err := c.storage.GetAllKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing cache keys: %w", err)
	}

	expired := []string{}
	for _, key := range keys {
		raw, err := c.storage.GetItem(ctx, key)
		if err != nil || raw == nil {
			continue
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			expired = append(expired, key)

			continue
		}

		name := key
		if i := strings.Index(key, ":"); i >= 0 {
			name = key[:i]
		}

		if c.now().Sub(e.StoredAt) > time.Duration(grace)*c.TTL(name) {
			expired = append(expired, key)
		}
	}

	if len(expired) == 0 {
		return 0, nil
	}

	if err := c.storage.MultiRemove(ctx, expired); err != nil {
		return 0, fmt.Errorf("removing expired cache entries: %w", err)
	}

	return len(expired), nil
}

// BuildKey composes the storage key from the logical name and a stable
// serialization of the parameters (sorted by parameter name).
func BuildKey(name string, params Params) string {
	if len(params) == 0 {
		return name
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString(":")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
	}

	return sb.String()
}

// Fetch is the stale-on-error composition used by every resource fetch:
// fresh cache first, then the network, then the stale cache; the fetch error
// propagates only when nothing was ever cached.
func Fetch[T any](ctx context.Context, c *Cache, name string, params Params, fetch func(context.Context) (T, error)) (T, error) {
	var result T

	if raw, ok := c.Get(ctx, name, params); ok {
		if err := json.Unmarshal(raw, &result); err == nil {
			return result, nil
		}
		// Undecodable entry: treat as a miss and fall through to the fetch.
	}

	fetched, fetchErr := fetch(ctx)
	if fetchErr == nil {
		if raw, err := json.Marshal(fetched); err == nil {
			c.Set(ctx, name, params, raw)
		}

		return fetched, nil
	}

	if raw, ok := c.GetStale(ctx, name, params); ok {
		if err := json.Unmarshal(raw, &result); err == nil {
			c.logger.Warn("fetch failed, serving stale cache entry",
				zap.String("key", BuildKey(name, params)),
				zap.Error(fetchErr),
			)

			return result, nil
		}
	}

	return result, fmt.Errorf("fetching %s: %w", name, fetchErr)
}
