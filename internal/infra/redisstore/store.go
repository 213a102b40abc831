// Package redisstore implements the cache storage contract on Redis.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store implements domain.CacheStorage using Redis. Keys are namespaced
// with a prefix to prevent collisions with other applications sharing the
// instance.
type Store struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
	logger    *zap.Logger
}

// New creates a Redis-backed store. retention bounds how long Redis keeps an
// entry at all; it must comfortably exceed every logical TTL so that the
// stale-on-error fallback still finds expired entries during outages. Zero
// disables expiry entirely (the sweeper job then owns cleanup).
func New(client *redis.Client, keyPrefix string, retention time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		retention: retention,
		logger:    logger,
	}
}

// GetItem returns the raw entry for key, or nil when absent.
func (s *Store) GetItem(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	s.logger.Debug("storage hit",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)

	return data, nil
}

// SetItem stores the raw entry, replacing any prior value.
func (s *Store) SetItem(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.buildKey(key), value, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// RemoveItem deletes one entry. Absent keys are a no-op.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

// MultiRemove deletes a batch of entries in one round trip.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.buildKey(k)
	}

	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del batch: %w", err)
	}

	return nil
}

// GetAllKeys lists every key in this store's namespace. Uses SCAN, which is
// safe for production use (non-blocking).
func (s *Store) GetAllKeys(ctx context.Context) ([]string, error) {
	pattern := s.keyPrefix + ":*"
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()

	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.keyPrefix+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}

	return keys, nil
}

func (s *Store) buildKey(key string) string {
	return s.keyPrefix + ":" + key
}
