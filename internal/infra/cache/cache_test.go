package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStorage is an in-memory CacheStorage with injectable failures.
type fakeStorage struct {
	items   map[string][]byte
	failGet bool
	failSet bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{items: map[string][]byte{}}
}

func (s *fakeStorage) GetItem(_ context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errors.New("storage unavailable")
	}
	v, ok := s.items[key]
	if !ok {
		return nil, nil
	}

	return v, nil
}

func (s *fakeStorage) SetItem(_ context.Context, key string, value []byte) error {
	if s.failSet {
		return errors.New("storage unavailable")
	}
	s.items[key] = value

	return nil
}

func (s *fakeStorage) RemoveItem(_ context.Context, key string) error {
	delete(s.items, key)

	return nil
}

func (s *fakeStorage) MultiRemove(_ context.Context, keys []string) error {
	for _, k := range keys {
		delete(s.items, k)
	}

	return nil
}

func (s *fakeStorage) GetAllKeys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}

	return keys, nil
}

func newTestCache(storage *fakeStorage) *Cache {
	ttls := map[string]time.Duration{
		"editions": 15 * time.Minute,
		"pdfs":     24 * time.Hour,
	}

	return New(storage, ttls, time.Hour, zap.NewNop())
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name     string
		logical  string
		params   Params
		expected string
	}{
		{"no params", "editions", nil, "editions"},
		{"single param", "covers", Params{"edition": "42"}, "covers:edition=42"},
		{
			"params sorted for stability",
			"articles",
			Params{"id": "7", "edition": "42"},
			"articles:edition=42:id=7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildKey(tt.logical, tt.params))
		})
	}
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	c.Set(ctx, "editions", Params{"brand": "daily"}, []byte(`{"id":"e1"}`))

	value, ok := c.Get(ctx, "editions", Params{"brand": "daily"})
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"e1"}`, string(value))

	// Different parameterization of the same name is a miss.
	_, ok = c.Get(ctx, "editions", Params{"brand": "weekly"})
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	c.Set(ctx, "editions", nil, []byte(`"v"`))

	// Jump past the editions TTL.
	c.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	_, ok := c.Get(ctx, "editions", nil)
	assert.False(t, ok, "expired entry must be a miss on the happy path")

	value, ok := c.GetStale(ctx, "editions", nil)
	require.True(t, ok, "expired entry must still be readable as stale")
	assert.Equal(t, `"v"`, string(value))
}

func TestCache_PerKeyTTLs(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	c.Set(ctx, "editions", nil, []byte(`"e"`))
	c.Set(ctx, "pdfs", nil, []byte(`"p"`))

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := c.Get(ctx, "editions", nil)
	assert.False(t, ok, "editions ttl is 15m")

	_, ok = c.Get(ctx, "pdfs", nil)
	assert.True(t, ok, "pdfs ttl is 24h")
}

func TestCache_StorageErrorsAreMisses(t *testing.T) {
	storage := newFakeStorage()
	c := newTestCache(storage)
	ctx := context.Background()

	storage.failSet = true
	c.Set(ctx, "editions", nil, []byte(`"v"`)) // must not panic or return error

	storage.failSet = false
	c.Set(ctx, "editions", nil, []byte(`"v"`))

	storage.failGet = true
	_, ok := c.Get(ctx, "editions", nil)
	assert.False(t, ok)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	storage := newFakeStorage()
	c := newTestCache(storage)
	ctx := context.Background()

	storage.items["editions"] = []byte("not json")

	_, ok := c.Get(ctx, "editions", nil)
	assert.False(t, ok)
}

func TestCache_Remove(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	c.Set(ctx, "covers", Params{"edition": "1"}, []byte(`"img"`))
	c.Remove(ctx, "covers", Params{"edition": "1"})

	_, ok := c.Get(ctx, "covers", Params{"edition": "1"})
	assert.False(t, ok)
}

type edition struct {
	ID string `json:"id"`
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	cached, _ := json.Marshal(edition{ID: "cached"})
	c.Set(ctx, "editions", nil, cached)

	calls := 0
	got, err := Fetch(ctx, c, "editions", nil, func(context.Context) (edition, error) {
		calls++

		return edition{ID: "fresh"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cached", got.ID)
	assert.Zero(t, calls)
}

func TestFetch_MissPopulatesCache(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	got, err := Fetch(ctx, c, "editions", nil, func(context.Context) (edition, error) {
		return edition{ID: "fresh"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh", got.ID)

	raw, ok := c.Get(ctx, "editions", nil)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"fresh"}`, string(raw))
}

// TestFetch_StaleOnError verifies that an entry older than its TTL is served
// when the network fetch fails, instead of propagating the error.
func TestFetch_StaleOnError(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	cached, _ := json.Marshal(edition{ID: "stale"})
	c.Set(ctx, "editions", nil, cached)
	c.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	got, err := Fetch(ctx, c, "editions", nil, func(context.Context) (edition, error) {
		return edition{}, errors.New("network down")
	})

	require.NoError(t, err)
	assert.Equal(t, "stale", got.ID)
}

func TestFetch_ErrorOnlyWhenNothingCached(t *testing.T) {
	c := newTestCache(newFakeStorage())
	ctx := context.Background()

	_, err := Fetch(ctx, c, "editions", nil, func(context.Context) (edition, error) {
		return edition{}, errors.New("network down")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}
