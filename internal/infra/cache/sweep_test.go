package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCache_SweepExpired(t *testing.T) {
	storage := newFakeStorage()
	c := New(storage, map[string]time.Duration{
		"editions": 15 * time.Minute,
		"pdfs":     24 * time.Hour,
	}, time.Hour, zap.NewNop())

	ctx := context.Background()
	base := time.Now()

	// Fresh edition, edition past TTL but within grace, edition far past
	// grace, and a pdf whose longer TTL keeps it alive at the same age.
	c.now = func() time.Time { return base.Add(-5 * time.Minute) }
	c.Set(ctx, "editions", Params{"id": "fresh"}, []byte(`"a"`))

	c.now = func() time.Time { return base.Add(-20 * time.Minute) }
	c.Set(ctx, "editions", Params{"id": "stale"}, []byte(`"b"`))

	c.now = func() time.Time { return base.Add(-2 * time.Hour) }
	c.Set(ctx, "editions", Params{"id": "dead"}, []byte(`"c"`))
	c.Set(ctx, "pdfs", Params{"id": "kept"}, []byte(`"d"`))

	c.now = func() time.Time { return base }
	deleted, err := c.SweepExpired(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, ok := c.GetStale(ctx, "editions", Params{"id": "dead"})
	assert.False(t, ok, "entries past the grace window must be gone")

	_, ok = c.GetStale(ctx, "editions", Params{"id": "stale"})
	assert.True(t, ok, "recently expired entries stay for the stale fallback")

	_, ok = c.Get(ctx, "editions", Params{"id": "fresh"})
	assert.True(t, ok)

	_, ok = c.GetStale(ctx, "pdfs", Params{"id": "kept"})
	assert.True(t, ok)
}

func TestCache_SweepExpired_CollectsCorruptEntries(t *testing.T) {
	storage := newFakeStorage()
	c := New(storage, nil, time.Hour, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, storage.SetItem(ctx, "editions:id=bad", []byte("not json")))

	deleted, err := c.SweepExpired(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestCache_SweepExpired_NothingToDo(t *testing.T) {
	storage := newFakeStorage()
	c := New(storage, nil, time.Hour, zap.NewNop())

	deleted, err := c.SweepExpired(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
