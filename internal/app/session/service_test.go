package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feed-engine-service/internal/app/feed"
	"feed-engine-service/internal/domain"
)

type fakePrimary struct {
	items []domain.ContentItem
}

func (f *fakePrimary) FetchPrimary(context.Context, domain.Identity) ([]domain.ContentItem, error) {
	out := make([]domain.ContentItem, len(f.items))
	copy(out, f.items)

	return out, nil
}

func (f *fakePrimary) HealthCheck(context.Context) error { return nil }

type fakeRecommender struct {
	mu   sync.Mutex
	next int
}

func (f *fakeRecommender) FetchRecommended(_ context.Context, count int, _ []string, _ domain.Identity) ([]domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]domain.ContentItem, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, domain.ContentItem{ID: fmt.Sprintf("rec-%d", f.next), Source: domain.SourceRecommended})
		f.next++
	}

	return items, nil
}

func (f *fakeRecommender) HealthCheck(context.Context) error { return nil }

type fakeAds struct {
	mu       sync.Mutex
	loads    int
	released []domain.AdHandle
}

func (f *fakeAds) LoadAdInstance(_ context.Context, position int) (domain.AdHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++

	return domain.AdHandle(fmt.Sprintf("h-%d", position)), nil
}

func (f *fakeAds) ReleaseAdInstance(_ context.Context, handle domain.AdHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, handle)
}

// cachingPrimary mimics the cached catalog decorator: it freezes the first
// response and replays it until invalidated.
type cachingPrimary struct {
	mu            sync.Mutex
	items         []domain.ContentItem
	cached        []domain.ContentItem
	invalidations int
}

func (f *cachingPrimary) FetchPrimary(context.Context, domain.Identity) ([]domain.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cached == nil {
		f.cached = append([]domain.ContentItem(nil), f.items...)
	}

	out := make([]domain.ContentItem, len(f.cached))
	copy(out, f.cached)

	return out, nil
}

func (f *cachingPrimary) InvalidatePrimary(context.Context, domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = nil
	f.invalidations++
}

func (f *cachingPrimary) HealthCheck(context.Context) error { return nil }

func catalog(n int, adPositions ...int) []domain.ContentItem {
	ads := map[int]bool{}
	for _, p := range adPositions {
		ads[p] = true
	}

	items := make([]domain.ContentItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.ContentItem{
			ID:       fmt.Sprintf("pri-%d", i),
			Source:   domain.SourcePrimary,
			IsAdSlot: ads[i],
		})
	}

	return items
}

func newTestService(primary *fakePrimary, ads *fakeAds) *Service {
	cfg := Config{
		Feed:    feed.Config{ItemsPerLoad: 5, TriggerThreshold: 3},
		Windows: domain.SlotWindows{PreloadDistance: 2, UnloadDistance: 3},
	}

	return NewService(primary, &fakeRecommender{}, ads, cfg, zap.NewNop())
}

func TestService_CreateAndGet(t *testing.T) {
	ads := &fakeAds{}
	svc := newTestService(&fakePrimary{items: catalog(10, 4)}, ads)

	snap, err := svc.Create(context.Background(), domain.Identity{UserID: "u1", Authenticated: true})
	require.NoError(t, err)
	require.NotEmpty(t, snap.ID)

	// 10 primary plus the first recommendation page.
	assert.Len(t, snap.Feed.Items, 15)
	assert.Equal(t, 10, snap.Feed.PrimaryCount)
	assert.Contains(t, snap.SlotStates, 4)
	assert.Equal(t, 1, svc.Count())

	got, err := svc.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Len(t, got.Feed.Items, 15)
}

func TestService_UnknownSessionID(t *testing.T) {
	svc := newTestService(&fakePrimary{items: catalog(5)}, &fakeAds{})

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ReportPosition(context.Background(), "nope", 3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Close(context.Background(), "nope"), ErrNotFound)
}

func TestService_ReportPositionDrivesBothLifecycles(t *testing.T) {
	ads := &fakeAds{}
	svc := newTestService(&fakePrimary{items: catalog(10, 4)}, ads)

	ctx := context.Background()
	snap, err := svc.Create(ctx, domain.Identity{})
	require.NoError(t, err)

	// Feed length is 15; position 11 leaves exactly 3 of lookahead, which
	// both fires an extension and sits far outside slot 4's window.
	extended, err := svc.ReportPosition(ctx, snap.ID, 11)
	require.NoError(t, err)
	assert.True(t, extended)

	got, err := svc.Get(snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.Feed.Items, 20)

	// Scrolling back near the slot loads it.
	_, err = svc.ReportPosition(ctx, snap.ID, 5)
	require.NoError(t, err)

	states, err := svc.SlotStates(snap.ID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.SlotUnloaded, states[4])
}

func TestService_RefreshReleasesAndRebuilds(t *testing.T) {
	ads := &fakeAds{}
	svc := newTestService(&fakePrimary{items: catalog(10, 4)}, ads)

	ctx := context.Background()
	snap, err := svc.Create(ctx, domain.Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = svc.ReportPosition(ctx, snap.ID, 4)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, refreshed.ID)
	assert.Greater(t, refreshed.Generation, snap.Generation)
	assert.Len(t, refreshed.Feed.Items, 15)
	assert.Equal(t, domain.SlotUnloaded, refreshed.SlotStates[4])
}

func TestService_RefreshBypassesCachedCatalog(t *testing.T) {
	primary := &cachingPrimary{items: catalog(10, 4)}
	cfg := Config{
		Feed:    feed.Config{ItemsPerLoad: 5, TriggerThreshold: 3},
		Windows: domain.SlotWindows{PreloadDistance: 2, UnloadDistance: 3},
	}
	svc := NewService(primary, &fakeRecommender{}, &fakeAds{}, cfg, zap.NewNop())

	ctx := context.Background()
	snap, err := svc.Create(ctx, domain.Identity{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, snap.Feed.Items, 15)

	// The upstream catalog changes while the cached copy is still live.
	primary.mu.Lock()
	primary.items = catalog(12, 4, 9)
	primary.mu.Unlock()

	refreshed, err := svc.Refresh(ctx, snap.ID)
	require.NoError(t, err)
	assert.Len(t, refreshed.Feed.Items, 17, "refresh refetches the upstream, not the cached catalog")
	assert.Contains(t, refreshed.SlotStates, 9)

	primary.mu.Lock()
	invalidations := primary.invalidations
	primary.mu.Unlock()
	assert.Equal(t, 1, invalidations)
}

func TestService_CloseRemovesSession(t *testing.T) {
	ads := &fakeAds{}
	svc := newTestService(&fakePrimary{items: catalog(10, 4)}, ads)

	ctx := context.Background()
	snap, err := svc.Create(ctx, domain.Identity{})
	require.NoError(t, err)

	_, err = svc.ReportPosition(ctx, snap.ID, 4)
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, snap.ID))
	assert.Zero(t, svc.Count())

	_, err = svc.Get(snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	ads.mu.Lock()
	released := len(ads.released)
	ads.mu.Unlock()
	assert.Positive(t, released, "close must hand reservations back")
}
