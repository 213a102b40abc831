package adslot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
)

// fakeProvider issues deterministic handles, optionally blocking or failing.
type fakeProvider struct {
	mu       sync.Mutex
	err      error
	block    chan struct{}
	loads    []int
	released []domain.AdHandle
	calls    int32
}

func (f *fakeProvider) setBlock(ch chan struct{}) {
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeProvider) LoadAdInstance(ctx context.Context, position int) (domain.AdHandle, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	block := f.block
	err := f.err
	f.loads = append(f.loads, position)
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", &domain.AdLoadError{Position: position, Err: err}
	}

	return domain.AdHandle(fmt.Sprintf("h-%d", position)), nil
}

func (f *fakeProvider) ReleaseAdInstance(_ context.Context, handle domain.AdHandle) {
	f.mu.Lock()
	f.released = append(f.released, handle)
	f.mu.Unlock()
}

func (f *fakeProvider) releasedHandles() []domain.AdHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.AdHandle, len(f.released))
	copy(out, f.released)

	return out
}

func testWindows() domain.SlotWindows {
	return domain.SlotWindows{PreloadDistance: 2, UnloadDistance: 3}
}

func TestManager_LoadsWithinPreloadWindow(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4, 9, 14})
	m.HandlePositionChange(ctx, 6)
	m.Wait()

	states := m.States()
	assert.Equal(t, domain.SlotLoaded, states[4])
	assert.Equal(t, domain.SlotUnloaded, states[9])
	assert.Equal(t, domain.SlotUnloaded, states[14])
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
}

func TestManager_UnloadsBeyondUnloadWindow(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4, 9, 14})
	m.HandlePositionChange(ctx, 6)
	m.Wait()

	m.HandlePositionChange(ctx, 9)
	m.Wait()

	states := m.States()
	assert.Equal(t, domain.SlotUnloaded, states[4], "distance 5 exceeds the unload window")
	assert.Equal(t, domain.SlotLoaded, states[9])
	assert.Equal(t, []domain.AdHandle{"h-4"}, provider.releasedHandles())
}

func TestManager_HysteresisBandHoldsLoaded(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4})
	m.HandlePositionChange(ctx, 4)
	m.Wait()

	// Distance 3 sits between preload (2) and unload (3): scrolling across
	// that band must neither reload nor release.
	for _, pos := range []int{7, 6, 7, 6, 7} {
		m.HandlePositionChange(ctx, pos)
	}
	m.Wait()

	assert.Equal(t, domain.SlotLoaded, m.States()[4])
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
	assert.Empty(t, provider.releasedHandles())
}

func TestManager_IssuanceIsIdempotentWhileLoading(t *testing.T) {
	provider := &fakeProvider{}
	release := make(chan struct{})
	provider.setBlock(release)

	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4})
	m.HandlePositionChange(ctx, 4)

	assert.Equal(t, domain.SlotLoading, m.States()[4], "Loading must be visible before the load resolves")

	m.HandlePositionChange(ctx, 4)
	m.HandlePositionChange(ctx, 5)

	close(release)
	m.Wait()

	assert.Equal(t, domain.SlotLoaded, m.States()[4])
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls), "a Loading slot must not be issued again")
}

func TestManager_FailedIsTerminal(t *testing.T) {
	provider := &fakeProvider{}
	provider.setErr(errors.New("no fill"))

	var observed []*domain.AdLoadError
	var obsMu sync.Mutex
	onError := func(e *domain.AdLoadError) {
		obsMu.Lock()
		observed = append(observed, e)
		obsMu.Unlock()
	}

	m := NewManager(provider, testWindows(), onError, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4})
	m.HandlePositionChange(ctx, 4)
	m.Wait()

	require.Equal(t, domain.SlotFailed, m.States()[4])

	obsMu.Lock()
	require.Len(t, observed, 1)
	assert.Equal(t, 4, observed[0].Position)
	obsMu.Unlock()

	// Re-entering the window must not retry, and leaving it must not
	// release anything: there is nothing held.
	provider.setErr(nil)
	m.HandlePositionChange(ctx, 4)
	m.HandlePositionChange(ctx, 20)
	m.HandlePositionChange(ctx, 4)
	m.Wait()

	assert.Equal(t, domain.SlotFailed, m.States()[4])
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
	assert.Empty(t, provider.releasedHandles())
}

func TestManager_LateLoadAfterUnloadReleasesHandle(t *testing.T) {
	provider := &fakeProvider{}
	release := make(chan struct{})
	provider.setBlock(release)

	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4})
	m.HandlePositionChange(ctx, 4)

	// Scroll away while the load is still in flight. The Loading slot
	// unloads immediately; there is no handle to release yet.
	m.HandlePositionChange(ctx, 12)
	assert.Equal(t, domain.SlotUnloaded, m.States()[4])
	assert.Empty(t, provider.releasedHandles())

	close(release)
	m.Wait()

	assert.Equal(t, domain.SlotUnloaded, m.States()[4], "a superseded load must not resurrect the slot")
	assert.Equal(t, []domain.AdHandle{"h-4"}, provider.releasedHandles())
}

func TestManager_ClearAllReleasesEverything(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4, 9})
	m.HandlePositionChange(ctx, 4)
	m.HandlePositionChange(ctx, 9)
	m.Wait()

	m.ClearAll(ctx)

	states := m.States()
	assert.Equal(t, domain.SlotUnloaded, states[4])
	assert.Equal(t, domain.SlotUnloaded, states[9])
	assert.ElementsMatch(t, []domain.AdHandle{"h-4", "h-9"}, provider.releasedHandles())

	// The window can be re-entered after a clear.
	m.HandlePositionChange(ctx, 4)
	m.Wait()
	assert.Equal(t, domain.SlotLoaded, m.States()[4])
}

func TestManager_ClearAllSupersedesInFlightLoad(t *testing.T) {
	provider := &fakeProvider{}
	release := make(chan struct{})
	provider.setBlock(release)

	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4})
	m.HandlePositionChange(ctx, 4)

	m.ClearAll(ctx)

	// The slot re-enters Loading under the new generation while the old
	// load is still pending; the stale handle must be released, not stored.
	m.HandlePositionChange(ctx, 4)

	close(release)
	m.Wait()

	assert.Equal(t, domain.SlotLoaded, m.States()[4])
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.calls))
	assert.Equal(t, []domain.AdHandle{"h-4"}, provider.releasedHandles())
}

func TestManager_SetPositionsReplacesTrackedSet(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(provider, testWindows(), nil, zap.NewNop())

	ctx := context.Background()
	m.SetPositions(ctx, []int{4})
	m.HandlePositionChange(ctx, 4)
	m.Wait()

	m.SetPositions(ctx, []int{7, 12})

	states := m.States()
	assert.NotContains(t, states, 4)
	assert.Equal(t, domain.SlotUnloaded, states[7])
	assert.Equal(t, domain.SlotUnloaded, states[12])
	assert.Equal(t, []domain.AdHandle{"h-4"}, provider.releasedHandles())
}
