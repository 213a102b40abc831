// Package adslot owns the ad slot lifecycle: position-windowed loading and
// releasing of ephemeral ad instances.
package adslot

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
)

// slot is the tracked state of one ad position.
type slot struct {
	state  domain.SlotState
	handle domain.AdHandle
}

// Manager keeps live ad instances bounded to a window around the viewport,
// so acquisition cost stays proportional to what the reader can see rather
// than total feed length. One manager is owned by exactly one screen
// session.
type Manager struct {
	provider domain.AdProvider
	windows  domain.SlotWindows
	logger   *zap.Logger

	// onError observes failed loads; it never influences slot state, which
	// is already Failed (terminal) by the time it runs.
	onError func(*domain.AdLoadError)

	mu    sync.Mutex
	slots map[int]*slot

	// generation invalidates in-flight loads across ClearAll/SetPositions:
	// a reservation resolving for an older generation is released, never
	// stored.
	generation uint64

	wg sync.WaitGroup
}

// NewManager creates a slot manager. onError may be nil.
func NewManager(provider domain.AdProvider, windows domain.SlotWindows, onError func(*domain.AdLoadError), logger *zap.Logger) *Manager {
	return &Manager{
		provider: provider,
		windows:  windows,
		onError:  onError,
		logger:   logger,
		slots:    map[int]*slot{},
	}
}

// SetPositions replaces the tracked slot set, releasing everything held for
// the previous one. Called whenever the feed is (re)built from a catalog
// whose ad placeholders define the positions.
func (m *Manager) SetPositions(ctx context.Context, positions []int) {
	m.mu.Lock()
	released := m.releaseAllLocked()
	m.slots = make(map[int]*slot, len(positions))
	for _, pos := range positions {
		m.slots[pos] = &slot{state: domain.SlotUnloaded}
	}
	m.mu.Unlock()

	m.release(ctx, released)

	m.logger.Debug("ad slot positions set", zap.Ints("positions", positions))
}

// HandlePositionChange evaluates the preload/unload windows for the given
// viewport position and issues the resulting side effects. Issuance is
// idempotent per position: a slot flips to Loading under the lock before its
// load is awaited, so a near-simultaneous call observes Loading and no-ops.
// Loads are decided before unloads from the same snapshot, so a position
// jump reuses instances already inside the widened window instead of
// briefly holding none.
func (m *Manager) HandlePositionChange(ctx context.Context, position int) {
	m.mu.Lock()

	states := make(map[int]domain.SlotState, len(m.slots))
	for pos, s := range m.slots {
		states[pos] = s.state
	}
	transitions := domain.ComputeSlotTransitions(position, states, m.windows)

	gen := m.generation
	for _, pos := range transitions.ToLoad {
		m.slots[pos].state = domain.SlotLoading
	}

	released := make([]domain.AdHandle, 0, len(transitions.ToUnload))
	for _, pos := range transitions.ToUnload {
		s := m.slots[pos]
		if s.handle != "" {
			released = append(released, s.handle)
		}
		s.state = domain.SlotUnloaded
		s.handle = ""
	}
	m.mu.Unlock()

	for _, pos := range transitions.ToLoad {
		m.wg.Add(1)
		go m.load(ctx, pos, gen)
	}

	m.release(ctx, released)

	if len(transitions.ToLoad) > 0 || len(transitions.ToUnload) > 0 {
		m.logger.Debug("ad slot window evaluated",
			zap.Int("position", position),
			zap.Ints("loading", transitions.ToLoad),
			zap.Ints("unloaded", transitions.ToUnload),
		)
	}
}

// ClearAll forces every slot to Unloaded and releases all instance handles.
// Used on full feed reload; in-flight loads of the old generation release
// their reservation on arrival.
func (m *Manager) ClearAll(ctx context.Context) {
	m.mu.Lock()
	released := m.releaseAllLocked()
	for _, s := range m.slots {
		s.state = domain.SlotUnloaded
		s.handle = ""
	}
	m.mu.Unlock()

	m.release(ctx, released)

	m.logger.Debug("ad slots cleared", zap.Int("released", len(released)))
}

// States returns a snapshot of every slot's state, keyed by feed position.
func (m *Manager) States() map[int]domain.SlotState {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[int]domain.SlotState, len(m.slots))
	for pos, s := range m.slots {
		states[pos] = s.state
	}

	return states
}

// Wait blocks until every issued load has settled. Used on session close
// and in tests; steady-state operation never waits.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// load performs one ad instance acquisition for a position.
func (m *Manager) load(ctx context.Context, position int, gen uint64) {
	defer m.wg.Done()

	handle, err := m.provider.LoadAdInstance(ctx, position)

	m.mu.Lock()
	s, tracked := m.slots[position]
	superseded := !tracked || m.generation != gen || s.state != domain.SlotLoading

	if err != nil {
		if !superseded {
			// Terminal: this position is never retried within the session,
			// so a systematically failing ad source cannot cause thrash.
			s.state = domain.SlotFailed
		}
		m.mu.Unlock()

		adErr, ok := err.(*domain.AdLoadError)
		if !ok {
			adErr = &domain.AdLoadError{Position: position, Err: err}
		}
		m.logger.Warn("ad slot load failed",
			zap.Int("position", position),
			zap.Bool("superseded", superseded),
			zap.Error(err),
		)
		if !superseded && m.onError != nil {
			m.onError(adErr)
		}

		return
	}

	if superseded {
		m.mu.Unlock()
		// The slot was unloaded or the session rebuilt while the
		// reservation was in flight; hand it straight back.
		m.provider.ReleaseAdInstance(ctx, handle)

		return
	}

	s.state = domain.SlotLoaded
	s.handle = handle
	m.mu.Unlock()

	m.logger.Debug("ad slot loaded", zap.Int("position", position))
}

// releaseAllLocked collects every held handle, bumping the generation so
// in-flight loads discard themselves. Callers must hold m.mu.
func (m *Manager) releaseAllLocked() []domain.AdHandle {
	m.generation++

	released := []domain.AdHandle{}
	for _, s := range m.slots {
		if s.handle != "" {
			released = append(released, s.handle)
		}
	}

	return released
}

// release hands handles back to the provider outside the lock.
func (m *Manager) release(ctx context.Context, handles []domain.AdHandle) {
	for _, h := range handles {
		m.provider.ReleaseAdInstance(ctx, h)
	}
}
