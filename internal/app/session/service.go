// Package session provides application use cases for screen sessions: each
// session owns one feed engine and one ad slot manager.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feed-engine-service/internal/app/adslot"
	"feed-engine-service/internal/app/feed"
	"feed-engine-service/internal/domain"
)

// ErrNotFound signals an unknown or already closed session id.
var ErrNotFound = errors.New("session not found")

// Config aggregates the per-session settings.
type Config struct {
	Feed    feed.Config
	Windows domain.SlotWindows
}

// Snapshot is the externally visible view of one session.
type Snapshot struct {
	ID         string
	Feed       *domain.FeedState
	SlotStates map[int]domain.SlotState
	Generation uint64
}

// primaryInvalidator is implemented by primary sources that cache the
// catalog. Refresh drops the entry first so the rebuilt feed comes from the
// upstream, not from a still-live cache entry.
type primaryInvalidator interface {
	InvalidatePrimary(ctx context.Context, identity domain.Identity)
}

// session pairs the two lifecycle components behind one id.
type session struct {
	id     string
	engine *feed.Engine
	slots  *adslot.Manager
}

// Service is the session registry. It creates, looks up, refreshes and closes
// sessions; everything below it is per-session and owns its own locking.
type Service struct {
	primary     domain.PrimarySource
	recommender domain.RecommendationSource
	ads         domain.AdProvider
	cfg         Config
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewService creates a new session Service.
func NewService(
	primary domain.PrimarySource,
	recommender domain.RecommendationSource,
	ads domain.AdProvider,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		primary:     primary,
		recommender: recommender,
		ads:         ads,
		cfg:         cfg,
		logger:      logger,
		sessions:    map[string]*session{},
	}
}

// Create opens a new session for the given identity, loads the initial feed
// and registers the ad placeholder positions found in it.
func (s *Service) Create(ctx context.Context, identity domain.Identity) (*Snapshot, error) {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("session_id", id))

	sess := &session{
		id:     id,
		engine: feed.NewEngine(s.primary, s.recommender, s.cfg.Feed, logger),
		slots: adslot.NewManager(s.ads, s.cfg.Windows, func(e *domain.AdLoadError) {
			logger.Warn("ad slot entered failed state", zap.Int("position", e.Position))
		}, logger),
	}

	state, err := sess.engine.LoadInitial(ctx, identity)
	if err != nil {
		return nil, err
	}

	sess.slots.SetPositions(ctx, domain.AdSlotPositions(state.Items))

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	logger.Info("session created",
		zap.Int("items", len(state.Items)),
		zap.Bool("authenticated", identity.Authenticated),
	)

	return s.snapshot(sess, state), nil
}

// Get returns the current snapshot of a session.
func (s *Service) Get(id string) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	state, err := sess.engine.State()
	if err != nil {
		return nil, err
	}

	return s.snapshot(sess, state), nil
}

// ReportPosition dispatches a viewport position to both lifecycle components:
// the feed engine (which may extend) and the slot manager (which loads and
// releases ad instances around the position). Returns whether a feed
// extension was attempted.
func (s *Service) ReportPosition(ctx context.Context, id string, position int) (bool, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return false, err
	}

	extended := sess.engine.ReportPosition(ctx, position)
	sess.slots.HandlePositionChange(ctx, position)

	return extended, nil
}

// Refresh rebuilds the session's feed from scratch: all ad instances are
// released, the catalog and first recommendation page are refetched, and the
// slot registry is derived anew. Results of the superseded load, if still in
// flight, are discarded on arrival.
func (s *Service) Refresh(ctx context.Context, id string) (*Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.slots.ClearAll(ctx)

	identity := sess.engine.Identity()
	if inv, ok := s.primary.(primaryInvalidator); ok {
		inv.InvalidatePrimary(ctx, identity)
	}

	state, err := sess.engine.LoadInitial(ctx, identity)
	if err != nil {
		return nil, err
	}

	sess.slots.SetPositions(ctx, domain.AdSlotPositions(state.Items))

	s.logger.Info("session refreshed",
		zap.String("session_id", id),
		zap.Int("items", len(state.Items)),
	)

	return s.snapshot(sess, state), nil
}

// SlotStates returns the ad slot state map of a session.
func (s *Service) SlotStates(id string) (map[int]domain.SlotState, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	return sess.slots.States(), nil
}

// Close tears a session down, releasing every held ad instance. In-flight
// loads settle before the session is dropped so their reservations are
// handed back rather than leaked.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	sess.slots.ClearAll(ctx)
	sess.slots.Wait()

	s.logger.Info("session closed", zap.String("session_id", id))

	return nil
}

// CloseAll tears down every live session. Used on shutdown.
func (s *Service) CloseAll(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[string]*session{}
	s.mu.Unlock()

	for id, sess := range sessions {
		sess.slots.ClearAll(ctx)
		sess.slots.Wait()
		s.logger.Debug("session closed on shutdown", zap.String("session_id", id))
	}
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Service) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	return sess, nil
}

func (s *Service) snapshot(sess *session, state *domain.FeedState) *Snapshot {
	return &Snapshot{
		ID:         sess.id,
		Feed:       state,
		SlotStates: sess.slots.States(),
		Generation: sess.engine.Generation(),
	}
}
