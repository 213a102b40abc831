// Package feed owns feed assembly: merging the primary catalog with
// recommendations and extending the feed as the reader scrolls.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
)

// ErrSuperseded signals that a result arrived for a session generation that
// has since been replaced by a refresh. The result is discarded.
var ErrSuperseded = errors.New("feed generation superseded")

// ErrNotLoaded signals an operation on an engine before its initial load.
var ErrNotLoaded = errors.New("feed not loaded")

// Config holds feed assembly settings.
type Config struct {
	// ItemsPerLoad is the recommendation page size for each extension.
	ItemsPerLoad int

	// TriggerThreshold is the lookahead, in items, before the feed end at
	// which an extension fires.
	TriggerThreshold int
}

// Engine assembles and extends one feed. It is owned by exactly one screen
// session; the mutex serializes state access across the concurrent
// position/extension/refresh paths, while in-flight network calls never hold
// it.
type Engine struct {
	primary     domain.PrimarySource
	recommender domain.RecommendationSource
	cfg         Config
	logger      *zap.Logger

	mu       sync.Mutex
	state    *domain.FeedState
	identity domain.Identity

	// generation increases on every LoadInitial. Async results captured
	// under an older generation are discarded on arrival, closing the
	// stale-response-after-reload hazard.
	generation uint64

	// extendArmed edge-triggers the extension check. The trigger disarms
	// when the threshold condition first holds and re-arms when the reader
	// moves off it or the feed grows, so holding one position fires at most
	// once while a fresh crossing after a failed extension re-attempts.
	extendArmed bool
}

// NewEngine creates a feed engine. recommender may be nil when the brand has
// no recommendation service configured; the feed is then primary-only and
// never extends.
func NewEngine(primary domain.PrimarySource, recommender domain.RecommendationSource, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		primary:     primary,
		recommender: recommender,
		cfg:         cfg,
		logger:      logger,
	}
}

// LoadInitial fetches the primary catalog and, if recommendations are
// configured, the first page of recommended items appended after it. The
// result is strictly primary-then-recommended; no reordering is performed
// here. A primary failure surfaces to the caller as a feed-level error; a
// recommendation failure degrades to a primary-only feed.
//
// Calling LoadInitial again (refresh, orientation change, app resume)
// replaces the state wholesale under a new generation.
func (e *Engine) LoadInitial(ctx context.Context, identity domain.Identity) (*domain.FeedState, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.identity = identity
	e.mu.Unlock()

	items, err := e.primary.FetchPrimary(ctx, identity)
	if err != nil {
		return nil, err
	}

	if e.recommender != nil {
		exclude := make([]string, 0, len(items))
		for i := range items {
			if !items[i].IsAdSlot {
				exclude = append(exclude, items[i].CompositeID())
			}
		}

		recommendedItems, recErr := e.recommender.FetchRecommended(ctx, e.cfg.ItemsPerLoad, exclude, identity)
		if recErr != nil {
			e.logger.Warn("initial recommendations unavailable, serving primary-only feed",
				zap.Error(recErr),
			)
		} else {
			for i := range recommendedItems {
				recommendedItems[i].Source = domain.SourceRecommended
			}
			items = append(items, recommendedItems...)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		e.logger.Debug("discarding superseded initial load",
			zap.Uint64("generation", gen),
			zap.Uint64("live", e.generation),
		)

		return nil, ErrSuperseded
	}

	e.state = domain.NewFeedState(items)
	e.extendArmed = true

	e.logger.Info("feed loaded",
		zap.Int("items", e.state.Len()),
		zap.Int("primary_count", e.state.PrimaryCount),
		zap.Uint64("generation", gen),
	)

	return e.snapshotLocked(), nil
}

// ReportPosition feeds a viewport position update into the engine. When the
// remaining lookahead hits the configured threshold the feed extends; the
// check is edge-triggered so one crossing fires exactly one extension.
// Returns whether an extension was attempted.
func (e *Engine) ReportPosition(ctx context.Context, position int) bool {
	e.mu.Lock()
	if e.state == nil {
		e.mu.Unlock()

		return false
	}

	atThreshold := e.state.Len()-position-1 == e.cfg.TriggerThreshold
	fire := atThreshold && e.extendArmed
	e.extendArmed = !atThreshold
	e.mu.Unlock()

	if !fire {
		return false
	}

	e.Extend(ctx)

	return true
}

// Extend requests one more recommendation page and appends it. It only
// proceeds when no extension is in flight and the source is not exhausted;
// otherwise it is a logged no-op, never an error. Failures are swallowed
// into a log and leave both the items and HasMoreItems untouched, so the
// next threshold crossing or a manual retry can re-attempt.
func (e *Engine) Extend(ctx context.Context) {
	if e.recommender == nil {
		return
	}

	e.mu.Lock()
	if e.state == nil {
		e.mu.Unlock()

		return
	}
	if e.state.IsLoadingMore || !e.state.HasMoreItems {
		e.logger.Debug("extend skipped",
			zap.Bool("loading", e.state.IsLoadingMore),
			zap.Bool("has_more", e.state.HasMoreItems),
		)
		e.mu.Unlock()

		return
	}

	// The guard flips before any await so concurrent triggers observe it
	// synchronously and no-op instead of queuing.
	state := e.state
	state.IsLoadingMore = true
	gen := e.generation
	exclude := state.ExclusionList()
	identity := e.identityLocked()
	count := e.cfg.ItemsPerLoad
	e.mu.Unlock()

	// The guard clears on every path, success or failure, so a stuck
	// loading flag can never block future triggers. It clears on the state
	// object captured above: if a refresh swapped the state meanwhile, the
	// fresh state was born with the flag down.
	defer func() {
		e.mu.Lock()
		state.IsLoadingMore = false
		e.mu.Unlock()
	}()

	items, err := e.recommender.FetchRecommended(ctx, count, exclude, identity)
	if err != nil {
		e.logger.Warn("feed extension failed", zap.Error(err))

		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		e.logger.Debug("discarding superseded extension",
			zap.Uint64("generation", gen),
			zap.Uint64("live", e.generation),
		)

		return
	}

	if len(items) == 0 {
		e.state.HasMoreItems = false
		e.logger.Info("recommendation source exhausted")

		return
	}

	e.state.Append(items)
	if len(items) < count {
		// A short page signals exhaustion, not an error.
		e.state.HasMoreItems = false
	}

	// The feed grew, so the threshold sits at a new position: re-arm even
	// if the reader has not moved off the old one.
	e.extendArmed = true

	e.logger.Debug("feed extended",
		zap.Int("appended", len(items)),
		zap.Int("length", e.state.Len()),
		zap.Bool("has_more", e.state.HasMoreItems),
	)
}

// Identity returns the identity the feed was loaded for. A refresh reuses it
// so the rebuilt feed is personalized the same way.
func (e *Engine) Identity() domain.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.identity
}

// Generation returns the live session generation.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.generation
}

// State returns a snapshot of the current feed state, or ErrNotLoaded before
// the first successful LoadInitial.
func (e *Engine) State() (*domain.FeedState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return nil, ErrNotLoaded
	}

	return e.snapshotLocked(), nil
}

// snapshotLocked copies the state so handlers can serialize it without
// racing appends. Callers must hold e.mu.
func (e *Engine) snapshotLocked() *domain.FeedState {
	items := make([]domain.ContentItem, len(e.state.Items))
	copy(items, e.state.Items)

	return &domain.FeedState{
		Items:         items,
		PrimaryCount:  e.state.PrimaryCount,
		HasMoreItems:  e.state.HasMoreItems,
		IsLoadingMore: e.state.IsLoadingMore,
	}
}

// identityLocked returns the identity used for follow-up fetches. Callers
// must hold e.mu.
func (e *Engine) identityLocked() domain.Identity {
	return e.identity
}
