package domain

// FeedState is the ordered feed of one screen session.
//
// Items is append-only for the lifetime of a session; a refresh replaces the
// whole state wholesale (new generation). It is never partially mutated
// except by append.
type FeedState struct {
	Items []ContentItem `json:"items"`

	// PrimaryCount is the length of the leading primary/ad run, computed
	// once at initial load and fixed thereafter.
	PrimaryCount int `json:"primary_count"`

	// LoadedExclusionIDs holds composite ids already shown, passed to the
	// recommendation service so it never repeats an item. Grows
	// monotonically; sessions are bounded by screen lifetime, so no
	// eviction is applied.
	LoadedExclusionIDs map[string]struct{} `json:"-"`

	// HasMoreItems turns false once the recommendation service returns an
	// empty or short page, and never turns true again within a session.
	HasMoreItems bool `json:"has_more_items"`

	// IsLoadingMore guards extension: true only while one extension request
	// is in flight.
	IsLoadingMore bool `json:"is_loading_more"`
}

// NewFeedState builds the state for a freshly loaded feed. Exclusion ids are
// seeded from every recommended item present in the initial load.
func NewFeedState(items []ContentItem) *FeedState {
	s := &FeedState{
		Items:              items,
		PrimaryCount:       LeadingPrimaryCount(items),
		LoadedExclusionIDs: make(map[string]struct{}),
		HasMoreItems:       true,
	}
	for _, item := range items {
		if item.Source == SourceRecommended {
			s.LoadedExclusionIDs[item.CompositeID()] = struct{}{}
		}
	}

	return s
}

// ExclusionList returns every id the recommendation service must not repeat:
// all primary composite ids plus everything already excluded.
func (s *FeedState) ExclusionList() []string {
	ids := make([]string, 0, len(s.Items)+len(s.LoadedExclusionIDs))
	for i := range s.Items {
		item := &s.Items[i]
		if item.IsAdSlot {
			continue
		}
		if item.Source == SourcePrimary {
			ids = append(ids, item.CompositeID())
		}
	}
	for id := range s.LoadedExclusionIDs {
		ids = append(ids, id)
	}

	return ids
}

// Append adds recommended items to the feed and unions their ids into the
// exclusion set.
func (s *FeedState) Append(items []ContentItem) {
	for i := range items {
		items[i].Source = SourceRecommended
	}
	s.Items = append(s.Items, items...)
	for i := range items {
		s.LoadedExclusionIDs[items[i].CompositeID()] = struct{}{}
	}
}

// Len returns the current feed length.
func (s *FeedState) Len() int {
	return len(s.Items)
}
