// Package domain contains the core feed entities and lifecycle state machines.
// This package has no external dependencies (only stdlib).
package domain

import (
	"time"
)

// Source identifies which upstream a feed item came from.
type Source string

const (
	SourcePrimary     Source = "primary"
	SourceRecommended Source = "recommended"
)

// ContentItem is one unit of feed content.
//
// An item's position in FeedState.Items is its sort key: the feed preserves
// insertion order and is never re-sorted by score or recency.
type ContentItem struct {
	// ID is unique within its source namespace only; use CompositeID for a
	// feed-wide identifier.
	ID     string `json:"id"`
	Source Source `json:"source"`

	// IsAdSlot marks an injected ad placeholder, which carries no content
	// payload. The slot registry is derived from these at load time.
	IsAdSlot bool `json:"is_ad_slot"`

	Title    string `json:"title,omitempty"`
	Teaser   string `json:"teaser,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Section  string `json:"section,omitempty"`

	PublishedAt time.Time `json:"published_at,omitempty"`
}

// CompositeID returns the feed-wide unique identifier, prefixing the raw ID
// with its source namespace. These are the ids stored in the exclusion set
// and sent to the recommendation service.
func (i *ContentItem) CompositeID() string {
	switch i.Source {
	case SourceRecommended:
		return "r-" + i.ID
	default:
		return "p-" + i.ID
	}
}

// IsPrimary returns true for items sourced from the primary catalog.
func (i *ContentItem) IsPrimary() bool {
	return i.Source == SourcePrimary
}

// LeadingPrimaryCount returns the length of the contiguous run of
// primary-or-ad items at the head of the feed, stopping at the first
// recommended item. Progress indicators are computed against this count.
func LeadingPrimaryCount(items []ContentItem) int {
	count := 0
	for _, item := range items {
		if !item.IsAdSlot && item.Source == SourceRecommended {
			break
		}
		count++
	}

	return count
}

// AdSlotPositions returns the feed positions of every ad placeholder.
func AdSlotPositions(items []ContentItem) []int {
	positions := []int{}
	for i, item := range items {
		if item.IsAdSlot {
			positions = append(positions, i)
		}
	}

	return positions
}
