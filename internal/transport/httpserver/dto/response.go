package dto

import (
	"sort"
	"time"

	"feed-engine-service/internal/app/session"
	"feed-engine-service/internal/domain"
)

// ItemResponse represents a single feed item in the response.
type ItemResponse struct {
	ID          string `json:"id"`
	CompositeID string `json:"composite_id"`
	Source      string `json:"source"`
	IsAdSlot    bool   `json:"is_ad_slot"`
	Title       string `json:"title,omitempty"`
	Teaser      string `json:"teaser,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Section     string `json:"section,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// FromDomainItem converts a domain.ContentItem to ItemResponse.
func FromDomainItem(item *domain.ContentItem) ItemResponse {
	publishedAt := ""
	if !item.PublishedAt.IsZero() {
		publishedAt = item.PublishedAt.Format(time.RFC3339)
	}

	return ItemResponse{
		ID:          item.ID,
		CompositeID: item.CompositeID(),
		Source:      string(item.Source),
		IsAdSlot:    item.IsAdSlot,
		Title:       item.Title,
		Teaser:      item.Teaser,
		ImageURL:    item.ImageURL,
		Section:     item.Section,
		PublishedAt: publishedAt,
	}
}

// AdSlotResponse is one ad slot's position and lifecycle state.
type AdSlotResponse struct {
	Position int    `json:"position"`
	State    string `json:"state"`
}

// FromSlotStates converts the slot state map into a position-sorted list.
func FromSlotStates(states map[int]domain.SlotState) []AdSlotResponse {
	slots := make([]AdSlotResponse, 0, len(states))
	for pos, state := range states {
		slots = append(slots, AdSlotResponse{Position: pos, State: string(state)})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Position < slots[j].Position })

	return slots
}

// SessionResponse represents one session's full state.
type SessionResponse struct {
	SessionID     string           `json:"session_id"`
	Items         []ItemResponse   `json:"items"`
	PrimaryCount  int              `json:"primary_count"`
	HasMoreItems  bool             `json:"has_more_items"`
	IsLoadingMore bool             `json:"is_loading_more"`
	Generation    uint64           `json:"generation"`
	AdSlots       []AdSlotResponse `json:"ad_slots"`
}

// FromSnapshot converts a session snapshot to SessionResponse.
func FromSnapshot(snap *session.Snapshot) SessionResponse {
	items := make([]ItemResponse, len(snap.Feed.Items))
	for i := range snap.Feed.Items {
		items[i] = FromDomainItem(&snap.Feed.Items[i])
	}

	return SessionResponse{
		SessionID:     snap.ID,
		Items:         items,
		PrimaryCount:  snap.Feed.PrimaryCount,
		HasMoreItems:  snap.Feed.HasMoreItems,
		IsLoadingMore: snap.Feed.IsLoadingMore,
		Generation:    snap.Generation,
		AdSlots:       FromSlotStates(snap.SlotStates),
	}
}

// PositionResponse reports the outcome of a position update.
type PositionResponse struct {
	ExtensionTriggered bool `json:"extension_triggered"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}
