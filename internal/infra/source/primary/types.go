package primary

import (
	"time"

	"feed-engine-service/internal/domain"
)

// Response represents the JSON response from the primary catalog.
type Response struct {
	Items []Item `json:"items"`
}

// Item represents a single catalog entry. The catalog interleaves ad
// placeholders with editorial content per its layout policy; placeholders
// arrive with is_ad_slot set and no payload.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Teaser      string `json:"teaser"`
	ImageURL    string `json:"image_url"`
	Section     string `json:"section"`
	IsAdSlot    bool   `json:"is_ad_slot"`
	PublishedAt string `json:"published_at"`
}

// ToDomain converts an Item to a domain.ContentItem.
func (i *Item) ToDomain() domain.ContentItem {
	publishedAt, _ := time.Parse(time.RFC3339, i.PublishedAt)

	return domain.ContentItem{
		ID:          i.ID,
		Source:      domain.SourcePrimary,
		IsAdSlot:    i.IsAdSlot,
		Title:       i.Title,
		Teaser:      i.Teaser,
		ImageURL:    i.ImageURL,
		Section:     i.Section,
		PublishedAt: publishedAt,
	}
}
