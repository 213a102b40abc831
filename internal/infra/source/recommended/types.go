package recommended

import (
	"time"

	"feed-engine-service/internal/domain"
)

// Request is the JSON body sent to the recommendation service.
type Request struct {
	Count      int      `json:"count"`
	ExcludeIDs []string `json:"exclude_ids"`
	UserID     string   `json:"user_id,omitempty"`
	Authed     bool     `json:"authenticated"`
}

// Response represents the JSON response from the recommendation service.
type Response struct {
	Items []Item `json:"items"`
}

// Item represents a single recommended entry.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Teaser      string  `json:"teaser"`
	ImageURL    string  `json:"image_url"`
	Section     string  `json:"section"`
	Score       float64 `json:"score"`
	PublishedAt string  `json:"published_at"`
}

// ToDomain converts an Item to a domain.ContentItem. The service returns
// items ranked; their slice order is preserved, never re-sorted here.
func (i *Item) ToDomain() domain.ContentItem {
	publishedAt, _ := time.Parse(time.RFC3339, i.PublishedAt)

	return domain.ContentItem{
		ID:          i.ID,
		Source:      domain.SourceRecommended,
		Title:       i.Title,
		Teaser:      i.Teaser,
		ImageURL:    i.ImageURL,
		Section:     i.Section,
		PublishedAt: publishedAt,
	}
}
