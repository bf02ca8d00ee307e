package model

import "time"

// Post is a single discussion thread pulled from a source page.
type Post struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Comments  []string  `json:"comments"`
	Source    string    `json:"source"` // e.g. "reddit", "jina"
	ScrapedAt time.Time `json:"scraped_at"`
}

// Document metadata keys.
const (
	MetaURL       = "url"
	MetaTitle     = "title"
	MetaSource    = "source"
	MetaScrapedAt = "scraped_at"
	MetaProduct   = "product"
)

// Document is a unit of grounding text in the knowledge store, tagged with
// the product key it belongs to.
type Document struct {
	ID       string            `json:"id"`
	Key      string            `json:"key"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score,omitempty"` // similarity, set on query results
}

// DiscoveryCache holds cached candidate URLs for one product key.
type DiscoveryCache struct {
	Key          string    `json:"key"`
	URLs         []string  `json:"urls"`
	DiscoveredAt time.Time `json:"discovered_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
