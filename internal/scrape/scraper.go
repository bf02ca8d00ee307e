// Package scrape discovers discussion threads for a product and extracts
// their content, falling back across sources.
package scrape

import (
	"context"

	"github.com/sells-group/product-battle/internal/model"
)

// Extractor fetches one thread URL and returns its content.
type Extractor interface {
	Extract(ctx context.Context, url string) (*model.Post, error)
	Name() string
	Supports(url string) bool
}

// Discoverer turns a search query into candidate thread URLs.
type Discoverer interface {
	Discover(ctx context.Context, query string) ([]string, error)
	Name() string
}
