package scrape

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/model"
)

// Chain tries extractors in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher
	extractors  []Extractor
}

// NewChain creates a Chain with the given path matcher and extractors.
func NewChain(matcher *PathMatcher, extractors ...Extractor) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{PathMatcher: matcher, extractors: extractors}
}

// Extract tries each supporting extractor in order for one URL. The last
// failure is returned with %w so callers can still classify it as
// transient.
func (c *Chain) Extract(ctx context.Context, targetURL string) (*model.Post, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded by path matcher: %s", targetURL)
	}

	var lastErr error
	for _, e := range c.extractors {
		if !e.Supports(targetURL) {
			continue
		}
		post, err := e.Extract(ctx, targetURL)
		if err == nil && post != nil {
			return post, nil
		}
		if err != nil {
			zap.L().Debug("scrape: extractor failed, trying next",
				zap.String("extractor", e.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("scrape: all extractors failed for %s: %w", targetURL, lastErr)
	}
	return nil, eris.Errorf("scrape: no suitable extractor for url: %s", targetURL)
}

// DiscoveryChain asks discoverers in order and returns the first non-empty
// result. An error is returned only when every discoverer failed.
type DiscoveryChain struct {
	discoverers []Discoverer
}

// NewDiscoveryChain creates a DiscoveryChain.
func NewDiscoveryChain(discoverers ...Discoverer) *DiscoveryChain {
	return &DiscoveryChain{discoverers: discoverers}
}

func (d *DiscoveryChain) Name() string { return "chain" }

// Discover returns candidate URLs for query.
func (d *DiscoveryChain) Discover(ctx context.Context, query string) ([]string, error) {
	var (
		lastErr  error
		failures int
	)
	for _, disc := range d.discoverers {
		urls, err := disc.Discover(ctx, query)
		if err != nil {
			zap.L().Debug("scrape: discoverer failed, trying next",
				zap.String("discoverer", disc.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			failures++
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	if failures > 0 && failures == len(d.discoverers) {
		return nil, fmt.Errorf("scrape: all discoverers failed for %q: %w", query, lastErr)
	}
	return nil, nil
}
