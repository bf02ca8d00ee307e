// Package ingest makes sure the knowledge store holds discussion documents
// for a product before it is analysed.
package ingest

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-battle/internal/config"
	"github.com/sells-group/product-battle/internal/knowledge"
	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/resilience"
	"github.com/sells-group/product-battle/internal/scrape"
	"github.com/sells-group/product-battle/internal/store"
)

// Extractor fetches one thread.
type Extractor interface {
	Extract(ctx context.Context, url string) (*model.Post, error)
}

// Result summarises one EnsureIndexed call.
type Result struct {
	// PostsIndexed is the number of documents held for the key afterwards.
	PostsIndexed int `json:"posts_indexed"`
	// New is how many of those were added by this call.
	New int `json:"new"`
	// FromStore is true when the store already met the threshold and no
	// scraping happened.
	FromStore bool `json:"from_store"`
}

// Ingestor drives discovery, extraction and indexing for one product.
type Ingestor struct {
	index    knowledge.Index
	store    store.Store
	discover scrape.Discoverer
	extract  Extractor
	matcher  *scrape.PathMatcher
	retry    resilience.RetryConfig
	limiter  *politeLimiter
	cfg      config.IngestConfig
	cacheTTL time.Duration
}

// New creates an Ingestor. st caches discovery results and may be nil.
func New(index knowledge.Index, st store.Store, disc scrape.Discoverer, ext Extractor, cfg config.IngestConfig, retry resilience.RetryConfig) *Ingestor {
	if cfg.MinDocuments <= 0 {
		cfg.MinDocuments = 3
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 25
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Ingestor{
		index:    index,
		store:    st,
		discover: disc,
		extract:  ext,
		matcher:  scrape.NewPathMatcher(cfg.ExcludePaths),
		retry:    retry,
		limiter:  newPoliteLimiter(cfg.RequestsPerSec),
		cfg:      cfg,
		cacheTTL: time.Duration(cfg.DiscoveryTTLHours) * time.Hour,
	}
}

// SearchTerms returns the discovery queries for a product name.
func SearchTerms(displayName string) []string {
	base := strings.ToLower(strings.Join(strings.Fields(displayName), " "))
	return []string{base, base + " review", base + " reddit"}
}

// EnsureIndexed returns immediately when key already has enough documents.
// Otherwise it discovers and extracts threads, indexing every one that
// succeeds. It fails with InsufficientDataError only when the store is
// still empty for key afterwards.
func (in *Ingestor) EnsureIndexed(ctx context.Context, key, displayName string) (*Result, error) {
	log := zap.L().With(zap.String("key", key))

	have, err := in.index.Count(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: count documents")
	}
	if have >= in.cfg.MinDocuments {
		log.Debug("ingest: enough documents already indexed", zap.Int("documents", have))
		return &Result{PostsIndexed: have, FromStore: true}, nil
	}

	start := time.Now()
	urls, discErr := in.candidates(ctx, key, displayName)

	pending, err := in.unindexed(ctx, key, urls)
	if err != nil {
		return nil, err
	}
	added := in.extractAll(ctx, key, displayName, pending)

	total, err := in.index.Count(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: count documents")
	}
	if total == 0 {
		cause := discErr
		if cause == nil {
			cause = ctx.Err()
		}
		return nil, model.InsufficientDataError(key, cause)
	}

	log.Info("ingest: complete",
		zap.Int("candidates", len(urls)),
		zap.Int("new", added),
		zap.Int("documents", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{PostsIndexed: total, New: added}, nil
}

// candidates returns de-duplicated, filtered thread URLs, from the
// discovery cache when fresh. The error is the last discovery failure when
// every search term failed.
func (in *Ingestor) candidates(ctx context.Context, key, displayName string) ([]string, error) {
	log := zap.L().With(zap.String("key", key))

	if in.store != nil {
		cached, err := in.store.GetCachedDiscovery(ctx, key)
		if err != nil {
			log.Warn("ingest: discovery cache read failed", zap.Error(err))
		} else if cached != nil && len(cached.URLs) > 0 {
			log.Debug("ingest: using cached discovery", zap.Int("urls", len(cached.URLs)))
			return in.limit(cached.URLs), nil
		}
	}

	var (
		all      []string
		lastErr  error
		failures int
	)
	terms := SearchTerms(displayName)
	for _, term := range terms {
		retry := in.retry
		retry.OnRetry = resilience.RetryLogger("discover", term)
		urls, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]string, error) {
			return in.discover.Discover(ctx, term)
		})
		if err != nil {
			failures++
			lastErr = err
			log.Warn("ingest: discovery failed for term", zap.String("term", term), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		all = append(all, urls...)
	}

	urls := in.limit(all)
	if len(urls) > 0 && in.store != nil && in.cacheTTL > 0 {
		if err := in.store.SetCachedDiscovery(ctx, key, urls, in.cacheTTL); err != nil {
			log.Warn("ingest: discovery cache write failed", zap.Error(err))
		}
	}
	if failures == len(terms) {
		return urls, lastErr
	}
	return urls, nil
}

// limit de-duplicates in order, drops excluded paths and caps at MaxURLs.
func (in *Ingestor) limit(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range in.matcher.Filter(urls) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == in.cfg.MaxURLs {
			break
		}
	}
	return out
}

// unindexed drops URLs whose document is already stored for key.
func (in *Ingestor) unindexed(ctx context.Context, key string, urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		ok, err := in.index.Exists(ctx, key, DocumentID(u))
		if err != nil {
			return nil, eris.Wrap(err, "ingest: check indexed")
		}
		if !ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// extractAll fetches and indexes urls with bounded concurrency. Failed URLs
// are skipped. Returns the number indexed.
func (in *Ingestor) extractAll(ctx context.Context, key, displayName string, urls []string) int {
	var added atomic.Int64
	var g errgroup.Group
	g.SetLimit(in.cfg.Concurrency)

	for _, u := range urls {
		g.Go(func() error {
			log := zap.L().With(zap.String("key", key), zap.String("url", u))

			retry := in.retry
			retry.OnRetry = resilience.RetryLogger("extract", u)
			post, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*model.Post, error) {
				if err := in.limiter.Wait(ctx); err != nil {
					return nil, err
				}
				post, err := in.extract.Extract(ctx, u)
				if resilience.IsRateLimited(err) {
					in.limiter.OnRateLimit()
				}
				return post, err
			})
			if err != nil {
				log.Warn("ingest: skipping thread", zap.Error(err))
				return nil
			}
			in.limiter.OnSuccess()

			if err := in.index.Upsert(ctx, renderDocument(key, displayName, post)); err != nil {
				log.Warn("ingest: index write failed", zap.Error(err))
				return nil
			}
			added.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(added.Load())
}
