package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/analysis"
	"github.com/sells-group/product-battle/internal/cache"
	"github.com/sells-group/product-battle/internal/config"
	"github.com/sells-group/product-battle/internal/ingest"
	"github.com/sells-group/product-battle/internal/knowledge"
	"github.com/sells-group/product-battle/internal/llm"
	"github.com/sells-group/product-battle/internal/monitoring"
	"github.com/sells-group/product-battle/internal/orchestrator"
	"github.com/sells-group/product-battle/internal/resilience"
	"github.com/sells-group/product-battle/internal/scrape"
	"github.com/sells-group/product-battle/internal/store"
	"github.com/sells-group/product-battle/pkg/jina"
	"github.com/sells-group/product-battle/pkg/reddit"
)

// battleEnv holds the initialized store, knowledge index and orchestrator
// shared by the compare/analyze/ingest/serve commands.
type battleEnv struct {
	Store        store.Store
	Index        *knowledge.SQLiteIndex
	Breakers     *resilience.Breakers
	Orchestrator *orchestrator.Orchestrator
}

// Close releases resources held by the environment.
func (e *battleEnv) Close() {
	if e.Index != nil {
		_ = e.Index.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Collector returns a health collector over the environment's cache, store
// and circuit breakers.
func (e *battleEnv) Collector() *monitoring.Collector {
	return monitoring.NewCollector(e.Orchestrator.Cache(), e.Store, e.Breakers)
}

// initEnv sets up the store, knowledge index, scrapers and LLM, and builds
// the Orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*battleEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	index, err := initIndex(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	completer, err := llm.New(ctx, cfg)
	if err != nil {
		_ = index.Close()
		_ = st.Close()
		return nil, eris.Wrap(err, "init llm")
	}

	breakers := resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         60 * time.Second,
	})
	discoverer, extractor := initScrapers(breakers)

	ing := ingest.New(index, st, discoverer, extractor, cfg.Ingest, resilience.FromConfig(cfg.Retry))
	builder := analysis.NewBuilder(index, completer, cfg.Analysis)
	c := cache.New(st, time.Duration(cfg.Cache.BuildTimeoutSecs)*time.Second)

	if n, err := c.Warm(ctx); err != nil {
		zap.L().Warn("cache warm failed, starting cold", zap.Error(err))
	} else {
		zap.L().Info("cache warmed", zap.Int("records", n))
	}

	orch := orchestrator.New(c, ing, builder, time.Duration(cfg.Compare.TimeoutSecs)*time.Second)
	zap.L().Info("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("embedder", cfg.Knowledge.Embedder),
		zap.String("llm", completer.Model()),
	)

	return &battleEnv{
		Store:        st,
		Index:        index,
		Breakers:     breakers,
		Orchestrator: orch,
	}, nil
}

// openStore opens the configured store and applies its schema.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "battle.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	case "redis":
		return store.NewRedis(ctx, store.RedisConfig{
			Addr:   cfg.Store.RedisAddr,
			Prefix: cfg.Store.RedisPrefix,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initIndex(ctx context.Context) (*knowledge.SQLiteIndex, error) {
	var embedder knowledge.Embedder
	switch cfg.Knowledge.Embedder {
	case "gemini":
		g, err := knowledge.NewGeminiEmbedder(ctx, cfg.Gemini.Key, cfg.Knowledge.EmbeddingModel)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini embedder")
		}
		embedder = g
	default:
		embedder = knowledge.NewHashEmbedder(cfg.Knowledge.HashDims)
	}

	index, err := knowledge.NewSQLiteIndex(cfg.Knowledge.Path, embedder)
	if err != nil {
		return nil, eris.Wrap(err, "open knowledge index")
	}
	return index, nil
}

// initScrapers builds the discovery and extraction chains: Reddit HTML
// primary, Jina fallback behind a shared circuit breaker.
func initScrapers(breakers *resilience.Breakers) (scrape.Discoverer, ingest.Extractor) {
	redditClient := reddit.NewClient(redditOptions(cfg.Reddit)...)
	redditAdapter := scrape.NewRedditAdapter(redditClient)

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaAdapter := scrape.NewJinaAdapterWithBreaker(
		jina.NewClient(cfg.Jina.Key, jinaOpts...), "reddit.com", breakers.Get("jina"),
	)

	matcher := scrape.NewPathMatcher(cfg.Ingest.ExcludePaths)
	return scrape.NewDiscoveryChain(redditAdapter, jinaAdapter),
		scrape.NewChain(matcher, redditAdapter, jinaAdapter)
}

func redditOptions(rc config.RedditConfig) []reddit.Option {
	var opts []reddit.Option
	if rc.BaseURL != "" {
		opts = append(opts, reddit.WithBaseURL(rc.BaseURL))
	}
	if rc.UserAgent != "" {
		opts = append(opts, reddit.WithUserAgent(rc.UserAgent))
	}
	if rc.TimeoutSecs > 0 {
		opts = append(opts, reddit.WithHTTPClient(&http.Client{Timeout: time.Duration(rc.TimeoutSecs) * time.Second}))
	}
	return opts
}
