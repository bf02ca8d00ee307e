package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/resilience"
	"github.com/sells-group/product-battle/pkg/jina"
)

// JinaAdapter uses Jina Search for discovery and Jina Reader for
// extraction. Both paths share one circuit breaker so a failing upstream
// is skipped quickly.
type JinaAdapter struct {
	client  jina.Client
	site    string
	breaker *resilience.CircuitBreaker
}

// NewJinaAdapter creates a JinaAdapter restricted to site (e.g. "reddit.com").
// Three tripping failures open the circuit for 60s.
func NewJinaAdapter(client jina.Client, site string) *JinaAdapter {
	return NewJinaAdapterWithBreaker(client, site, resilience.NewCircuitBreaker("jina", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         60 * time.Second,
	}))
}

// NewJinaAdapterWithBreaker creates a JinaAdapter guarded by cb, typically
// one taken from a shared resilience.Breakers registry.
func NewJinaAdapterWithBreaker(client jina.Client, site string, cb *resilience.CircuitBreaker) *JinaAdapter {
	return &JinaAdapter{client: client, site: site, breaker: cb}
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

func (j *JinaAdapter) Discover(ctx context.Context, query string) ([]string, error) {
	var opts []jina.SearchOption
	if j.site != "" {
		opts = append(opts, jina.WithSiteFilter(j.site))
	}
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.SearchResponse, error) {
		return j.client.Search(ctx, query, opts...)
	})
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, r := range resp.Data {
		if strings.Contains(r.URL, "/comments/") {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

func (j *JinaAdapter) Extract(ctx context.Context, target string) (*model.Post, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		return j.client.Read(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	if needsFallback(resp) {
		return nil, eris.Errorf("jina: unusable content for %s", target)
	}

	title := strings.TrimSpace(resp.Data.Title)
	if title == "" {
		title = "No title"
	}
	return &model.Post{
		URL:       target,
		Title:     title,
		Body:      strings.TrimSpace(resp.Data.Content),
		Comments:  []string{},
		Source:    "jina",
		ScrapedAt: time.Now().UTC(),
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"attention required",
	"captcha",
}

// needsFallback reports whether a Reader response is empty or a bot
// challenge page rather than thread content.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil || (resp.Code != 0 && resp.Code != 200) {
		return true
	}
	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
	}
	return false
}
