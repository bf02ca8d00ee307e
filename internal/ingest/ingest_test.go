package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-battle/internal/config"
	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/resilience"
	"github.com/sells-group/product-battle/internal/store"
)

// memIndex is an in-memory knowledge.Index.
type memIndex struct {
	mu   sync.Mutex
	docs map[string]map[string]model.Document
}

func newMemIndex() *memIndex { return &memIndex{docs: map[string]map[string]model.Document{}} }

func (m *memIndex) Upsert(_ context.Context, docs ...model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if m.docs[d.Key] == nil {
			m.docs[d.Key] = map[string]model.Document{}
		}
		m.docs[d.Key][d.ID] = d
	}
	return nil
}

func (m *memIndex) Query(_ context.Context, key, _ string, topN int) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Document
	for _, d := range m.docs[key] {
		if len(out) == topN {
			break
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memIndex) Count(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[key]), nil
}

func (m *memIndex) Exists(_ context.Context, key, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[key][id]
	return ok, nil
}

// scriptedDiscoverer fails the first failN calls transiently.
type scriptedDiscoverer struct {
	mu    sync.Mutex
	failN int
	err   error
	urls  map[string][]string
	calls int
	terms []string
}

func (d *scriptedDiscoverer) Name() string { return "scripted" }

func (d *scriptedDiscoverer) Discover(_ context.Context, query string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.terms = append(d.terms, query)
	if d.calls <= d.failN {
		if d.err != nil {
			return nil, d.err
		}
		return nil, resilience.NewTransientError(errors.New("503 from search"), 503)
	}
	return d.urls[query], nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
}

func (e *fakeExtractor) Extract(_ context.Context, url string) (*model.Post, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[url]++
	if err := e.fail[url]; err != nil {
		return nil, err
	}
	return &model.Post{
		URL:       url,
		Title:     "Thread " + url,
		Body:      "Body of " + url,
		Comments:  []string{"nice"},
		Source:    "reddit",
		ScrapedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func thread(n int) string {
	return fmt.Sprintf("https://www.reddit.com/r/laptops/comments/%d/thread/", n)
}

func newIngestor(idx *memIndex, st store.Store, d *scriptedDiscoverer, e *fakeExtractor) *Ingestor {
	return New(idx, st, d, e, config.IngestConfig{
		MinDocuments:      3,
		MaxURLs:           25,
		Concurrency:       4,
		DiscoveryTTLHours: 24,
		ExcludePaths:      []string{"/user/*"},
	}, fastRetry())
}

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, []string{
		"lenovo legion y540",
		"lenovo legion y540 review",
		"lenovo legion y540 reddit",
	}, SearchTerms("  Lenovo  Legion Y540 "))
}

func TestEnsureIndexed_EnoughDocumentsSkipsScraping(t *testing.T) {
	idx := newMemIndex()
	for i := range 3 {
		require.NoError(t, idx.Upsert(context.Background(), model.Document{ID: fmt.Sprint(i), Key: "k", Text: "x"}))
	}
	d := &scriptedDiscoverer{}

	res, err := newIngestor(idx, nil, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")

	require.NoError(t, err)
	assert.True(t, res.FromStore)
	assert.Equal(t, 3, res.PostsIndexed)
	assert.Zero(t, d.calls)
}

func TestEnsureIndexed_DiscoversAndIndexes(t *testing.T) {
	idx := newMemIndex()
	d := &scriptedDiscoverer{urls: map[string][]string{
		"legion y540":        {thread(1), thread(2)},
		"legion y540 review": {thread(2), "https://www.reddit.com/user/bob", thread(3)},
	}}
	e := &fakeExtractor{}

	res, err := newIngestor(idx, nil, d, e).EnsureIndexed(context.Background(), "legion_y540", "Legion Y540")

	require.NoError(t, err)
	assert.Equal(t, 3, res.PostsIndexed)
	assert.Equal(t, 3, res.New)
	assert.False(t, res.FromStore)
	assert.Equal(t, []string{"legion y540", "legion y540 review", "legion y540 reddit"}, d.terms)
	assert.Len(t, e.calls, 3)
	assert.Zero(t, e.calls["https://www.reddit.com/user/bob"])

	ok, err := idx.Exists(context.Background(), "legion_y540", DocumentID(thread(1)))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureIndexed_DiscoveryRetriedThenSucceeds(t *testing.T) {
	idx := newMemIndex()
	d := &scriptedDiscoverer{failN: 2, urls: map[string][]string{"k": {thread(1)}}}

	res, err := newIngestor(idx, nil, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")

	require.NoError(t, err)
	assert.Equal(t, 1, res.PostsIndexed)
	// Two failures and a success for the first term, then one call for each
	// remaining term.
	assert.Equal(t, 5, d.calls)
}

func TestEnsureIndexed_DiscoveryExhaustedEmptyStore(t *testing.T) {
	d := &scriptedDiscoverer{failN: 1000}

	_, err := newIngestor(newMemIndex(), nil, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Equal(t, "k", model.KeyOf(err))
	assert.Equal(t, 9, d.calls)
}

func TestEnsureIndexed_DiscoveryExhaustedWithPriorDocuments(t *testing.T) {
	idx := newMemIndex()
	require.NoError(t, idx.Upsert(context.Background(), model.Document{ID: "old", Key: "k", Text: "x"}))
	d := &scriptedDiscoverer{failN: 1000}

	res, err := newIngestor(idx, nil, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")

	require.NoError(t, err)
	assert.Equal(t, 1, res.PostsIndexed)
	assert.Zero(t, res.New)
}

func TestEnsureIndexed_NonTransientDiscoveryNotRetried(t *testing.T) {
	d := &scriptedDiscoverer{failN: 1000, err: errors.New("bad query")}

	_, err := newIngestor(newMemIndex(), nil, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")

	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Equal(t, 3, d.calls)
}

func TestEnsureIndexed_ExtractionFailuresSkipped(t *testing.T) {
	idx := newMemIndex()
	d := &scriptedDiscoverer{urls: map[string][]string{"k": {thread(1), thread(2), thread(3)}}}
	e := &fakeExtractor{fail: map[string]error{
		thread(1): errors.New("malformed page"),
		thread(2): resilience.NewTransientError(errors.New("502"), 502),
	}}

	res, err := newIngestor(idx, nil, d, e).EnsureIndexed(context.Background(), "k", "K")

	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Equal(t, 1, e.calls[thread(1)])
	assert.Equal(t, 3, e.calls[thread(2)])
	assert.Equal(t, 1, e.calls[thread(3)])
}

func TestEnsureIndexed_AllExtractionsFail(t *testing.T) {
	d := &scriptedDiscoverer{urls: map[string][]string{"k": {thread(1)}}}
	e := &fakeExtractor{fail: map[string]error{thread(1): errors.New("gone")}}

	_, err := newIngestor(newMemIndex(), nil, d, e).EnsureIndexed(context.Background(), "k", "K")

	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestEnsureIndexed_SkipsAlreadyIndexed(t *testing.T) {
	idx := newMemIndex()
	require.NoError(t, idx.Upsert(context.Background(), model.Document{ID: DocumentID(thread(1)), Key: "k", Text: "x"}))
	d := &scriptedDiscoverer{urls: map[string][]string{"k": {thread(1), thread(2)}}}
	e := &fakeExtractor{}

	res, err := newIngestor(idx, nil, d, e).EnsureIndexed(context.Background(), "k", "K")

	require.NoError(t, err)
	assert.Equal(t, 2, res.PostsIndexed)
	assert.Equal(t, 1, res.New)
	assert.Zero(t, e.calls[thread(1)])
}

func TestEnsureIndexed_MaxURLs(t *testing.T) {
	var urls []string
	for i := range 10 {
		urls = append(urls, thread(i))
	}
	d := &scriptedDiscoverer{urls: map[string][]string{"k": urls}}
	e := &fakeExtractor{}
	in := New(newMemIndex(), nil, d, e, config.IngestConfig{MaxURLs: 4, Concurrency: 2}, fastRetry())

	res, err := in.EnsureIndexed(context.Background(), "k", "K")

	require.NoError(t, err)
	assert.Equal(t, 4, res.New)
	assert.Len(t, e.calls, 4)
}

func TestEnsureIndexed_DiscoveryCache(t *testing.T) {
	st := store.NewMemory()
	d := &scriptedDiscoverer{urls: map[string][]string{"k": {thread(1)}}}

	_, err := newIngestor(newMemIndex(), st, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")
	require.NoError(t, err)
	assert.Equal(t, 3, d.calls)

	cached, err := st.GetCachedDiscovery(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, []string{thread(1)}, cached.URLs)

	// A fresh index forces re-ingestion; discovery comes from the cache.
	_, err = newIngestor(newMemIndex(), st, d, &fakeExtractor{}).EnsureIndexed(context.Background(), "k", "K")
	require.NoError(t, err)
	assert.Equal(t, 3, d.calls)
}

func TestPoliteLimiter(t *testing.T) {
	l := newPoliteLimiter(1)
	l.OnRateLimit()
	assert.InDelta(t, 0.5, float64(l.Limit()), 1e-9)
	l.OnRateLimit()
	l.OnRateLimit()
	assert.InDelta(t, 0.25, float64(l.Limit()), 1e-9)
	for range 20 {
		l.OnSuccess()
	}
	assert.InDelta(t, 2.0, float64(l.Limit()), 1e-9)

	unlimited := newPoliteLimiter(0)
	unlimited.OnRateLimit()
	require.NoError(t, unlimited.Wait(context.Background()))
}

func TestEnsureIndexed_RateLimitSlowsDown(t *testing.T) {
	var n atomic.Int32
	d := &scriptedDiscoverer{urls: map[string][]string{"k": {thread(1)}}}
	e := &rateLimitedOnce{n: &n}
	in := New(newMemIndex(), nil, d, e, config.IngestConfig{RequestsPerSec: 1000}, fastRetry())

	_, err := in.EnsureIndexed(context.Background(), "k", "K")
	require.NoError(t, err)
	assert.Equal(t, int32(2), n.Load())
	assert.Less(t, float64(in.limiter.Limit()), 1000.0)
}

type rateLimitedOnce struct{ n *atomic.Int32 }

func (r *rateLimitedOnce) Extract(_ context.Context, url string) (*model.Post, error) {
	if r.n.Add(1) == 1 {
		return nil, resilience.StatusError("reddit", 429)
	}
	return &model.Post{URL: url, Title: "t"}, nil
}
