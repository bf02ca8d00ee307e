// Package cache guards analysis builds so each product key is built by at
// most one caller at a time, and keeps Ready records across restarts.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/store"
)

// BuildFunc produces a fresh record. It runs on a context detached from
// the caller's cancellation and bounded by the build timeout.
type BuildFunc func(ctx context.Context) (*model.AnalysisRecord, error)

// DefaultBuildTimeout bounds one build when no timeout is configured.
const DefaultBuildTimeout = 10 * time.Minute

// Cache is the key -> record map shared by all comparisons.
type Cache struct {
	store        store.Store
	buildTimeout time.Duration
	group        singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry

	hits     atomic.Int64
	loads    atomic.Int64
	builds   atomic.Int64
	failures atomic.Int64
}

type entry struct {
	state     model.EntryState
	rec       *model.AnalysisRecord
	err       error
	updatedAt time.Time
	// gen is bumped by Invalidate; a build only commits if gen is unchanged.
	gen uint64
	// persist serializes store writes for the key with Invalidate, so a
	// generation check and the write it guards are never split.
	persist sync.Mutex
}

// New creates a cache over st. buildTimeout <= 0 uses DefaultBuildTimeout.
func New(st store.Store, buildTimeout time.Duration) *Cache {
	if buildTimeout <= 0 {
		buildTimeout = DefaultBuildTimeout
	}
	return &Cache{
		store:        st,
		buildTimeout: buildTimeout,
		entries:      make(map[string]*entry),
	}
}

// Warm loads every valid persisted record into memory as Ready and returns
// how many it loaded.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	recs, err := c.store.ListAnalyses(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "cache: warm")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range recs {
		rec := recs[i]
		if err := validate(rec.Key, &rec); err != nil {
			zap.L().Warn("cache: skipping invalid persisted record", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		n++
		e := c.entryLocked(rec.Key)
		if e.state == model.EntryBuilding {
			continue
		}
		e.state, e.rec, e.err, e.updatedAt = model.EntryReady, &rec, nil, time.Now()
	}
	return n, nil
}

// GetOrBuild returns the Ready record for key, or joins (or starts) the
// single in-flight build for it. If ctx ends first the caller gets a
// TimeoutError while the build carries on and still commits.
func (c *Cache) GetOrBuild(ctx context.Context, key string, build BuildFunc) (*model.AnalysisRecord, error) {
	if rec := c.ready(key); rec != nil {
		c.hits.Add(1)
		return rec, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.build(detached, key, build)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.AnalysisRecord), nil
	case <-ctx.Done():
		zap.L().Warn("cache: caller gave up waiting, build continues",
			zap.String("key", key),
			zap.Error(ctx.Err()),
		)
		terr := model.TimeoutError(ctx.Err())
		terr.Key = key
		return nil, terr
	}
}

func (c *Cache) ready(key string) *model.AnalysisRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.state == model.EntryReady {
		return e.rec
	}
	return nil
}

// build runs inside the single flight for key.
func (c *Cache) build(parent context.Context, key string, fn BuildFunc) (rec *model.AnalysisRecord, err error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if e.state == model.EntryReady {
		rec := e.rec
		c.mu.Unlock()
		return rec, nil
	}
	gen := e.gen
	e.state, e.err, e.updatedAt = model.EntryBuilding, nil, time.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, c.buildTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, eris.Errorf("cache: build for %s panicked: %v", key, r)
			c.fail(key, gen, err)
		}
	}()

	if persisted := c.loadPersisted(ctx, e, key, gen); persisted != nil {
		return persisted, nil
	}

	start := time.Now()
	c.builds.Add(1)
	rec, err = fn(ctx)
	if err == nil {
		err = validate(key, rec)
	}
	if err != nil {
		c.fail(key, gen, err)
		zap.L().Warn("cache: build failed",
			zap.String("key", key),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := c.commit(ctx, e, key, gen, rec); err != nil {
		c.fail(key, gen, err)
		return nil, err
	}
	zap.L().Info("cache: build committed",
		zap.String("key", key),
		zap.Int("score", rec.SentimentScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}

func validate(key string, rec *model.AnalysisRecord) error {
	if rec == nil {
		return eris.Errorf("cache: build for %s returned no record", key)
	}
	if rec.Key != key {
		return eris.Errorf("cache: build for %s returned record for %s", key, rec.Key)
	}
	if !model.ValidScore(rec.SentimentScore) {
		return model.InvalidScoreError(key, fmt.Sprintf("sentiment_score %d is outside [0,100]", rec.SentimentScore))
	}
	return nil
}

// loadPersisted returns a valid stored record for key and marks it Ready.
// Lookup errors and invalid rows count as a miss.
func (c *Cache) loadPersisted(ctx context.Context, e *entry, key string, gen uint64) *model.AnalysisRecord {
	e.persist.Lock()
	defer e.persist.Unlock()

	persisted, err := c.store.GetAnalysis(ctx, key)
	if err != nil {
		zap.L().Warn("cache: persisted lookup failed, rebuilding", zap.String("key", key), zap.Error(err))
		return nil
	}
	if persisted == nil {
		return nil
	}
	if err := validate(key, persisted); err != nil {
		zap.L().Warn("cache: persisted record invalid, rebuilding", zap.String("key", key), zap.Error(err))
		return nil
	}
	c.loads.Add(1)
	c.commitMemory(key, gen, persisted)
	return persisted
}

// commit persists rec then marks it Ready. A build superseded by Invalidate
// is delivered to its waiters but never written.
func (c *Cache) commit(ctx context.Context, e *entry, key string, gen uint64, rec *model.AnalysisRecord) error {
	e.persist.Lock()
	defer e.persist.Unlock()

	if !c.current(key, gen) {
		return nil
	}
	if err := c.store.PutAnalysis(ctx, rec); err != nil {
		return eris.Wrapf(err, "cache: persist %s", key)
	}
	// Invalidate cannot bump gen while persist is held.
	c.commitMemory(key, gen, rec)
	return nil
}

func (c *Cache) commitMemory(key string, gen uint64, rec *model.AnalysisRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	if e.gen != gen {
		return
	}
	e.state, e.rec, e.err, e.updatedAt = model.EntryReady, rec, nil, time.Now()
}

func (c *Cache) fail(key string, gen uint64, err error) {
	c.failures.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	if e.gen != gen {
		return
	}
	e.state, e.rec, e.err, e.updatedAt = model.EntryFailed, nil, err, time.Now()
}

func (c *Cache) current(key string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryLocked(key).gen == gen
}

// entryLocked must be called with mu held.
func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{state: model.EntryEmpty}
		c.entries[key] = e
	}
	return e
}

// Invalidate forces key back to Empty and removes its persisted record. An
// in-flight build still answers its waiters but is not committed, and the
// next GetOrBuild starts a fresh build. A store write already under way for
// key finishes first and is then removed.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	e := c.entryLocked(key)
	c.mu.Unlock()

	e.persist.Lock()
	c.mu.Lock()
	e.gen++
	e.state, e.rec, e.err, e.updatedAt = model.EntryEmpty, nil, nil, time.Now()
	c.mu.Unlock()
	err := c.store.DeleteAnalysis(ctx, key)
	e.persist.Unlock()

	c.group.Forget(key)
	if err != nil {
		return eris.Wrapf(err, "cache: invalidate %s", key)
	}
	zap.L().Info("cache: invalidated", zap.String("key", key))
	return nil
}

// Peek reports the in-memory state of key without building. Records only
// on disk read as Empty until loaded by Warm or GetOrBuild.
func (c *Cache) Peek(key string) model.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return model.CacheEntry{Key: key, State: model.EntryEmpty}
	}
	return model.CacheEntry{Key: key, State: e.state, Record: e.rec, Err: e.err, UpdatedAt: e.updatedAt}
}

// List returns all persisted records sorted by key.
func (c *Cache) List(ctx context.Context) ([]model.AnalysisRecord, error) {
	recs, err := c.store.ListAnalyses(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cache: list")
	}
	return recs, nil
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries  map[model.EntryState]int `json:"entries"`
	Hits     int64                    `json:"hits"`
	Loads    int64                    `json:"loads"`
	Builds   int64                    `json:"builds"`
	Failures int64                    `json:"failures"`
}

// Stats counts entries per state plus lifetime hit/build counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Entries: map[model.EntryState]int{
			model.EntryEmpty:    0,
			model.EntryBuilding: 0,
			model.EntryReady:    0,
			model.EntryFailed:   0,
		},
		Hits:     c.hits.Load(),
		Loads:    c.loads.Load(),
		Builds:   c.builds.Load(),
		Failures: c.failures.Load(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		s.Entries[e.state]++
	}
	return s
}
