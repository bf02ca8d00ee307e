package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/product-battle/internal/model"
)

// MemoryStore is a process-local Store for tests and one-shot CLI runs.
type MemoryStore struct {
	mu        sync.RWMutex
	analyses  map[string]model.AnalysisRecord
	discovery map[string]model.DiscoveryCache
	now       func() time.Time
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		analyses:  make(map[string]model.AnalysisRecord),
		discovery: make(map[string]model.DiscoveryCache),
		now:       time.Now,
	}
}

func (s *MemoryStore) GetAnalysis(_ context.Context, key string) (*model.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.analyses[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) PutAnalysis(_ context.Context, rec *model.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[rec.Key] = *rec
	return nil
}

func (s *MemoryStore) DeleteAnalysis(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyses, key)
	return nil
}

func (s *MemoryStore) ListAnalyses(context.Context) ([]model.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AnalysisRecord, 0, len(s.analyses))
	for _, rec := range s.analyses {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) GetCachedDiscovery(_ context.Context, key string) (*model.DiscoveryCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dc, ok := s.discovery[key]
	if !ok || !dc.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	return &dc, nil
}

func (s *MemoryStore) SetCachedDiscovery(_ context.Context, key string, urls []string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.discovery[key] = model.DiscoveryCache{
		Key:          key,
		URLs:         append([]string(nil), urls...),
		DiscoveredAt: now,
		ExpiresAt:    now.Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }
