// Package store persists analysis records and per-product discovery results.
package store

import (
	"context"
	"time"

	"github.com/sells-group/product-battle/internal/model"
)

// Store is the durable backing for the analysis cache. Only Ready records
// are ever written; build state lives in memory.
type Store interface {
	// Analyses. GetAnalysis returns (nil, nil) on a miss.
	GetAnalysis(ctx context.Context, key string) (*model.AnalysisRecord, error)
	PutAnalysis(ctx context.Context, rec *model.AnalysisRecord) error
	DeleteAnalysis(ctx context.Context, key string) error
	ListAnalyses(ctx context.Context) ([]model.AnalysisRecord, error)

	// Discovery cache. GetCachedDiscovery returns (nil, nil) when absent
	// or expired.
	GetCachedDiscovery(ctx context.Context, key string) (*model.DiscoveryCache, error)
	SetCachedDiscovery(ctx context.Context, key string, urls []string, ttl time.Duration) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
