package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/product-battle/internal/cache"
)

// Snapshot holds a point-in-time view of service health.
type Snapshot struct {
	Cache            cache.Stats `json:"cache"`
	BuildFailureRate float64     `json:"build_failure_rate"`

	StoreOK        bool   `json:"store_ok"`
	StoreError     string `json:"store_error,omitempty"`
	StoreLatencyMs int64  `json:"store_latency_ms"`

	// Breakers maps upstream source name to circuit state.
	Breakers map[string]string `json:"breakers"`

	CollectedAt time.Time `json:"collected_at"`
}

// StatsSource reports analysis cache activity.
type StatsSource interface {
	Stats() cache.Stats
}

// Pinger checks that the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerSource snapshots circuit breaker states by name.
type BreakerSource interface {
	States() map[string]string
}

// Collector gathers health metrics from the cache, store and breakers.
type Collector struct {
	stats    StatsSource
	store    Pinger
	breakers BreakerSource
}

// NewCollector creates a new metrics collector. store and breakers may be nil.
func NewCollector(stats StatsSource, store Pinger, breakers BreakerSource) *Collector {
	return &Collector{stats: stats, store: store, breakers: breakers}
}

// Collect gathers a snapshot. A store that fails to ping is reported in the
// snapshot rather than as an error.
func (c *Collector) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Cache:       c.stats.Stats(),
		StoreOK:     true,
		Breakers:    map[string]string{},
		CollectedAt: time.Now().UTC(),
	}

	if b := snap.Cache.Builds; b > 0 {
		snap.BuildFailureRate = float64(snap.Cache.Failures) / float64(b)
		if snap.BuildFailureRate > 1 {
			snap.BuildFailureRate = 1
		}
	}

	if c.store != nil {
		start := time.Now()
		err := c.store.Ping(ctx)
		snap.StoreLatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			snap.StoreOK = false
			snap.StoreError = err.Error()
		}
	}

	if c.breakers != nil {
		for name, state := range c.breakers.States() {
			snap.Breakers[name] = state
		}
	}
	return snap
}
