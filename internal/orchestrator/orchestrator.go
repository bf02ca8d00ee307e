// Package orchestrator is the entry point for product comparisons: it
// resolves names to keys, builds or reuses both analyses concurrently and
// combines them.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-battle/internal/cache"
	"github.com/sells-group/product-battle/internal/compare"
	"github.com/sells-group/product-battle/internal/ingest"
	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/slug"
)

// Ingestor makes sure grounding documents exist for a key.
type Ingestor interface {
	EnsureIndexed(ctx context.Context, key, displayName string) (*ingest.Result, error)
}

// Builder produces an analysis record from indexed documents.
type Builder interface {
	Build(ctx context.Context, key, displayName string) (*model.AnalysisRecord, error)
}

// Orchestrator owns the analysis cache and the build pipeline behind it.
type Orchestrator struct {
	cache   *cache.Cache
	ingest  Ingestor
	builder Builder
	timeout time.Duration
}

// New creates an Orchestrator. timeout bounds Compare and Analyze; zero
// means only the caller's context applies.
func New(c *cache.Cache, ing Ingestor, b Builder, timeout time.Duration) *Orchestrator {
	return &Orchestrator{cache: c, ingest: ing, builder: b, timeout: timeout}
}

// Cache returns the analysis cache.
func (o *Orchestrator) Cache() *cache.Cache { return o.cache }

// Compare analyses both products concurrently and combines the verdicts.
// If either side fails the result is a PartialAnalysisError naming it; a
// comparison is never built from one side.
func (o *Orchestrator) Compare(ctx context.Context, rawA, rawB string) (*model.ComparisonResult, error) {
	keyA, err := slug.Normalize(rawA)
	if err != nil {
		return nil, err
	}
	keyB, err := slug.Normalize(rawB)
	if err != nil {
		return nil, err
	}
	if keyA == keyB {
		return nil, model.DuplicateInputError(keyA)
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	sides := []struct {
		label, key, name string
		rec              *model.AnalysisRecord
		err              error
	}{
		{label: "a", key: keyA, name: displayName(rawA)},
		{label: "b", key: keyB, name: displayName(rawB)},
	}

	// Plain Group: one side failing must not cancel the other.
	var g errgroup.Group
	for i := range sides {
		s := &sides[i]
		g.Go(func() error {
			s.rec, s.err = o.cache.GetOrBuild(ctx, s.key, o.buildFunc(s.key, s.name))
			return nil
		})
	}
	_ = g.Wait()

	var failures []model.SideFailure
	for _, s := range sides {
		if s.err != nil {
			failures = append(failures, model.SideFailure{Side: s.label, Key: s.key, Err: s.err})
		}
	}
	if len(failures) > 0 {
		if timedOut(ctx, failures) {
			zap.L().Warn("orchestrator: compare timed out",
				zap.String("a", keyA), zap.String("b", keyB),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil, model.TimeoutError(ctx.Err())
		}
		perr := &model.PartialAnalysisError{Failures: failures}
		zap.L().Warn("orchestrator: compare failed", zap.Error(perr))
		return nil, perr
	}

	res, err := compare.Combine(sides[0].rec, sides[1].rec)
	if err != nil {
		return nil, err
	}
	zap.L().Info("orchestrator: compare complete",
		zap.String("a", keyA), zap.String("b", keyB),
		zap.String("winner", res.WinnerKey),
		zap.Bool("tie", res.Tie),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Analyze returns the record for one product, building it if needed.
func (o *Orchestrator) Analyze(ctx context.Context, raw string) (*model.AnalysisRecord, error) {
	key, err := slug.Normalize(raw)
	if err != nil {
		return nil, err
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return o.cache.GetOrBuild(ctx, key, o.buildFunc(key, displayName(raw)))
}

// Refresh drops any cached record for the product and builds a new one.
func (o *Orchestrator) Refresh(ctx context.Context, raw string) (*model.AnalysisRecord, error) {
	key, err := slug.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := o.cache.Invalidate(ctx, key); err != nil {
		return nil, err
	}
	return o.Analyze(ctx, raw)
}

// Ingest warms the knowledge store for one product without analysing it.
func (o *Orchestrator) Ingest(ctx context.Context, raw string) (*ingest.Result, error) {
	key, err := slug.Normalize(raw)
	if err != nil {
		return nil, err
	}
	return o.ingest.EnsureIndexed(ctx, key, displayName(raw))
}

// buildFunc ingests then analyses; the stages never overlap for one key.
func (o *Orchestrator) buildFunc(key, name string) cache.BuildFunc {
	return func(ctx context.Context) (*model.AnalysisRecord, error) {
		res, err := o.ingest.EnsureIndexed(ctx, key, name)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("orchestrator: knowledge ready",
			zap.String("key", key),
			zap.Int("documents", res.PostsIndexed),
			zap.Int("new", res.New),
		)
		return o.builder.Build(ctx, key, name)
	}
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

// timedOut reports whether the failures are down to ctx expiring rather
// than a build error.
func timedOut(ctx context.Context, failures []model.SideFailure) bool {
	if ctx.Err() == nil {
		return false
	}
	for _, f := range failures {
		if errors.Is(f.Err, model.ErrTimeout) {
			return true
		}
	}
	return false
}

// displayName trims and collapses whitespace in a user-supplied name.
func displayName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
