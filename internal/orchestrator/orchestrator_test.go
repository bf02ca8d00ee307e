package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-battle/internal/cache"
	"github.com/sells-group/product-battle/internal/ingest"
	"github.com/sells-group/product-battle/internal/model"
	"github.com/sells-group/product-battle/internal/store"
)

type fakeIngestor struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func (f *fakeIngestor) EnsureIndexed(_ context.Context, key, _ string) (*ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return &ingest.Result{PostsIndexed: 5}, nil
}

func (f *fakeIngestor) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type fakeBuilder struct {
	scores map[string]int
	fail   map[string]error
	delay  time.Duration
	builds atomic.Int32
	names  sync.Map
}

func (f *fakeBuilder) Build(ctx context.Context, key, displayName string) (*model.AnalysisRecord, error) {
	f.builds.Add(1)
	f.names.Store(key, displayName)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return &model.AnalysisRecord{
		Key:            key,
		DisplayName:    displayName,
		SentimentScore: f.scores[key],
		Pros:           []string{},
		Cons:           []string{},
		KeyThemes:      []string{},
		BuiltAt:        time.Now().UTC(),
	}, nil
}

func newTestOrchestrator(ing *fakeIngestor, b *fakeBuilder, timeout time.Duration) *Orchestrator {
	return New(cache.New(store.NewMemory(), time.Minute), ing, b, timeout)
}

func TestCompare_Winner(t *testing.T) {
	b := &fakeBuilder{scores: map[string]int{"lenovo_legion_y540": 78, "macbook_m4_pro": 65}}
	o := newTestOrchestrator(&fakeIngestor{}, b, time.Second)

	res, err := o.Compare(context.Background(), "Lenovo Legion Y540", "MacBook M4 Pro")
	require.NoError(t, err)
	assert.Equal(t, "lenovo_legion_y540", res.WinnerKey)
	assert.False(t, res.Tie)
	assert.Equal(t, 13, res.ScoreDifference)
	assert.Equal(t, "lenovo_legion_y540", res.A.Key)
	assert.Equal(t, "macbook_m4_pro", res.B.Key)

	name, _ := b.names.Load("lenovo_legion_y540")
	assert.Equal(t, "Lenovo Legion Y540", name)
}

func TestCompare_ReusesCachedRecords(t *testing.T) {
	ing := &fakeIngestor{}
	b := &fakeBuilder{scores: map[string]int{"a_laptop": 50, "b_laptop": 50}}
	o := newTestOrchestrator(ing, b, time.Second)

	first, err := o.Compare(context.Background(), "A laptop", "B laptop")
	require.NoError(t, err)
	assert.True(t, first.Tie)

	second, err := o.Compare(context.Background(), "  a   LAPTOP ", "b-laptop")
	require.NoError(t, err)
	assert.Same(t, first.A, second.A)
	assert.Same(t, first.B, second.B)
	assert.Equal(t, int32(2), b.builds.Load())
	assert.Equal(t, 1, ing.count("a_laptop"))
}

func TestCompare_InvalidName(t *testing.T) {
	o := newTestOrchestrator(&fakeIngestor{}, &fakeBuilder{}, time.Second)

	_, err := o.Compare(context.Background(), "   ", "MacBook")
	assert.ErrorIs(t, err, model.ErrInvalidName)

	_, err = o.Compare(context.Background(), "MacBook", "!!!")
	assert.ErrorIs(t, err, model.ErrInvalidName)
}

func TestCompare_DuplicateInput(t *testing.T) {
	b := &fakeBuilder{}
	o := newTestOrchestrator(&fakeIngestor{}, b, time.Second)

	_, err := o.Compare(context.Background(), "Lenovo Legion Y540", "lenovo-legion y540")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDuplicateInput)
	assert.Equal(t, "lenovo_legion_y540", model.KeyOf(err))
	assert.Zero(t, b.builds.Load())
}

func TestCompare_PartialFailureKeepsHealthySide(t *testing.T) {
	ing := &fakeIngestor{fail: map[string]error{
		"ghost_laptop": model.InsufficientDataError("ghost_laptop", nil),
	}}
	b := &fakeBuilder{scores: map[string]int{"real_laptop": 70}}
	o := newTestOrchestrator(ing, b, time.Second)

	_, err := o.Compare(context.Background(), "Real Laptop", "Ghost Laptop")
	require.Error(t, err)

	var perr *model.PartialAnalysisError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Failures, 1)
	assert.Equal(t, "b", perr.Failures[0].Side)
	assert.Equal(t, "ghost_laptop", perr.Failures[0].Key)
	assert.True(t, perr.Failed("ghost_laptop"))
	assert.False(t, perr.Failed("real_laptop"))
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	assert.Equal(t, model.EntryReady, o.Cache().Peek("real_laptop").State)
	assert.Equal(t, model.EntryFailed, o.Cache().Peek("ghost_laptop").State)
}

func TestCompare_BothSidesFail(t *testing.T) {
	boom := errors.New("llm down")
	b := &fakeBuilder{fail: map[string]error{"x1": boom, "x2": boom}}
	o := newTestOrchestrator(&fakeIngestor{}, b, time.Second)

	_, err := o.Compare(context.Background(), "X1", "X2")
	var perr *model.PartialAnalysisError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Failures, 2)
	assert.Equal(t, "a", perr.Failures[0].Side)
	assert.Equal(t, "b", perr.Failures[1].Side)
	assert.ErrorIs(t, err, boom)
}

func TestCompare_FailureIsNotCached(t *testing.T) {
	ing := &fakeIngestor{fail: map[string]error{"flaky": errors.New("reddit down")}}
	b := &fakeBuilder{scores: map[string]int{"flaky": 40, "steady": 60}}
	o := newTestOrchestrator(ing, b, time.Second)

	_, err := o.Compare(context.Background(), "flaky", "steady")
	require.Error(t, err)

	ing.mu.Lock()
	ing.fail = nil
	ing.mu.Unlock()

	res, err := o.Compare(context.Background(), "flaky", "steady")
	require.NoError(t, err)
	assert.Equal(t, "steady", res.WinnerKey)
	assert.Equal(t, 2, ing.count("flaky"))
}

func TestCompare_Timeout(t *testing.T) {
	b := &fakeBuilder{
		scores: map[string]int{"slow_a": 10, "slow_b": 20},
		delay:  200 * time.Millisecond,
	}
	o := newTestOrchestrator(&fakeIngestor{}, b, 20*time.Millisecond)

	_, err := o.Compare(context.Background(), "slow a", "slow b")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTimeout)

	// Detached builds still finish and serve the next caller.
	require.Eventually(t, func() bool {
		return o.Cache().Peek("slow_a").State == model.EntryReady &&
			o.Cache().Peek("slow_b").State == model.EntryReady
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), b.builds.Load())
}

func TestAnalyzeAndRefresh(t *testing.T) {
	b := &fakeBuilder{scores: map[string]int{"thinkpad_x1": 81}}
	o := newTestOrchestrator(&fakeIngestor{}, b, time.Second)
	ctx := context.Background()

	rec, err := o.Analyze(ctx, "ThinkPad X1")
	require.NoError(t, err)
	assert.Equal(t, 81, rec.SentimentScore)

	again, err := o.Analyze(ctx, "thinkpad x1")
	require.NoError(t, err)
	assert.Same(t, rec, again)
	assert.Equal(t, int32(1), b.builds.Load())

	fresh, err := o.Refresh(ctx, "ThinkPad X1")
	require.NoError(t, err)
	assert.NotSame(t, rec, fresh)
	assert.Equal(t, int32(2), b.builds.Load())

	_, err = o.Analyze(ctx, "")
	assert.ErrorIs(t, err, model.ErrInvalidName)
}

func TestIngest(t *testing.T) {
	ing := &fakeIngestor{}
	o := newTestOrchestrator(ing, &fakeBuilder{}, 0)

	res, err := o.Ingest(context.Background(), "Dell XPS 13")
	require.NoError(t, err)
	assert.Equal(t, 5, res.PostsIndexed)
	assert.Equal(t, 1, ing.count("dell_xps_13"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dell XPS 13", displayName("  Dell   XPS\t13 "))
}
