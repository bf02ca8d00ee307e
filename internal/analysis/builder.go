// Package analysis turns indexed discussion documents into a validated
// AnalysisRecord by prompting a language model.
package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-battle/internal/config"
	"github.com/sells-group/product-battle/internal/knowledge"
	"github.com/sells-group/product-battle/internal/llm"
	"github.com/sells-group/product-battle/internal/model"
)

// Builder retrieves grounding documents and asks the LLM for a verdict.
type Builder struct {
	index       knowledge.Index
	completer   llm.Completer
	topN        int
	maxDocChars int
}

// NewBuilder creates a Builder. Zero config values fall back to 15
// documents of at most 4000 characters.
func NewBuilder(index knowledge.Index, completer llm.Completer, cfg config.AnalysisConfig) *Builder {
	b := &Builder{index: index, completer: completer, topN: cfg.TopN, maxDocChars: cfg.MaxDocChars}
	if b.topN <= 0 {
		b.topN = 15
	}
	if b.maxDocChars <= 0 {
		b.maxDocChars = 4000
	}
	return b
}

// Build produces a record for key. It never returns a partial record.
func (b *Builder) Build(ctx context.Context, key, displayName string) (*model.AnalysisRecord, error) {
	start := time.Now()
	log := zap.L().With(zap.String("key", key))

	docs, err := b.index.Query(ctx, key, displayName, b.topN)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: query knowledge")
	}
	if len(docs) == 0 {
		return nil, model.InsufficientDataError(key, nil)
	}
	log.Debug("analysis: retrieved grounding documents", zap.Int("docs", len(docs)))

	raw, err := b.completer.Complete(ctx, llm.Request{
		System: systemText,
		Prompt: buildPrompt(displayName, docs, b.maxDocChars),
		Key:    key,
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: complete")
	}

	root, err := ParseResponse(key, raw)
	if err != nil {
		log.Warn("analysis: unusable model response", zap.Error(err))
		return nil, err
	}

	rec, err := NewRecord(root, Meta{
		Key:           key,
		DisplayName:   displayName,
		PostsAnalyzed: len(docs),
		Model:         b.completer.Model(),
	})
	if err != nil {
		log.Warn("analysis: invalid record", zap.Error(err))
		return nil, err
	}

	log.Info("analysis: record built",
		zap.Int("score", rec.SentimentScore),
		zap.Int("posts", rec.PostsAnalyzed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}
