// Package knowledge stores per-product grounding documents and ranks them by
// embedding similarity.
package knowledge

import (
	"context"
	"math"

	"github.com/sells-group/product-battle/internal/model"
)

// Index is the document store used by ingestion and analysis.
type Index interface {
	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs ...model.Document) error
	// Query returns up to topN documents for key ranked by similarity to
	// text. Score is set on each result.
	Query(ctx context.Context, key, text string, topN int) ([]model.Document, error)
	// Count returns the number of documents indexed for key by the current
	// embedder. Rows from another embedder are invisible until re-upserted.
	Count(ctx context.Context, key string) (int, error)
	// Exists reports whether document id is indexed for key by the current
	// embedder.
	Exists(ctx context.Context, key, id string) (bool, error)
}

// Task tells an embedder which side of a retrieval pair it is encoding.
type Task int

const (
	TaskDocument Task = iota
	TaskQuery
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string, task Task) ([][]float32, error)
	Name() string
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
