package recommend

import (
	"context"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/index/dense"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DenseSearcher scans an embedding index for the nearest catalog positions.
type DenseSearcher interface {
	Search(query []float32, k int) ([]dense.Hit, error)
	Len() int
}

// SparseScorer scores a query against the fitted term-frequency row at a
// catalog position.
type SparseScorer interface {
	Score(query string, pos int) float64
	Len() int
}
