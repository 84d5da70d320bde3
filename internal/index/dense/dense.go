// Package dense implements an exact inner-product vector index over
// L2-normalized embeddings, so inner product equals cosine similarity.
// The catalog is small enough that a full scan beats any ANN structure.
package dense

import (
	"fmt"
	"math"
	"sort"

	"github.com/inkvine/manrec/internal/domain"
)

// Hit is one nearest-neighbor match.
type Hit struct {
	Position int
	Score    float64
}

// Index is a row-major matrix of normalized vectors. Immutable after Build;
// concurrent Search calls over a built index are safe.
type Index struct {
	dims int
	rows int
	data []float32
}

// New creates an empty index. Build or a persistence load must run before Search.
func New() *Index { return &Index{} }

// Build normalizes and stores the vectors. Row i must correspond to catalog
// position i. An empty input aborts the build: an index over nothing would
// mask a broken fit upstream.
func (ix *Index) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("dense build: %w", domain.ErrIndexEmpty)
	}
	dims := len(vectors[0])
	if dims == 0 {
		return fmt.Errorf("dense build: zero-dimension vector at row 0")
	}

	data := make([]float32, 0, len(vectors)*dims)
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("dense build: row %d has %d dims, want %d", i, len(v), dims)
		}
		data = append(data, normalize(v)...)
	}

	ix.dims = dims
	ix.rows = len(vectors)
	ix.data = data
	return nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return ix.rows }

// Dims returns the vector dimensionality, 0 before Build.
func (ix *Index) Dims() int { return ix.dims }

// Search returns the k nearest rows to the query by inner product,
// descending score, ties broken by ascending position. k is clamped to the
// index size; an empty index yields an empty result, not an error.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if ix.rows == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("dense search: query has %d dims, index has %d", len(query), ix.dims)
	}
	if k > ix.rows {
		k = ix.rows
	}

	q := normalize(query)
	hits := make([]Hit, ix.rows)
	for i := 0; i < ix.rows; i++ {
		row := ix.data[i*ix.dims : (i+1)*ix.dims]
		var dot float64
		for j, qv := range q {
			dot += float64(qv) * float64(row[j])
		}
		hits[i] = Hit{Position: i, Score: dot}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})
	return hits[:k], nil
}

// normalize returns an L2-normalized copy. A zero vector stays zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
