package fit

import (
	"context"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/index/dense"
	"github.com/inkvine/manrec/internal/index/sparse"
)

// BatchEmbedder vectorizes composite texts in fixed-size batches.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// ArtifactWriter persists both fitted indices as one coordinated save.
type ArtifactWriter interface {
	Save(fingerprint string, dix *dense.Index, vec *sparse.Vectorizer) error
}
