// Package fit builds the dense and sparse indices from a catalog snapshot.
// Embedding batches run on a worker pool; the resulting row order always
// matches catalog position, whatever order the batches complete in.
package fit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/domain/catalog"
	"github.com/inkvine/manrec/internal/index/dense"
	"github.com/inkvine/manrec/internal/index/sparse"
)

// Defaults for batch dispatch.
const (
	DefaultBatchSize = 128
	DefaultWorkers   = 4
)

// Service runs the fit pipeline.
type Service struct {
	embed     BatchEmbedder
	artifacts ArtifactWriter
	batchSize int
	workers   int
	logger    *zap.Logger
}

// Config holds fit pipeline settings. Artifacts may be nil to fit without
// persisting.
type Config struct {
	Embedder  BatchEmbedder
	Artifacts ArtifactWriter
	BatchSize int
	Workers   int
	Logger    *zap.Logger
}

// New creates a fit service.
func New(cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		embed:     cfg.Embedder,
		artifacts: cfg.Artifacts,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
	}
}

// Fit embeds every catalog entry, builds both indices, and saves them when
// an artifact writer is configured. Any failure aborts before a persistence
// write; a partially fitted state is never saved.
func (s *Service) Fit(ctx context.Context, store *catalog.Store) (*dense.Index, *sparse.Vectorizer, error) {
	if store.Len() == 0 {
		return nil, nil, fmt.Errorf("fit: %w", domain.ErrIndexEmpty)
	}

	texts := catalog.CompositeTexts(store.Entries())
	start := time.Now()

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	dix := dense.New()
	if err := dix.Build(vectors); err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}

	vec := sparse.New()
	if err := vec.Fit(texts); err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}

	s.logger.Info("indices fitted",
		zap.Int("entries", store.Len()),
		zap.Int("dims", dix.Dims()),
		zap.Int("vocab", vec.VocabSize()),
		zap.Duration("duration", time.Since(start)),
	)

	if s.artifacts != nil {
		if err := s.artifacts.Save(store.Fingerprint(), dix, vec); err != nil {
			return nil, nil, fmt.Errorf("save artifacts: %w", err)
		}
	}

	return dix, vec, nil
}

// embedAll dispatches fixed-size batches to a worker pool and writes each
// batch's vectors back at their catalog positions. The first batch error
// cancels the remaining work.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("embed pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for lo := 0; lo < len(texts); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(texts))
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			res, err := s.embed.BatchEmbed(ctx, texts[lo:hi])
			if err != nil {
				fail(fmt.Errorf("embed batch [%d:%d]: %w", lo, hi, err))
				return
			}
			if len(res.Embeddings) != hi-lo {
				fail(fmt.Errorf("embed batch [%d:%d]: got %d vectors: %w",
					lo, hi, len(res.Embeddings), domain.ErrEmbeddingProviderError))
				return
			}
			for i, v := range res.Embeddings {
				vectors[lo+i] = v
			}
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch [%d:%d]: %w", lo, hi, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
