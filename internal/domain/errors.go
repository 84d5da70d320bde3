package domain

import "errors"

var (
	// ErrInvalidCatalog signals a catalog snapshot that fails validation
	// (missing required fields, duplicate IDs, unreadable JSON).
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrIndexNotReady signals that Recommend was called before fit/load completed.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrIndexEmpty signals an index build over zero texts.
	ErrIndexEmpty = errors.New("index input is empty")
	// ErrArtifactCorrupt signals a persisted index artifact that exists but cannot be decoded.
	ErrArtifactCorrupt = errors.New("artifact corrupt")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
