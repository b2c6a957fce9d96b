package domain

import "errors"

var (
	// ErrInvalidDocument signals an empty or unreadable document source.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrCorpusCorrupted signals a persisted corpus whose index and metadata disagree.
	ErrCorpusCorrupted = errors.New("corpus corrupted")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
)
