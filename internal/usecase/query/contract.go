package query

import (
	"context"

	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/security"
)

// Corpus provides read access to the labeled corpus.
type Corpus interface {
	Snapshot() []domain.Chunk
}

// Checker runs the advisory security assessment on the question itself.
type Checker interface {
	CheckQuery(ctx context.Context, text string) security.QueryCheck
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces the final answer from the assembled context.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (domain.GenerationResult, error)
}
