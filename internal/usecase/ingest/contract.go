package ingest

import (
	"context"

	"github.com/kailas-cloud/guardrag/internal/domain"
)

// Repository defines the storage contract for the labeled corpus.
type Repository interface {
	Append(chunks []domain.Chunk) error
}

// Splitter segments document text into bounded chunks.
type Splitter interface {
	Split(text string) []string
}

// Assessor assigns an access label to a chunk at ingestion time.
type Assessor interface {
	AssessChunk(ctx context.Context, text string) domain.Assessment
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
