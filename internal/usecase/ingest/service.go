// Package ingest implements document ingestion: split, assess, vectorize,
// and append to the persisted corpus.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/metrics"
)

// minDocumentLen is the minimum document length in runes. Shorter payloads
// are rejected as invalid rather than silently producing no chunks.
const minDocumentLen = 30

// Service handles document ingestion.
type Service struct {
	repo     Repository
	splitter Splitter
	assessor Assessor
	embedder Embedder
	logger   *zap.Logger
}

// New creates an ingestion service.
func New(repo Repository, splitter Splitter, assessor Assessor, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		splitter: splitter,
		assessor: assessor,
		embedder: embedder,
		logger:   logger,
	}
}

// Result reports the outcome of one document ingestion.
type Result struct {
	DocID       string
	ChunksAdded int
	AdminChunks int
}

// Ingest splits the document, labels every chunk through the security
// pipeline, vectorizes each chunk, and appends the batch atomically.
// An empty docID gets a generated UUID.
func (s *Service) Ingest(ctx context.Context, docID, source, text string) (Result, error) {
	if len([]rune(strings.TrimSpace(text))) < minDocumentLen {
		return Result{}, fmt.Errorf(
			"document too short: need at least %d characters: %w",
			minDocumentLen, domain.ErrInvalidDocument,
		)
	}

	if docID == "" {
		docID = uuid.NewString()
	}
	if source == "" {
		source = docID
	}

	parts := s.splitter.Split(text)
	if len(parts) == 0 {
		return Result{}, fmt.Errorf("document produced no chunks: %w", domain.ErrInvalidDocument)
	}

	chunks := make([]domain.Chunk, 0, len(parts))
	adminCount := 0

	for i, part := range parts {
		assessment := s.assessor.AssessChunk(ctx, part)

		emb, err := s.embedder.Embed(ctx, part)
		if err != nil {
			return Result{}, fmt.Errorf("vectorize chunk %d: %w", i, err)
		}

		if assessment.Access == domain.AccessAdmin {
			adminCount++
		}

		chunks = append(chunks, domain.Chunk{
			ChunkID:       domain.ChunkID(docID, i),
			Source:        source,
			Text:          part,
			Vector:        emb.Embedding,
			Access:        assessment.Access,
			Tags:          assessment.Tags,
			SentinelLabel: assessment.SentinelLabel,
			SentinelScore: assessment.SentinelScore,
		})
	}

	if err := s.repo.Append(chunks); err != nil {
		return Result{}, fmt.Errorf("append chunks: %w", err)
	}

	for _, c := range chunks {
		metrics.ChunksIngestedTotal.WithLabelValues(string(c.Access)).Inc()
	}

	s.logger.Info("document ingested",
		zap.String("doc_id", docID),
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int("admin_chunks", adminCount),
	)

	return Result{DocID: docID, ChunksAdded: len(chunks), AdminChunks: adminCount}, nil
}
