package security

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/index"
)

// Sentinel is the advisory semantic sensitivity classifier. It is optional:
// a disabled sentinel reports no opinion, which callers must never treat as
// "public".
type Sentinel interface {
	Check(ctx context.Context, text string) SentinelResult
	Available() bool
}

// SentinelResult is the best-matching sensitivity label with its confidence.
// Available=false means no signal, not "public".
type SentinelResult struct {
	Label     string
	Score     float64
	Available bool
}

// softmax temperature for turning cosine similarities into confidences.
const sentinelTemperature = 0.1

// embeddingSentinel classifies text by embedding it and scoring against
// pre-embedded candidate label descriptions (zero-shot via the shared
// embedding collaborator).
type embeddingSentinel struct {
	embedder domain.Embedder
	labels   []string
	vectors  [][]float32
	logger   *zap.Logger
}

// NewSentinel attempts to initialize the embedding-backed classifier by
// embedding every candidate label once. On any failure it returns a disabled
// sentinel; the disabled branch never panics and never blocks a request.
func NewSentinel(ctx context.Context, embedder domain.Embedder, labels []string, logger *zap.Logger) Sentinel {
	if embedder == nil || len(labels) == 0 {
		return disabledSentinel{}
	}

	vectors := make([][]float32, len(labels))
	for i, label := range labels {
		res, err := embedder.Embed(ctx, labelPrompt(label))
		if err != nil {
			logger.Warn("sentinel classifier unavailable, falling back to keyword heuristic",
				zap.String("label", label), zap.Error(err))
			return disabledSentinel{}
		}
		vectors[i] = index.Normalize(res.Embedding)
	}

	logger.Info("sentinel classifier initialized", zap.Strings("labels", labels))
	return &embeddingSentinel{embedder: embedder, labels: labels, vectors: vectors, logger: logger}
}

func labelPrompt(label string) string {
	return fmt.Sprintf("This document contains %s information.", label)
}

func (s *embeddingSentinel) Available() bool { return true }

// Check embeds the text and returns the closest candidate label with a
// softmax confidence. Embedding failure degrades to a no-opinion result.
func (s *embeddingSentinel) Check(ctx context.Context, text string) SentinelResult {
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("sentinel scoring failed", zap.Error(err))
		return SentinelResult{}
	}

	sims := make([]float64, len(s.vectors))
	best := 0
	for i, v := range s.vectors {
		sims[i] = index.Cosine(res.Embedding, v)
		if sims[i] > sims[best] {
			best = i
		}
	}

	return SentinelResult{
		Label:     s.labels[best],
		Score:     softmaxTop(sims, best),
		Available: true,
	}
}

// softmaxTop returns the softmax weight of sims[best].
func softmaxTop(sims []float64, best int) float64 {
	var sum float64
	for _, s := range sims {
		sum += math.Exp((s - sims[best]) / sentinelTemperature)
	}
	if sum == 0 {
		return 0
	}
	return 1 / sum
}

// disabledSentinel is the no-opinion stub returned when initialization fails.
type disabledSentinel struct{}

func (disabledSentinel) Available() bool { return false }

func (disabledSentinel) Check(context.Context, string) SentinelResult {
	return SentinelResult{}
}
