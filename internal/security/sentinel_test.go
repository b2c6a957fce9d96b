package security

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
)

type stubEmbedder struct {
	vecs       map[string][]float32
	defaultVec []float32
	err        error
	calls      int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	s.calls++
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: s.defaultVec}, nil
}

func TestNewSentinelDisabledOnInitFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("model unavailable")}
	s := NewSentinel(context.Background(), emb, []string{"public", "confidential"}, zap.NewNop())

	if s.Available() {
		t.Error("sentinel should be disabled after init failure")
	}
	res := s.Check(context.Background(), "anything")
	if res.Available {
		t.Error("disabled sentinel must report no opinion")
	}
	if res.Label != "" || res.Score != 0 {
		t.Errorf("disabled sentinel leaked an opinion: %+v", res)
	}
}

func TestNewSentinelDisabledWithoutEmbedder(t *testing.T) {
	if s := NewSentinel(context.Background(), nil, []string{"public"}, zap.NewNop()); s.Available() {
		t.Error("nil embedder must yield disabled sentinel")
	}
	emb := &stubEmbedder{defaultVec: []float32{1}}
	if s := NewSentinel(context.Background(), emb, nil, zap.NewNop()); s.Available() {
		t.Error("empty label set must yield disabled sentinel")
	}
}

func TestSentinelCheckPicksClosestLabel(t *testing.T) {
	emb := &stubEmbedder{
		vecs: map[string][]float32{
			labelPrompt("public"):       {1, 0},
			labelPrompt("confidential"): {0, 1},
		},
		defaultVec: []float32{0, 1}, // any chunk text lands next to "confidential"
	}
	s := NewSentinel(context.Background(), emb, []string{"public", "confidential"}, zap.NewNop())
	if !s.Available() {
		t.Fatal("sentinel should be available")
	}

	res := s.Check(context.Background(), "quarterly acquisition plan")
	if !res.Available {
		t.Fatal("expected an opinion")
	}
	if res.Label != "confidential" {
		t.Errorf("Label = %q, want confidential", res.Label)
	}
	if res.Score <= 0.5 || res.Score > 1 {
		t.Errorf("Score = %f, want decisive confidence in (0.5, 1]", res.Score)
	}
}

func TestSentinelCheckDegradesOnEmbedFailure(t *testing.T) {
	emb := &stubEmbedder{
		vecs: map[string][]float32{
			labelPrompt("public"):       {1, 0},
			labelPrompt("confidential"): {0, 1},
		},
		defaultVec: []float32{0, 1},
	}
	s := NewSentinel(context.Background(), emb, []string{"public", "confidential"}, zap.NewNop())

	emb.err = errors.New("provider down")
	res := s.Check(context.Background(), "text")
	if res.Available {
		t.Error("embedding failure must yield no opinion, not a label")
	}
}
